package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const (
	storeMemory = "memory"
	storeRedis  = "redis"
	storeSQLite = "sqlite"
)

type daemonConfig struct {
	APIURL         string
	Username       string
	Password       string
	Store          string
	RedisAddr      string
	RedisPrefix    string
	SQLitePath     string
	MetricsAddr    string
	OTLPEndpoint   string
	OTLPInsecure   bool
	Audit          bool
	ReconnectDelay time.Duration
	RedirectDelay  time.Duration
	LogoutTimeout  time.Duration
}

type envLookup func(string) string

func getEnv(lookup envLookup, key, fallback string) string {
	if v := strings.TrimSpace(lookup(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(lookup envLookup, key string, fallback bool) bool {
	v := strings.TrimSpace(lookup(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(lookup envLookup, key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(lookup(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// loadConfig reads the environment for defaults and lets flags override them.
func loadConfig(args []string, lookup envLookup, stderr io.Writer) (daemonConfig, error) {
	var cfg daemonConfig

	fs := flag.NewFlagSet("sessiond", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.APIURL, "api", getEnv(lookup, "GOSESSION_API_URL", ""), "API base URL (empty uses the built-in fallback)")
	fs.StringVar(&cfg.Username, "username", getEnv(lookup, "GOSESSION_USERNAME", ""), "login username, used when no session is stored")
	fs.StringVar(&cfg.Password, "password", getEnv(lookup, "GOSESSION_PASSWORD", ""), "login password")
	fs.StringVar(&cfg.Store, "store", getEnv(lookup, "GOSESSION_STORE", storeMemory), "session store: memory, redis or sqlite")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", getEnv(lookup, "REDIS_ADDR", ""), "redis address for -store=redis (empty starts an embedded miniredis)")
	fs.StringVar(&cfg.RedisPrefix, "redis-prefix", getEnv(lookup, "GOSESSION_REDIS_PREFIX", "gosession"), "redis key prefix")
	fs.StringVar(&cfg.SQLitePath, "sqlite-path", getEnv(lookup, "GOSESSION_SQLITE_PATH", "gosession.db"), "database file for -store=sqlite")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", getEnv(lookup, "GOSESSION_METRICS_ADDR", ""), "listen address for /metrics (empty disables)")
	fs.StringVar(&cfg.OTLPEndpoint, "otlp-endpoint", getEnv(lookup, "OTEL_EXPORTER_OTLP_ENDPOINT", ""), "OTLP/gRPC trace collector (empty disables)")
	fs.BoolVar(&cfg.OTLPInsecure, "otlp-insecure", getEnvBool(lookup, "OTEL_EXPORTER_OTLP_INSECURE", false), "dial the collector without TLS")
	fs.BoolVar(&cfg.Audit, "audit", getEnvBool(lookup, "GOSESSION_AUDIT", true), "log audit events")
	fs.DurationVar(&cfg.ReconnectDelay, "reconnect-delay", getEnvDuration(lookup, "GOSESSION_RECONNECT_DELAY", 5*time.Second), "realtime reconnect delay")
	fs.DurationVar(&cfg.RedirectDelay, "redirect-delay", getEnvDuration(lookup, "GOSESSION_REDIRECT_DELAY", 0), "pause between login and the role page")
	fs.DurationVar(&cfg.LogoutTimeout, "logout-timeout", getEnvDuration(lookup, "GOSESSION_LOGOUT_TIMEOUT", 15*time.Second), "budget for the logout on shutdown")

	if err := fs.Parse(args); err != nil {
		return daemonConfig{}, err
	}
	if err := cfg.validate(); err != nil {
		return daemonConfig{}, err
	}
	return cfg, nil
}

func (c daemonConfig) validate() error {
	switch c.Store {
	case storeMemory, storeRedis, storeSQLite:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.Store == storeSQLite && c.SQLitePath == "" {
		return errors.New("sqlite-path must be set for the sqlite store")
	}
	if c.ReconnectDelay <= 0 {
		return errors.New("reconnect-delay must be > 0")
	}
	if c.RedirectDelay < 0 {
		return errors.New("redirect-delay must be >= 0")
	}
	if c.LogoutTimeout <= 0 {
		return errors.New("logout-timeout must be > 0")
	}
	return nil
}
