package goSession

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/apiclient"
	"github.com/MrEthical07/goSession/realtime"
)

// Config holds every tunable of a Controller.
//
// Config values are copied on WithConfig and Build; later changes to the
// caller's value have no effect.
type Config struct {
	API      APIConfig
	Realtime RealtimeConfig
	Login    LoginConfig
	Logout   LogoutConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig selects the remote API. The first non-empty of PlatformBaseURL,
// RuntimeBaseURL and FallbackBaseURL wins.
type APIConfig struct {
	// PlatformBaseURL is injected by the host platform and overrides
	// everything else.
	PlatformBaseURL string
	// RuntimeBaseURL comes from runtime configuration.
	RuntimeBaseURL  string
	FallbackBaseURL string
	Timeout         time.Duration
	UserAgent       string
}

/*
====================================
REALTIME CONFIG
====================================
*/

type RealtimeConfig struct {
	// URL overrides the push endpoint derived from the API base URL.
	URL            string
	ReconnectDelay time.Duration
	// MaxReconnectDelay turns the fixed reconnect delay into a capped
	// exponential one when greater than ReconnectDelay.
	MaxReconnectDelay time.Duration
	HandshakeTimeout  time.Duration
	RegisterStyle     realtime.RegisterStyle
	SessionIDInQuery  bool
}

/*
====================================
LIFECYCLE CONFIG
====================================
*/

type LoginConfig struct {
	// RedirectDelay is the pause between a successful login and the redirect.
	RedirectDelay time.Duration
}

type LogoutConfig struct {
	// MaxAttempts against the primary endpoint, counting the first.
	MaxAttempts int
	// RetryDelay between attempts after a network failure.
	RetryDelay time.Duration
	// FallbackOnNotFound retries once against the signout endpoint on 404.
	FallbackOnNotFound bool
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration used by New.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			FallbackBaseURL: apiclient.DefaultFallbackBaseURL,
			Timeout:         15 * time.Second,
			UserAgent:       "goSession/1",
		},
		Realtime: RealtimeConfig{
			ReconnectDelay:   realtime.DefaultReconnectDelay,
			HandshakeTimeout: 10 * time.Second,
			RegisterStyle:    realtime.RegisterTyped,
		},
		Login: LoginConfig{
			RedirectDelay: 500 * time.Millisecond,
		},
		Logout: LogoutConfig{
			MaxAttempts:        3,
			RetryDelay:         time.Second,
			FallbackOnNotFound: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

// BaseURL resolves the API base URL.
func (c Config) BaseURL() string {
	return apiclient.ResolveBaseURL(c.API.PlatformBaseURL, c.API.RuntimeBaseURL, c.API.FallbackBaseURL)
}

// RealtimeURL returns Realtime.URL or the ws(s) endpoint of the base URL.
func (c Config) RealtimeURL() (string, error) {
	if u := strings.TrimSpace(c.Realtime.URL); u != "" {
		return u, nil
	}
	return apiclient.WebSocketURL(c.BaseURL())
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// API
	base := c.BaseURL()
	if base == "" {
		return errors.New("API base URL must be set")
	}
	if u, err := url.Parse(base); err != nil || u.Host == "" {
		return errors.New("API base URL must be an absolute URL")
	}
	if c.API.Timeout <= 0 {
		return errors.New("API Timeout must be > 0")
	}

	// Realtime
	if c.Realtime.ReconnectDelay <= 0 {
		return errors.New("Realtime ReconnectDelay must be > 0")
	}
	if c.Realtime.MaxReconnectDelay < 0 {
		return errors.New("Realtime MaxReconnectDelay must be >= 0")
	}
	if c.Realtime.HandshakeTimeout <= 0 {
		return errors.New("Realtime HandshakeTimeout must be > 0")
	}
	if c.Realtime.RegisterStyle != realtime.RegisterTyped && c.Realtime.RegisterStyle != realtime.RegisterIdentify {
		return errors.New("Realtime RegisterStyle is unknown")
	}
	if _, err := c.RealtimeURL(); err != nil {
		return errors.New("Realtime URL is invalid")
	}

	// Lifecycle
	if c.Login.RedirectDelay < 0 {
		return errors.New("Login RedirectDelay must be >= 0")
	}
	if c.Logout.MaxAttempts < 1 {
		return errors.New("Logout MaxAttempts must be >= 1")
	}
	if c.Logout.RetryDelay < 0 {
		return errors.New("Logout RetryDelay must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
