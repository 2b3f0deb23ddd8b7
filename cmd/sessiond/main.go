// Command sessiond keeps one user session alive against the remote API.
//
// It restores the stored session (or logs in with the configured
// credentials), holds the realtime channel open and exits when the server
// forces the session out. SIGINT and SIGTERM trigger a normal logout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/telemetry"
	otelexport "github.com/MrEthical07/goSession/metrics/export/otel"
)

const (
	exitOK = iota
	exitError
	exitUsage
	// exitTerminated means the server ended the session.
	exitTerminated
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("sessiond: .env: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Getenv, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, lookup envLookup, stderr io.Writer) int {
	cfg, err := loadConfig(args, lookup, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, "sessiond:", err)
		return exitUsage
	}
	logger := stdr.New(log.New(stderr, "sessiond: ", log.LstdFlags))
	return runDaemon(ctx, cfg, logger)
}

func runDaemon(ctx context.Context, cfg daemonConfig, logger logr.Logger) int {
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: "sessiond",
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		logger.Error(err, "tracing disabled")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Error(err, "tracing shutdown")
		}
	}()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error(err, "open session store", "store", cfg.Store)
		return exitError
	}
	defer closeStore()

	// armed is set once a live session is in place; from then on a redirect
	// to the login page means the session is gone.
	var armed atomic.Bool
	ended := make(chan struct{})
	var endOnce sync.Once
	navigator := goSession.NavigatorFunc(func(_ context.Context, page goSession.Page) {
		logger.Info("navigate", "page", string(page))
		if page == goSession.PageLogin && armed.Load() {
			endOnce.Do(func() { close(ended) })
		}
	})
	notifier := goSession.NotifierFunc(func(_ context.Context, n goSession.Notice) {
		logger.Info("notice", "level", string(n.Level), "message", n.Message)
	})

	gcfg := goSession.DefaultConfig()
	gcfg.API.RuntimeBaseURL = cfg.APIURL
	gcfg.Realtime.ReconnectDelay = cfg.ReconnectDelay
	gcfg.Login.RedirectDelay = cfg.RedirectDelay
	gcfg.Audit.Enabled = cfg.Audit
	gcfg.Metrics.Enabled = true
	gcfg.Metrics.EnableLatencyHistograms = true

	b := goSession.New().
		WithConfig(gcfg).
		WithStore(store).
		WithNavigator(navigator).
		WithNotifier(notifier).
		WithLogger(logger.WithName("controller"))
	if cfg.Audit {
		b = b.WithAuditSink(goSession.LogSink{Logger: logger.WithName("audit")})
	}
	c, err := b.Build()
	if err != nil {
		logger.Error(err, "invalid controller configuration")
		return exitUsage
	}
	defer c.Close()

	exp, err := otelexport.NewOTelExporter(otel.GetMeterProvider().Meter("github.com/MrEthical07/goSession"), c)
	if err != nil {
		logger.Error(err, "otel metrics disabled")
	} else {
		defer func() { _ = exp.Close() }()
	}

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           newMetricsRouter(c),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("metrics listening", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error(err, "metrics server")
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	// a signal during startup still ends with a logout
	boot, err := c.Bootstrap(ctx, goSession.PageLogin)
	if ctx.Err() != nil {
		logger.Info("shutdown requested during bootstrap")
		return logoutOnExit(c, cfg.LogoutTimeout, logger)
	}
	if err != nil {
		logger.Error(err, "bootstrap")
		return exitError
	}
	armed.Store(true)

	if boot.Session.Empty() {
		if cfg.Username == "" {
			logger.Info("no stored session and no credentials configured")
			return exitUsage
		}
		_, err := c.Login(ctx, goSession.Credentials{Username: cfg.Username, Password: cfg.Password})
		if ctx.Err() != nil {
			armed.Store(false)
			logger.Info("shutdown requested during login")
			return logoutOnExit(c, cfg.LogoutTimeout, logger)
		}
		if err != nil {
			logger.Error(err, "login", "username", cfg.Username)
			return exitError
		}
	}

	sess, err := c.Session(ctx)
	if err == nil {
		logger.Info("session active", "username", sess.Username, "role", sess.Role, "restored", !boot.Session.Empty())
	}

	select {
	case <-ended:
		logger.Info("session terminated by the server")
		return exitTerminated
	case <-ctx.Done():
	}

	armed.Store(false)
	return logoutOnExit(c, cfg.LogoutTimeout, logger)
}

func logoutOnExit(c *goSession.Controller, timeout time.Duration, logger logr.Logger) int {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := c.Logout(ctx); err != nil {
		logger.Error(err, "logout")
		return exitError
	}
	logger.Info("logged out")
	return exitOK
}
