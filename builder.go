package goSession

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"

	"github.com/MrEthical07/goSession/apiclient"
	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/realtime"
	"github.com/MrEthical07/goSession/retry"
	"github.com/MrEthical07/goSession/session"
)

// Builder assembles a Controller. A Builder can be built once.
type Builder struct {
	config Config

	store     session.Store
	transport http.RoundTripper
	dialer    realtime.Dialer
	navigator Navigator
	notifier  Notifier
	views     Views
	auditSink AuditSink
	logger    *logr.Logger
	observe   func(realtime.State)
	now       func() time.Time

	built bool
}

// New starts a Builder with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the session store. Defaults to a MemoryStore.
func (b *Builder) WithStore(store session.Store) *Builder {
	b.store = store
	return b
}

// WithHTTPTransport sets the round tripper under the API client's tracing
// transport.
func (b *Builder) WithHTTPTransport(rt http.RoundTripper) *Builder {
	b.transport = rt
	return b
}

// WithDialer replaces the WebSocket dialer of the realtime channel.
func (b *Builder) WithDialer(d realtime.Dialer) *Builder {
	b.dialer = d
	return b
}

func (b *Builder) WithNavigator(n Navigator) *Builder {
	b.navigator = n
	return b
}

func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

func (b *Builder) WithViews(v Views) *Builder {
	b.views = v
	return b
}

// WithAuditSink sets where audit events go. Audit.Enabled must also be set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger. Defaults to stdr over the standard log package.
func (b *Builder) WithLogger(l logr.Logger) *Builder {
	b.logger = &l
	return b
}

// WithRealtimeStateObserver registers fn for every realtime state
// transition. fn runs under the channel's lock and must not call back into
// the Controller.
func (b *Builder) WithRealtimeStateObserver(fn func(realtime.State)) *Builder {
	b.observe = fn
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Controller. No network
// I/O happens until an operation is called.
func (b *Builder) Build() (*Controller, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	wsURL, err := cfg.RealtimeURL()
	if err != nil {
		return nil, err
	}

	logger := stdr.New(log.New(os.Stderr, "goSession: ", log.LstdFlags))
	if b.logger != nil {
		logger = *b.logger
	}

	c := &Controller{
		config:    cloneConfig(cfg),
		store:     b.store,
		navigator: b.navigator,
		notifier:  b.notifier,
		views:     b.views,
		metrics:   NewMetrics(cfg.Metrics),
		log:       logger,
		now:       b.now,
	}
	if c.store == nil {
		c.store = session.NewMemoryStore()
	}
	if c.navigator == nil {
		c.navigator = logNavigator{log: logger.WithName("navigator")}
	}
	if c.notifier == nil {
		c.notifier = logNotifier{log: logger.WithName("notifier")}
	}
	if c.views == nil {
		c.views = noViews{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	// -------- API CLIENT --------
	api, err := apiclient.New(apiclient.Options{
		BaseURL:   cfg.BaseURL(),
		Timeout:   cfg.API.Timeout,
		UserAgent: cfg.API.UserAgent,
		Transport: b.transport,
		Jar:       apiclient.NewJar(),
		Logger:    logger.WithName("api"),
		Observer: func(_ string, _ int, elapsed time.Duration, _ error) {
			c.metrics.Observe(MetricRequestLatency, elapsed)
		},
	})
	if err != nil {
		return nil, err
	}
	c.api = api

	// -------- REALTIME CHANNEL --------
	ch, err := realtime.New(realtime.Options{
		URL:               wsURL,
		ReconnectDelay:    cfg.Realtime.ReconnectDelay,
		MaxReconnectDelay: cfg.Realtime.MaxReconnectDelay,
		HandshakeTimeout:  cfg.Realtime.HandshakeTimeout,
		RegisterStyle:     cfg.Realtime.RegisterStyle,
		SessionIDInQuery:  cfg.Realtime.SessionIDInQuery,
		Dialer:            b.dialer,
		Source: realtime.SessionSourceFunc(func(ctx context.Context) (string, error) {
			sess, err := c.store.Get(ctx)
			return sess.ID, err
		}),
		Handlers: c.realtimeHandlers(),
		Hooks:    c.realtimeHooks(b.observe),
		Logger:   logger.WithName("realtime"),
	})
	if err != nil {
		c.audit.Close()
		return nil, err
	}
	c.channel = ch

	// -------- FLOWS --------
	cleanup := flows.CleanupDeps{
		Store:        c.store,
		ClearCookies: api.ClearCookies,
		Navigate: func(ctx context.Context) {
			c.navigate(ctx, PageLogin)
		},
		Logger: logger,
	}
	c.deps = flows.Deps{
		Login: flows.LoginDeps{
			API:     api,
			Store:   c.store,
			Channel: ch,
			Errors: flows.LoginErrors{
				AlreadyLoggedIn: ErrAlreadyLoggedIn,
				CannotConnect:   ErrCannotConnect,
				Failed:          ErrLoginFailed,
			},
			Logger: logger,
		},
		Logout: flows.LogoutDeps{
			API:     api,
			Store:   c.store,
			Channel: ch,
			Cleanup: cleanup,
			Retry: retry.Policy{
				MaxAttempts: cfg.Logout.MaxAttempts,
				Delay:       cfg.Logout.RetryDelay,
				Retryable:   retry.NetworkOnly,
				OnRetry: func(attempt int, err error, wait time.Duration) {
					c.metricInc(MetricLogoutRetry)
					logger.Info("retrying logout", "attempt", attempt, "wait", wait, "error", err.Error())
				},
			},
			FallbackOnNotFound: cfg.Logout.FallbackOnNotFound,
			Now:                c.now,
			Logger:             logger,
		},
		Forced: flows.ForcedDeps{
			Store:   c.store,
			Channel: ch,
			Cleanup: cleanup,
			Logger:  logger,
		},
		Bootstrap: flows.BootstrapDeps{
			API:     api,
			Store:   c.store,
			Channel: ch,
			Cleanup: cleanup,
			Logger:  logger,
		},
		Admin: flows.AdminDeps{
			API:   api,
			Store: c.store,
			Errors: flows.AdminErrors{
				NoSession:    ErrNoSession,
				NotPermitted: ErrNotPermitted,
				Rejected:     ErrForceLogoutRejected,
			},
			Permitted: canForceLogout,
			Now:       c.now,
		},
	}

	b.built = true

	return c, nil
}
