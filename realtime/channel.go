package realtime

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-logr/logr"
)

var (
	// ErrNoSessionID is returned by Connect when called without a session id.
	ErrNoSessionID = errors.New("realtime: no session id")
	// ErrNoURL is returned by New when no endpoint is configured.
	ErrNoURL = errors.New("realtime: endpoint URL required")
	// ErrNoSessionSource is returned by New when no session source is configured.
	ErrNoSessionSource = errors.New("realtime: session source required")
)

// DefaultReconnectDelay is the fixed wait before reconnecting after an
// unplanned close.
const DefaultReconnectDelay = 5 * time.Second

// SessionSource yields the current session id. It is read again every time a
// reconnect fires.
type SessionSource interface {
	CurrentSessionID(ctx context.Context) (string, error)
}

// SessionSourceFunc adapts a function to SessionSource.
type SessionSourceFunc func(ctx context.Context) (string, error)

func (f SessionSourceFunc) CurrentSessionID(ctx context.Context) (string, error) {
	return f(ctx)
}

// Handlers receive dispatched messages on the connection's read goroutine.
// They may call Disconnect.
type Handlers struct {
	ForcedLogout    func(ForcedLogout)
	RefreshSessions func()
	ServiceUpdated  func(ServiceUpdate)
}

// Hooks observe the channel. StateChanged runs with the channel lock held and
// must not call back into the Channel.
type Hooks struct {
	StateChanged       func(State)
	Opened             func(sessionID string)
	Closed             func(err error)
	ReconnectScheduled func(delay time.Duration)
	Reconnecting       func(sessionID string)
	Malformed          func(err error)
}

// Options configures a Channel.
type Options struct {
	URL string
	// ReconnectDelay defaults to DefaultReconnectDelay.
	ReconnectDelay time.Duration
	// MaxReconnectDelay enables a capped exponential backoff when greater than
	// ReconnectDelay. Zero keeps the fixed delay.
	MaxReconnectDelay time.Duration
	HandshakeTimeout  time.Duration
	RegisterStyle     RegisterStyle
	SessionIDInQuery  bool

	// Dialer defaults to WebSocketDialer{}.
	Dialer   Dialer
	Source   SessionSource
	Handlers Handlers
	Hooks    Hooks
	Logger   logr.Logger
}

// Channel owns at most one live push connection.
type Channel struct {
	url            string
	reconnectDelay time.Duration
	handshake      time.Duration
	style          RegisterStyle
	inQuery        bool
	dialer         Dialer
	source         SessionSource
	handlers       Handlers
	hooks          Hooks
	log            logr.Logger

	mu         sync.Mutex
	state      State
	conn       Conn
	bound      string
	gen        uint64
	timer      *time.Timer
	cancelDial context.CancelFunc
	delays     backoff.BackOff

	running sync.WaitGroup
}

// New validates opts and returns a disconnected Channel.
func New(opts Options) (*Channel, error) {
	if opts.URL == "" {
		return nil, ErrNoURL
	}
	if _, err := url.Parse(opts.URL); err != nil {
		return nil, err
	}
	if opts.Source == nil {
		return nil, ErrNoSessionSource
	}
	delay := opts.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	handshake := opts.HandshakeTimeout
	if handshake <= 0 {
		handshake = 10 * time.Second
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = WebSocketDialer{}
	}

	return &Channel{
		url:            opts.URL,
		reconnectDelay: delay,
		handshake:      handshake,
		style:          opts.RegisterStyle,
		inQuery:        opts.SessionIDInQuery,
		dialer:         dialer,
		source:         opts.Source,
		handlers:       opts.Handlers,
		hooks:          opts.Hooks,
		log:            opts.Logger,
		delays:         newReconnectBackOff(delay, opts.MaxReconnectDelay),
	}, nil
}

func newReconnectBackOff(delay, max time.Duration) backoff.BackOff {
	if max <= delay {
		return backoff.NewConstantBackOff(delay)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = delay
	b.MaxInterval = max
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.Reset()
	return b
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// BoundSessionID returns the session id the current connection was opened
// for, or "" when disconnected.
func (c *Channel) BoundSessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bound
}

// Connect opens a connection registered under sessionID. It returns at once;
// dialing happens on a background goroutine. Calling Connect while Connecting
// or Open for the same id is a no-op. A different id drops the current
// connection and registers a new one.
func (c *Channel) Connect(sessionID string) error {
	return c.connect(sessionID, 0, false)
}

func (c *Channel) connect(sessionID string, expectGen uint64, checkGen bool) error {
	if sessionID == "" {
		c.log.Info("realtime connect skipped", "reason", "no session id")
		return ErrNoSessionID
	}

	c.mu.Lock()
	if checkGen && c.gen != expectGen {
		c.mu.Unlock()
		return nil
	}
	if c.state == StateConnecting || c.state == StateOpen {
		state, bound := c.state, c.bound
		c.mu.Unlock()
		if checkGen || bound == sessionID {
			c.log.V(1).Info("realtime connect ignored", "state", state.String())
			return nil
		}
		c.log.Info("realtime rebinding", "from", Redact(bound), "to", Redact(sessionID))
		c.Disconnect()
		return c.connect(sessionID, 0, false)
	}
	c.stopTimerLocked()
	c.gen++
	gen := c.gen
	c.bound = sessionID
	ctx, cancel := context.WithTimeout(context.Background(), c.handshake)
	c.cancelDial = cancel
	c.setStateLocked(StateConnecting)
	c.running.Add(1)
	c.mu.Unlock()

	go c.run(ctx, gen, sessionID)
	return nil
}

// ReconnectPending reports whether a reconnect timer is armed.
func (c *Channel) ReconnectPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

// Disconnect closes the connection and cancels any pending reconnect. It
// does not wait for the read goroutine, so handlers may call it.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.stopTimerLocked()
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	conn := c.conn
	c.conn = nil
	c.bound = ""
	c.delays.Reset()
	idle := c.state == StateDisconnected
	if !idle {
		c.setStateLocked(StateClosing)
	}
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if idle {
		return
	}

	c.mu.Lock()
	if c.gen == gen {
		c.setStateLocked(StateDisconnected)
	}
	c.mu.Unlock()
	c.log.V(1).Info("realtime disconnected")
}

// Close disconnects and waits for the read goroutine to exit. Unlike
// Disconnect it must not be called from a handler.
func (c *Channel) Close() error {
	c.Disconnect()
	c.running.Wait()
	return nil
}

func (c *Channel) run(ctx context.Context, gen uint64, sessionID string) {
	defer c.running.Done()
	conn, err := c.dialer.Dial(ctx, c.endpoint(sessionID))
	c.finishDial(gen)
	if err != nil {
		c.log.Info("realtime dial failed", "error", err.Error())
		c.closed(gen, err)
		return
	}
	if !c.adopt(gen, conn) {
		_ = conn.Close()
		return
	}

	if err := conn.WriteJSON(newRegisterMessage(c.style, sessionID, time.Now())); err != nil {
		c.log.Info("realtime register failed", "error", err.Error())
		c.closed(gen, err)
		return
	}
	if !c.markOpen(gen) {
		_ = conn.Close()
		return
	}
	c.log.Info("realtime connected", "session", Redact(sessionID))
	if c.hooks.Opened != nil {
		c.hooks.Opened(sessionID)
	}

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.closed(gen, err)
			return
		}
		c.dispatch(data)
	}
}

func (c *Channel) finishDial(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen && c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
}

func (c *Channel) adopt(gen uint64, conn Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.conn = conn
	return true
}

func (c *Channel) markOpen(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.delays.Reset()
	c.setStateLocked(StateOpen)
	return true
}

// closed handles an unplanned end of connection gen.
func (c *Channel) closed(gen uint64, cause error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.conn = nil
	c.bound = ""
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	c.log.Info("realtime connection closed", "error", errString(cause))
	if c.hooks.Closed != nil {
		c.hooks.Closed(cause)
	}
	c.scheduleReconnect(gen)
}

func (c *Channel) scheduleReconnect(gen uint64) {
	sessionID, err := c.source.CurrentSessionID(context.Background())
	if err != nil {
		// the store may recover; the timer re-reads it
		c.log.Error(err, "realtime session lookup failed")
	} else if sessionID == "" {
		c.log.Info("realtime reconnect skipped", "reason", "no session")
		return
	}

	c.mu.Lock()
	if c.gen != gen || c.state != StateDisconnected {
		c.mu.Unlock()
		return
	}
	delay := c.delays.NextBackOff()
	if delay == backoff.Stop {
		delay = c.reconnectDelay
	}
	c.timer = time.AfterFunc(delay, func() { c.reconnect(gen) })
	c.mu.Unlock()

	c.log.V(1).Info("realtime reconnect scheduled", "delay", delay.String())
	if c.hooks.ReconnectScheduled != nil {
		c.hooks.ReconnectScheduled(delay)
	}
}

func (c *Channel) reconnect(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.state != StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.mu.Unlock()

	sessionID, err := c.source.CurrentSessionID(context.Background())
	if err != nil {
		c.log.Error(err, "realtime session lookup failed")
		c.scheduleReconnect(gen)
		return
	}
	if sessionID == "" {
		c.log.Info("realtime reconnect skipped", "reason", "no session")
		return
	}
	if c.hooks.Reconnecting != nil {
		c.hooks.Reconnecting(sessionID)
	}
	_ = c.connect(sessionID, gen, true)
}

func (c *Channel) dispatch(data []byte) {
	msg, err := ParseMessage(data)
	if err != nil {
		c.log.Info("realtime message dropped", "error", err.Error())
		if c.hooks.Malformed != nil {
			c.hooks.Malformed(err)
		}
		return
	}

	switch msg.Kind() {
	case KindForcedLogout:
		if c.handlers.ForcedLogout != nil {
			c.handlers.ForcedLogout(msg.ForcedLogout())
		}
	case KindRefreshSessions:
		if c.handlers.RefreshSessions != nil {
			c.handlers.RefreshSessions()
		}
	case KindServiceUpdated:
		if c.handlers.ServiceUpdated != nil {
			c.handlers.ServiceUpdated(msg.ServiceUpdate())
		}
	default:
		c.log.V(1).Info("realtime message ignored", "kind", msg.rawKind())
	}
}

func (c *Channel) endpoint(sessionID string) string {
	if !c.inQuery {
		return c.url
	}
	u, err := url.Parse(c.url)
	if err != nil {
		return c.url
	}
	q := u.Query()
	q.Set("sessionId", sessionID)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Channel) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	if c.hooks.StateChanged != nil {
		c.hooks.StateChanged(s)
	}
}

func (c *Channel) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Redact shortens a session id for logs.
func Redact(sessionID string) string {
	if len(sessionID) <= 6 {
		return sessionID
	}
	return sessionID[:6] + "..."
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
