package fakeserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goSession/apiclient"
)

// User is an account known to the server.
type User struct {
	Username string
	Email    string
	Password string
	Role     string
}

// Options configures a Server.
type Options struct {
	Users []User
	// Secret signs session ids. Defaults to a fixed development key.
	Secret     []byte
	SessionTTL time.Duration
	// Redis holds the session registry. Nil starts an embedded miniredis.
	Redis       redis.UniversalClient
	RedisPrefix string
	// AllowConcurrentLogin replaces a live session instead of answering 403.
	AllowConcurrentLogin bool
	// SessionIDs overrides JWT session ids, for tests that need fixed values.
	SessionIDs func() string
	Hash       HashParams
	// Throttle limits failed logins. The zero value disables it.
	Throttle ThrottleConfig
	Logger   logr.Logger
	Now      func() time.Time
}

// Server is the fake session API.
type Server struct {
	engine *gin.Engine
	hub    *hub
	reg    *registry
	limit  *loginThrottle
	tokens *tokenManager
	mini   *miniredis.Miniredis
	log    logr.Logger
	now    func() time.Time
	mintID func() string
	single bool

	mu       sync.RWMutex
	users    map[string]storedUser
	disabled map[string]int
	calls    map[string]int
}

type storedUser struct {
	User
	hash string
}

const devSecret = "gosession-development-secret-key"

// New builds a Server. Call Close to release the embedded Redis.
func New(opts Options) (*Server, error) {
	secret := opts.Secret
	if len(secret) == 0 {
		secret = []byte(devSecret)
	}
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	tokens, err := newTokenManager(secret, ttl)
	if err != nil {
		return nil, err
	}
	params := opts.Hash
	if params == (HashParams{}) {
		params = DefaultHashParams()
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	prefix := opts.RedisPrefix
	if prefix == "" {
		prefix = "fs"
	}

	s := &Server{
		tokens:   tokens,
		log:      opts.Logger,
		now:      opts.Now,
		mintID:   opts.SessionIDs,
		single:   !opts.AllowConcurrentLogin,
		users:    map[string]storedUser{},
		disabled: map[string]int{},
		calls:    map[string]int{},
	}
	if s.now == nil {
		s.now = time.Now
	}

	rdb := opts.Redis
	if rdb == nil {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start embedded redis: %w", err)
		}
		s.mini = mr
		rdb = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	}
	s.reg = &registry{rdb: rdb, prefix: prefix, ttl: ttl}
	s.limit = newLoginThrottle(rdb, prefix, opts.Throttle)

	for _, u := range opts.Users {
		if err := s.AddUser(u, params); err != nil {
			s.Close()
			return nil, err
		}
	}

	s.hub = newHub(opts.Logger.WithName("hub"))
	s.engine = s.routes()
	return s, nil
}

// AddUser registers or replaces an account.
func (s *Server) AddUser(u User, params HashParams) error {
	if u.Username == "" {
		return errors.New("username required")
	}
	if u.Role == "" {
		u.Role = "user"
	}
	hash, err := hashPassword(params, u.Password)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[strings.ToLower(u.Username)] = storedUser{User: u, hash: hash}
	return nil
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.countCalls())

	r.POST(apiclient.PathAuth, s.handleAuth)
	r.POST(apiclient.PathLogout, s.handleLogout)
	r.POST(apiclient.PathSignout, s.handleLogout)
	r.POST(apiclient.PathValidateSession, s.handleValidate)
	r.POST(apiclient.PathForceLogout, s.handleForceLogout)
	r.GET("/ws", func(c *gin.Context) {
		s.hub.serve(c.Writer, c.Request)
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": apiclient.StatusSuccess})
	})
	return r
}

// Handler serves the API and the push endpoint.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Close drops push connections and stops the embedded Redis.
func (s *Server) Close() {
	if s.hub != nil {
		s.hub.close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

// DisableEndpoint makes the next n requests to path answer 404 (n < 0 means
// forever, 0 re-enables it).
func (s *Server) DisableEndpoint(path string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n == 0 {
		delete(s.disabled, path)
		return
	}
	s.disabled[path] = n
}

// Calls returns how many requests reached path.
func (s *Server) Calls(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[path]
}

func (s *Server) countCalls() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		s.mu.Lock()
		s.calls[path]++
		n, off := s.disabled[path]
		if off && n > 0 {
			if n == 1 {
				delete(s.disabled, path)
			} else {
				s.disabled[path] = n - 1
			}
		}
		s.mu.Unlock()
		if off {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"status": "error", "message": "not found"})
			return
		}
		c.Next()
	}
}

// Push sends msg to the connection registered as sessionID.
func (s *Server) Push(sessionID string, msg any) error {
	ok, err := s.hub.push(sessionID, msg)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no push connection registered for %q", sessionID)
	}
	return nil
}

// Broadcast sends msg to every push connection and returns how many got it.
func (s *Server) Broadcast(msg any) int {
	return s.hub.broadcast(msg)
}

// DropConnection closes the push connection registered as sessionID without
// revoking the session.
func (s *Server) DropConnection(sessionID string) bool {
	return s.hub.drop(sessionID)
}

// Registered lists the session ids with a registered push connection.
func (s *Server) Registered() []string {
	return s.hub.registered()
}

// Connections counts open push connections.
func (s *Server) Connections() int {
	return s.hub.count()
}

// WaitRegistered blocks until a push connection registers as sessionID.
func (s *Server) WaitRegistered(ctx context.Context, sessionID string) error {
	for {
		changed := s.hub.changed()
		for _, sid := range s.hub.registered() {
			if sid == sessionID {
				return nil
			}
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ActiveSession returns the live session id of username.
func (s *Server) ActiveSession(ctx context.Context, username string) (string, error) {
	return s.reg.active(ctx, username)
}

// SetSessionRole changes the role the server reports for sessionID.
func (s *Server) SetSessionRole(ctx context.Context, sessionID, role string) error {
	return s.reg.setRole(ctx, sessionID, role)
}

// Revoke ends sessionID on the server side only, without a push.
func (s *Server) Revoke(ctx context.Context, sessionID string) error {
	_, err := s.reg.revoke(ctx, sessionID)
	return err
}
