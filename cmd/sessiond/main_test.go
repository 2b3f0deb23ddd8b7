package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/apiclient"
	"github.com/MrEthical07/goSession/internal/fakeserver"
	"github.com/MrEthical07/goSession/session"
)

func envMap(m map[string]string) envLookup {
	return func(k string) string { return m[k] }
}

func TestLoadConfigEnvAndFlags(t *testing.T) {
	env := envMap(map[string]string{
		"GOSESSION_API_URL":         "https://api.example.com",
		"GOSESSION_USERNAME":        "alice",
		"GOSESSION_STORE":           "redis",
		"GOSESSION_RECONNECT_DELAY": "2s",
		"GOSESSION_AUDIT":           "false",
	})

	cfg, err := loadConfig([]string{"-username", "bob", "-redis-addr", "10.0.0.1:6379"}, env, io.Discard)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.APIURL != "https://api.example.com" {
		t.Fatalf("APIURL = %q", cfg.APIURL)
	}
	if cfg.Username != "bob" {
		t.Fatalf("flag should override env, got username %q", cfg.Username)
	}
	if cfg.Store != storeRedis || cfg.RedisAddr != "10.0.0.1:6379" {
		t.Fatalf("unexpected store config: %+v", cfg)
	}
	if cfg.ReconnectDelay != 2*time.Second {
		t.Fatalf("ReconnectDelay = %v", cfg.ReconnectDelay)
	}
	if cfg.Audit {
		t.Fatal("expected audit disabled from env")
	}
}

func TestLoadConfigIgnoresBadEnvValues(t *testing.T) {
	env := envMap(map[string]string{
		"GOSESSION_RECONNECT_DELAY": "soon",
		"GOSESSION_AUDIT":           "maybe",
	})
	cfg, err := loadConfig(nil, env, io.Discard)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.ReconnectDelay != 5*time.Second || !cfg.Audit {
		t.Fatalf("expected defaults for unparsable env, got %+v", cfg)
	}
}

func TestLoadConfigRejects(t *testing.T) {
	cases := [][]string{
		{"-store", "etcd"},
		{"-store", "sqlite", "-sqlite-path", ""},
		{"-reconnect-delay", "0s"},
		{"-logout-timeout", "-1s"},
		{"-no-such-flag"},
	}
	for _, args := range cases {
		if _, err := loadConfig(args, envMap(nil), io.Discard); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestRunUsageErrors(t *testing.T) {
	if code := run(context.Background(), []string{"-store", "etcd"}, envMap(nil), io.Discard); code != exitUsage {
		t.Fatalf("exit = %d, want %d", code, exitUsage)
	}
	if code := run(context.Background(), []string{"-h"}, envMap(nil), io.Discard); code != exitOK {
		t.Fatalf("exit for -h = %d, want %d", code, exitOK)
	}
}

type daemonEnv struct {
	server *fakeserver.Server
	url    string
}

func newDaemonEnv(t *testing.T) *daemonEnv {
	return newWrappedDaemonEnv(t, nil)
}

// newWrappedDaemonEnv lets a test intercept requests before the fake
// server sees them.
func newWrappedDaemonEnv(t *testing.T, wrap func(http.Handler) http.Handler) *daemonEnv {
	t.Helper()
	s, err := fakeserver.New(fakeserver.Options{
		Users:  []fakeserver.User{{Username: "alice", Password: "pw", Role: goSession.RoleUser}},
		Logger: testr.New(t).WithName("server"),
	})
	if err != nil {
		t.Fatalf("fakeserver.New: %v", err)
	}
	h := s.Handler()
	if wrap != nil {
		h = wrap(h)
	}
	ts := httptest.NewServer(h)
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return &daemonEnv{server: s, url: ts.URL}
}

func (e *daemonEnv) config() daemonConfig {
	return daemonConfig{
		APIURL:         e.url,
		Username:       "alice",
		Password:       "pw",
		Store:          storeMemory,
		ReconnectDelay: 50 * time.Millisecond,
		LogoutTimeout:  2 * time.Second,
	}
}

// waitLive returns the session id once the daemon's push connection is
// registered.
func (e *daemonEnv) waitLive(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		sid, err := e.server.ActiveSession(ctx, "alice")
		if err == nil && sid != "" {
			if err := e.server.WaitRegistered(ctx, sid); err != nil {
				t.Fatalf("WaitRegistered: %v", err)
			}
			return sid
		}
		select {
		case <-ctx.Done():
			t.Fatal("timed out waiting for the daemon to log in")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func startDaemon(t *testing.T, ctx context.Context, cfg daemonConfig) <-chan int {
	t.Helper()
	done := make(chan int, 1)
	go func() {
		done <- runDaemon(ctx, cfg, testr.New(t).WithName("sessiond"))
	}()
	return done
}

func waitExit(t *testing.T, done <-chan int) int {
	t.Helper()
	select {
	case code := <-done:
		return code
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not exit")
		return -1
	}
}

func TestDaemonExitsOnForcedLogout(t *testing.T) {
	env := newDaemonEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := startDaemon(t, ctx, env.config())
	sid := env.waitLive(t)

	if err := env.server.Push(sid, fakeserver.ForcedLogoutPush{Action: "force_logout", TargetSessionID: sid}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if code := waitExit(t, done); code != exitTerminated {
		t.Fatalf("exit = %d, want %d", code, exitTerminated)
	}
	if n := env.server.Calls(apiclient.PathLogout); n != 0 {
		t.Fatalf("forced logout must not call the logout endpoint, got %d calls", n)
	}
}

func TestDaemonIgnoresForcedLogoutForOtherSession(t *testing.T) {
	env := newDaemonEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := startDaemon(t, ctx, env.config())
	sid := env.waitLive(t)

	if err := env.server.Push(sid, fakeserver.ForcedLogoutPush{Action: "force_logout", TargetSessionID: "someone-else"}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	select {
	case code := <-done:
		t.Fatalf("daemon exited with %d on a signal for another session", code)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	if code := waitExit(t, done); code != exitOK {
		t.Fatalf("exit = %d, want %d", code, exitOK)
	}
}

func TestDaemonLogsOutOnShutdown(t *testing.T) {
	env := newDaemonEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := startDaemon(t, ctx, env.config())
	env.waitLive(t)
	cancel()

	if code := waitExit(t, done); code != exitOK {
		t.Fatalf("exit = %d, want %d", code, exitOK)
	}
	if n := env.server.Calls(apiclient.PathLogout); n != 1 {
		t.Fatalf("expected one logout call, got %d", n)
	}
	if sid, _ := env.server.ActiveSession(context.Background(), "alice"); sid != "" {
		t.Fatalf("server still holds session %q after logout", sid)
	}
}

func TestDaemonLoginFailure(t *testing.T) {
	env := newDaemonEnv(t)
	cfg := env.config()
	cfg.Password = "wrong"

	code := runDaemon(context.Background(), cfg, testr.New(t))
	if code != exitError {
		t.Fatalf("exit = %d, want %d", code, exitError)
	}
}

func TestDaemonWithoutCredentials(t *testing.T) {
	env := newDaemonEnv(t)
	cfg := env.config()
	cfg.Username = ""

	if code := runDaemon(context.Background(), cfg, testr.New(t)); code != exitUsage {
		t.Fatalf("exit = %d, want %d", code, exitUsage)
	}
}

func TestMetricsRouter(t *testing.T) {
	cfg := goSession.DefaultConfig()
	cfg.API.RuntimeBaseURL = "http://127.0.0.1:1"
	c, err := goSession.New().WithConfig(cfg).WithMetricsEnabled(true).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer c.Close()
	r := newMetricsRouter(c)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "gosession_login_success_total 0") {
		t.Fatalf("unexpected /metrics response %d:\n%s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"realtime"`) {
		t.Fatalf("unexpected /healthz response %d: %s", rec.Code, rec.Body.String())
	}
}

func TestOpenStoreBackends(t *testing.T) {
	ctx := context.Background()

	st, release, err := openStore(ctx, daemonConfig{Store: storeRedis, RedisPrefix: "t"})
	if err != nil {
		t.Fatalf("openStore redis: %v", err)
	}
	defer release()
	if _, err := st.Get(ctx); err != nil {
		t.Fatalf("Get on embedded redis: %v", err)
	}

	st, release2, err := openStore(ctx, daemonConfig{Store: storeMemory})
	if err != nil {
		t.Fatalf("openStore memory: %v", err)
	}
	defer release2()
	if _, err := st.Get(ctx); err != nil {
		t.Fatalf("Get on memory store: %v", err)
	}
}

func TestDaemonRestoresStoredSession(t *testing.T) {
	env := newDaemonEnv(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")
	stored := seedSQLiteSession(t, env, path)

	cfg := env.config()
	cfg.Store = storeSQLite
	cfg.SQLitePath = path
	cfg.Username = ""

	runCtx, cancel := context.WithCancel(ctx)
	done := startDaemon(t, runCtx, cfg)
	if sid := env.waitLive(t); sid != stored {
		t.Fatalf("daemon registered %q, want the stored %q", sid, stored)
	}
	waitFor(t, "session validation", func() bool {
		return env.server.Calls(apiclient.PathValidateSession) == 1
	})
	if n := env.server.Calls(apiclient.PathAuth); n != 1 {
		t.Fatalf("restored session must not log in again, got %d auth calls", n)
	}

	cancel()
	if code := waitExit(t, done); code != exitOK {
		t.Fatalf("exit = %d, want %d", code, exitOK)
	}

	st, err := session.OpenSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	if got, _ := st.Get(ctx); !got.Empty() {
		t.Fatalf("stored session survived logout: %+v", got)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func seedSQLiteSession(t *testing.T, env *daemonEnv, path string) string {
	t.Helper()
	ctx := context.Background()
	api, err := apiclient.New(apiclient.Options{BaseURL: env.url})
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}
	resp, err := api.Authenticate(ctx, apiclient.AuthRequest{Username: "alice", Password: "pw"})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	st, err := session.OpenSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLiteStore: %v", err)
	}
	defer st.Close()
	if err := st.Set(ctx, session.Session{ID: resp.SessionID, Role: resp.Role, Username: "alice"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	return resp.SessionID
}

func TestDaemonLogsOutWhenStoppedDuringBootstrap(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	env := newWrappedDaemonEnv(t, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == apiclient.PathValidateSession {
				_, _ = io.Copy(io.Discard, r.Body)
				once.Do(func() { close(entered) })
				select {
				case <-r.Context().Done():
				case <-release:
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	t.Cleanup(func() { close(release) })

	path := filepath.Join(t.TempDir(), "session.db")
	sid := seedSQLiteSession(t, env, path)

	cfg := env.config()
	cfg.Store = storeSQLite
	cfg.SQLitePath = path
	cfg.Username = ""

	runCtx, cancel := context.WithCancel(context.Background())
	done := startDaemon(t, runCtx, cfg)
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("daemon never validated the stored session")
	}

	cancel()
	if code := waitExit(t, done); code != exitOK {
		t.Fatalf("exit = %d, want %d", code, exitOK)
	}
	if n := env.server.Calls(apiclient.PathLogout); n != 1 {
		t.Fatalf("expected one logout call, got %d", n)
	}
	active, err := env.server.ActiveSession(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ActiveSession: %v", err)
	}
	if active == sid {
		t.Fatal("server session survived shutdown during bootstrap")
	}
}
