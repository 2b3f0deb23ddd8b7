package flows

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/go-logr/logr/testr"

	"github.com/MrEthical07/goSession/apiclient"
	"github.com/MrEthical07/goSession/session"
)

var (
	errAlready   = errors.New("already")
	errNoConnect = errors.New("no connect")
	errFailed    = errors.New("failed")
)

type fakeAPI struct {
	mu sync.Mutex

	auth     func(apiclient.AuthRequest) (apiclient.AuthResponse, error)
	logout   func(path string, req apiclient.LogoutRequest) (apiclient.StatusResponse, error)
	validate func(sid string) (apiclient.ValidateResponse, error)
	force    func(adminSID string, req apiclient.ForceLogoutRequest) (apiclient.StatusResponse, error)

	logoutPaths []string
	forceCalls  []apiclient.ForceLogoutRequest
}

func (f *fakeAPI) Authenticate(_ context.Context, req apiclient.AuthRequest) (apiclient.AuthResponse, error) {
	return f.auth(req)
}

func (f *fakeAPI) Logout(_ context.Context, path string, req apiclient.LogoutRequest) (apiclient.StatusResponse, error) {
	f.mu.Lock()
	f.logoutPaths = append(f.logoutPaths, path)
	f.mu.Unlock()
	return f.logout(path, req)
}

func (f *fakeAPI) ValidateSession(_ context.Context, sid string) (apiclient.ValidateResponse, error) {
	return f.validate(sid)
}

func (f *fakeAPI) ForceLogout(_ context.Context, adminSID string, req apiclient.ForceLogoutRequest) (apiclient.StatusResponse, error) {
	f.mu.Lock()
	f.forceCalls = append(f.forceCalls, req)
	f.mu.Unlock()
	return f.force(adminSID, req)
}

type fakeChannel struct {
	mu          sync.Mutex
	connected   []string
	disconnects int
}

func (c *fakeChannel) Connect(sid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = append(c.connected, sid)
	return nil
}

func (c *fakeChannel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
}

type cleanupRecorder struct {
	mu        sync.Mutex
	navigated int
	cookies   int
}

func (r *cleanupRecorder) deps(t *testing.T, store session.Store) CleanupDeps {
	return CleanupDeps{
		Store: store,
		ClearCookies: func() {
			r.mu.Lock()
			r.cookies++
			r.mu.Unlock()
		},
		Navigate: func(context.Context) {
			r.mu.Lock()
			r.navigated++
			r.mu.Unlock()
		},
		Logger: testr.New(t),
	}
}

func storeWith(t *testing.T, s session.Session) *session.MemoryStore {
	t.Helper()
	store := session.NewMemoryStore()
	if !s.Empty() {
		if err := store.Set(context.Background(), s); err != nil {
			t.Fatalf("seed store: %v", err)
		}
	}
	return store
}
