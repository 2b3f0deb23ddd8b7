package flows

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-logr/logr/testr"

	"github.com/MrEthical07/goSession/apiclient"
	"github.com/MrEthical07/goSession/session"
)

func bootstrapDeps(t *testing.T, api *fakeAPI, store session.Store, ch *fakeChannel, rec *cleanupRecorder) BootstrapDeps {
	return BootstrapDeps{
		API:     api,
		Store:   store,
		Channel: ch,
		Cleanup: rec.deps(t, store),
		Logger:  testr.New(t),
	}
}

func TestRunBootstrapEmptyStore(t *testing.T) {
	api := &fakeAPI{validate: func(string) (apiclient.ValidateResponse, error) {
		t.Fatal("validate must not be called without a session")
		return apiclient.ValidateResponse{}, nil
	}}
	ch := &fakeChannel{}
	res, err := RunBootstrap(context.Background(), bootstrapDeps(t, api, storeWith(t, session.Session{}), ch, &cleanupRecorder{}))
	if err != nil || !res.Session.Empty() || len(ch.connected) != 0 {
		t.Fatalf("unexpected res=%+v err=%v connected=%v", res, err, ch.connected)
	}
}

func TestRunBootstrapRoleMatches(t *testing.T) {
	api := &fakeAPI{validate: func(sid string) (apiclient.ValidateResponse, error) {
		return apiclient.ValidateResponse{Status: "success", Role: "user"}, nil
	}}
	ch := &fakeChannel{}
	res, err := RunBootstrap(context.Background(), bootstrapDeps(t, api, storeWith(t, alice), ch, &cleanupRecorder{}))
	if err != nil {
		t.Fatalf("RunBootstrap: %v", err)
	}
	if !res.Validated || res.RoleMismatch || res.Session != alice {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(ch.connected) != 1 || ch.connected[0] != alice.ID {
		t.Fatalf("expected channel connected with %s, got %v", alice.ID, ch.connected)
	}
}

func TestRunBootstrapCorrectsRole(t *testing.T) {
	api := &fakeAPI{validate: func(string) (apiclient.ValidateResponse, error) {
		return apiclient.ValidateResponse{Status: "success", User: apiclient.ValidatedUser{Username: "alice", Role: "admin"}}, nil
	}}
	store := storeWith(t, alice)
	res, err := RunBootstrap(context.Background(), bootstrapDeps(t, api, store, &fakeChannel{}, &cleanupRecorder{}))
	if err != nil {
		t.Fatalf("RunBootstrap: %v", err)
	}
	if !res.RoleMismatch || res.ServerRole != "admin" || res.Session.Role != "admin" {
		t.Fatalf("unexpected result %+v", res)
	}
	got, _ := store.Get(context.Background())
	if got.Role != "admin" || got.ID != alice.ID {
		t.Fatalf("store not corrected: %+v", got)
	}
}

func TestRunBootstrapInvalidSessionCleansUp(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		api := &fakeAPI{validate: func(string) (apiclient.ValidateResponse, error) {
			return apiclient.ValidateResponse{}, &apiclient.RequestFailed{Status: status}
		}}
		store := storeWith(t, alice)
		ch := &fakeChannel{}
		rec := &cleanupRecorder{}
		res, err := RunBootstrap(context.Background(), bootstrapDeps(t, api, store, ch, rec))
		if err != nil {
			t.Fatalf("status %d: %v", status, err)
		}
		if !res.Invalidated || !res.Session.Empty() {
			t.Fatalf("status %d: unexpected result %+v", status, res)
		}
		if ch.disconnects != 1 || rec.navigated != 1 {
			t.Fatalf("status %d: disconnects=%d navigated=%d", status, ch.disconnects, rec.navigated)
		}
		got, _ := store.Get(context.Background())
		if !got.Empty() {
			t.Fatalf("status %d: store not cleared", status)
		}
	}
}

func TestRunBootstrapNetworkFailureTrustsStoredRole(t *testing.T) {
	api := &fakeAPI{validate: func(string) (apiclient.ValidateResponse, error) {
		return apiclient.ValidateResponse{}, apiclient.ErrNetworkUnavailable
	}}
	store := storeWith(t, alice)
	rec := &cleanupRecorder{}
	res, err := RunBootstrap(context.Background(), bootstrapDeps(t, api, store, &fakeChannel{}, rec))
	if err != nil {
		t.Fatalf("RunBootstrap: %v", err)
	}
	if res.Validated || res.Invalidated || res.Session != alice || rec.navigated != 0 {
		t.Fatalf("unexpected result %+v navigated=%d", res, rec.navigated)
	}
}
