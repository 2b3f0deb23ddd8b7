package flows

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-logr/logr/testr"

	"github.com/MrEthical07/goSession/apiclient"
	"github.com/MrEthical07/goSession/session"
)

func loginDeps(t *testing.T, api *fakeAPI, store session.Store, ch *fakeChannel) LoginDeps {
	return LoginDeps{
		API:     api,
		Store:   store,
		Channel: ch,
		Errors:  LoginErrors{AlreadyLoggedIn: errAlready, CannotConnect: errNoConnect, Failed: errFailed},
		Logger:  testr.New(t),
	}
}

func TestRunLoginStoresSessionAndConnects(t *testing.T) {
	api := &fakeAPI{auth: func(req apiclient.AuthRequest) (apiclient.AuthResponse, error) {
		if req.Username != "alice" || req.Password != "pw" {
			t.Fatalf("unexpected credentials %+v", req)
		}
		return apiclient.AuthResponse{Status: "success", SessionID: "sid-1", Role: "user"}, nil
	}}
	store := storeWith(t, session.Session{ID: "old", Role: "admin", Username: "bob"})
	if err := store.SetTransient(context.Background(), "view", "x"); err != nil {
		t.Fatalf("SetTransient: %v", err)
	}
	ch := &fakeChannel{}

	res, err := RunLogin(context.Background(), "alice", "pw", loginDeps(t, api, store, ch))
	if err != nil {
		t.Fatalf("RunLogin: %v", err)
	}
	got, _ := store.Get(context.Background())
	want := session.Session{ID: "sid-1", Role: "user", Username: "alice"}
	if got != want || res.Session != want {
		t.Fatalf("stored %+v result %+v, want %+v", got, res.Session, want)
	}
	if _, ok, _ := store.Transient(context.Background(), "view"); ok {
		t.Fatal("transient keys from the previous session survived login")
	}
	if len(ch.connected) != 1 || ch.connected[0] != "sid-1" {
		t.Fatalf("expected one connect with sid-1, got %v", ch.connected)
	}
}

func TestRunLoginEmailFallback(t *testing.T) {
	api := &fakeAPI{auth: func(apiclient.AuthRequest) (apiclient.AuthResponse, error) {
		return apiclient.AuthResponse{Status: "success", SessionID: "sid-2", Role: "reseller"}, nil
	}}
	store := storeWith(t, session.Session{})
	res, err := RunLogin(context.Background(), "r@example.com", "pw", loginDeps(t, api, store, &fakeChannel{}))
	if err != nil {
		t.Fatalf("RunLogin: %v", err)
	}
	if res.Session.Email != "r@example.com" || res.Session.Username != "r@example.com" {
		t.Fatalf("unexpected session %+v", res.Session)
	}
}

func TestRunLoginFailuresLeaveStoreUntouched(t *testing.T) {
	prior := session.Session{ID: "keep", Role: "user", Username: "carol"}
	cases := []struct {
		name string
		resp apiclient.AuthResponse
		err  error
		want error
	}{
		{name: "conflict", err: &apiclient.RequestFailed{Status: http.StatusForbidden}, want: errAlready},
		{name: "network", err: apiclient.ErrNetworkUnavailable, want: errNoConnect},
		{name: "unauthorized", err: &apiclient.RequestFailed{Status: http.StatusUnauthorized, Message: "bad password"}, want: errFailed},
		{name: "status error", resp: apiclient.AuthResponse{Status: "error", Message: "nope"}, want: errFailed},
		{name: "missing session id", resp: apiclient.AuthResponse{Status: "success"}, want: errFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := &fakeAPI{auth: func(apiclient.AuthRequest) (apiclient.AuthResponse, error) {
				return tc.resp, tc.err
			}}
			store := storeWith(t, prior)
			ch := &fakeChannel{}
			_, err := RunLogin(context.Background(), "carol", "pw", loginDeps(t, api, store, ch))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			got, _ := store.Get(context.Background())
			if got != prior {
				t.Fatalf("store changed on failure: %+v", got)
			}
			if len(ch.connected) != 0 {
				t.Fatalf("channel connected on failure: %v", ch.connected)
			}
		})
	}
}

func TestRunLoginKeepsServerMessage(t *testing.T) {
	api := &fakeAPI{auth: func(apiclient.AuthRequest) (apiclient.AuthResponse, error) {
		return apiclient.AuthResponse{}, &apiclient.RequestFailed{Status: http.StatusUnauthorized, Message: "Invalid credentials"}
	}}
	res, err := RunLogin(context.Background(), "x", "y", loginDeps(t, api, storeWith(t, session.Session{}), &fakeChannel{}))
	if !errors.Is(err, errFailed) {
		t.Fatalf("expected errFailed, got %v", err)
	}
	if res.Message != "Invalid credentials" || res.Status != http.StatusUnauthorized {
		t.Fatalf("unexpected result %+v", res)
	}
}
