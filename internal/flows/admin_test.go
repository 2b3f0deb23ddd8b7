package flows

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/goSession/apiclient"
	"github.com/MrEthical07/goSession/session"
)

var (
	errNoSession    = errors.New("no session")
	errNotPermitted = errors.New("not permitted")
	errRejected     = errors.New("rejected")
)

func adminDeps(api *fakeAPI, store session.Store) AdminDeps {
	return AdminDeps{
		API:       api,
		Store:     store,
		Errors:    AdminErrors{NoSession: errNoSession, NotPermitted: errNotPermitted, Rejected: errRejected},
		Permitted: func(role string) bool { return role == "admin" },
	}
}

func TestRunForceLogoutUser(t *testing.T) {
	admin := session.Session{ID: "adm-1", Role: "admin", Username: "root"}
	api := &fakeAPI{force: func(adminSID string, req apiclient.ForceLogoutRequest) (apiclient.StatusResponse, error) {
		if adminSID != "adm-1" {
			t.Fatalf("expected admin bearer, got %q", adminSID)
		}
		if req.Username != "alice" || req.SessionID != "sid-1" || req.Action != apiclient.ActionForceLogout {
			t.Fatalf("unexpected request %+v", req)
		}
		return apiclient.StatusResponse{Status: "success"}, nil
	}}
	if _, err := RunForceLogoutUser(context.Background(), "alice", "sid-1", adminDeps(api, storeWith(t, admin))); err != nil {
		t.Fatalf("RunForceLogoutUser: %v", err)
	}
	if len(api.forceCalls) != 1 {
		t.Fatalf("expected one call, got %d", len(api.forceCalls))
	}
}

func TestRunForceLogoutUserGuards(t *testing.T) {
	api := &fakeAPI{force: func(string, apiclient.ForceLogoutRequest) (apiclient.StatusResponse, error) {
		return apiclient.StatusResponse{Status: "error"}, nil
	}}

	if _, err := RunForceLogoutUser(context.Background(), "alice", "", adminDeps(api, storeWith(t, session.Session{}))); !errors.Is(err, errNoSession) {
		t.Fatalf("expected errNoSession, got %v", err)
	}
	if _, err := RunForceLogoutUser(context.Background(), "alice", "", adminDeps(api, storeWith(t, alice))); !errors.Is(err, errNotPermitted) {
		t.Fatalf("expected errNotPermitted, got %v", err)
	}
	if len(api.forceCalls) != 0 {
		t.Fatal("server called despite failed guard")
	}
	admin := session.Session{ID: "adm-1", Role: "admin"}
	if _, err := RunForceLogoutUser(context.Background(), "alice", "", adminDeps(api, storeWith(t, admin))); !errors.Is(err, errRejected) {
		t.Fatalf("expected errRejected, got %v", err)
	}
}
