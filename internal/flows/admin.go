package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/apiclient"
	"github.com/MrEthical07/goSession/session"
)

// AdminErrors carries host-level sentinel errors used by the admin flow.
type AdminErrors struct {
	NoSession    error
	NotPermitted error
	Rejected     error
}

// AdminDeps captures admin flow dependencies.
type AdminDeps struct {
	API    API
	Store  session.Store
	Errors AdminErrors
	// Permitted reports whether role may terminate other sessions.
	Permitted func(role string) bool
	Now       func() time.Time
}

// RunForceLogoutUser asks the server to terminate username's session
// (targetSessionID may be empty for all of them) using the caller's session.
func RunForceLogoutUser(ctx context.Context, username, targetSessionID string, deps AdminDeps) (session.Session, error) {
	sess, err := deps.Store.Get(ctx)
	if err != nil {
		return sess, err
	}
	if sess.ID == "" {
		return sess, deps.Errors.NoSession
	}
	if deps.Permitted != nil && !deps.Permitted(sess.Role) {
		return sess, deps.Errors.NotPermitted
	}
	if username == "" {
		return sess, errors.New("username must not be empty")
	}

	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	resp, err := deps.API.ForceLogout(ctx, sess.ID, apiclient.ForceLogoutRequest{
		Username:  username,
		SessionID: targetSessionID,
		Timestamp: apiclient.Timestamp(now()),
		Action:    apiclient.ActionForceLogout,
	})
	if err != nil {
		return sess, err
	}
	if resp.Status != "" && resp.Status != apiclient.StatusSuccess {
		return sess, deps.Errors.Rejected
	}
	return sess, nil
}
