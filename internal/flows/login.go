package flows

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-logr/logr"

	"github.com/MrEthical07/goSession/apiclient"
	"github.com/MrEthical07/goSession/session"
)

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	AlreadyLoggedIn error
	CannotConnect   error
	Failed          error
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	API     API
	Store   session.Store
	Channel Channel
	Errors  LoginErrors
	Logger  logr.Logger
}

// LoginResult describes what the server answered. Message is the server's
// own text, if any.
type LoginResult struct {
	Session session.Session
	Message string
	Status  int
}

// RunLogin authenticates and, on success, replaces the stored session and
// opens the realtime channel. On any failure the store is left untouched.
func RunLogin(ctx context.Context, username, password string, deps LoginDeps) (LoginResult, error) {
	resp, err := deps.API.Authenticate(ctx, apiclient.AuthRequest{Username: username, Password: password})
	if err != nil {
		var result LoginResult
		var failed *apiclient.RequestFailed
		if errors.As(err, &failed) {
			result.Status = failed.Status
			result.Message = failed.Message
		}
		switch {
		case ctx.Err() != nil && errors.Is(err, ctx.Err()):
			return result, err
		case result.Status == http.StatusForbidden:
			return result, deps.Errors.AlreadyLoggedIn
		case apiclient.IsNetworkUnavailable(err):
			return result, deps.Errors.CannotConnect
		default:
			return result, fmt.Errorf("%w: %v", deps.Errors.Failed, err)
		}
	}

	result := LoginResult{Status: http.StatusOK, Message: resp.Message}
	if resp.Status != apiclient.StatusSuccess || resp.SessionID == "" {
		return result, deps.Errors.Failed
	}

	sess := session.Session{
		ID:       resp.SessionID,
		Role:     resp.Role,
		Username: resp.Username,
		Email:    resp.Email,
	}
	if sess.Username == "" {
		sess.Username = username
	}
	if sess.Email == "" && strings.Contains(username, "@") {
		sess.Email = username
	}

	if err := deps.Store.Clear(ctx); err != nil {
		return result, err
	}
	if err := deps.Store.Set(ctx, sess); err != nil {
		return result, err
	}
	result.Session = sess

	if err := deps.Channel.Connect(sess.ID); err != nil {
		// The session is valid without push updates; the channel retries on its own.
		deps.Logger.Error(err, "realtime connect after login failed")
	}
	return result, nil
}
