package flows

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/MrEthical07/goSession/apiclient"
	"github.com/MrEthical07/goSession/realtime"
	"github.com/MrEthical07/goSession/retry"
	"github.com/MrEthical07/goSession/session"
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	API     API
	Store   session.Store
	Channel Channel
	Cleanup CleanupDeps
	// Retry governs the primary endpoint only. The fallback is tried once.
	Retry              retry.Policy
	FallbackOnNotFound bool
	Now                func() time.Time
	Logger             logr.Logger
}

// LogoutResult reports how far the server side of logout got. Cleanup has
// always run by the time it is returned.
type LogoutResult struct {
	Session      session.Session
	Endpoint     string
	FellBack     bool
	ServerCalled bool
	// Err is nil when the server acknowledged the logout.
	Err error
}

// RunLogout disconnects the channel, tells the server, and tears down local
// state exactly once whatever the server said, including when ctx ends or a
// dependency panics.
func RunLogout(ctx context.Context, deps LogoutDeps) (result LogoutResult) {
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			RunCleanup(context.WithoutCancel(ctx), deps.Cleanup)
		})
	}
	defer cleanup()

	deps.Channel.Disconnect()

	sess, err := deps.Store.Get(ctx)
	if err != nil {
		deps.Logger.Error(err, "read session before logout")
	}
	result.Session = sess
	if sess.ID == "" {
		return result
	}

	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	body := apiclient.LogoutRequest{
		SessionID: sess.ID,
		Username:  sess.Username,
		Timestamp: apiclient.Timestamp(now()),
	}

	result.ServerCalled = true
	result.Endpoint = apiclient.PathLogout
	err = deps.Retry.Do(ctx, func(ctx context.Context) error {
		return callLogout(ctx, deps.API, apiclient.PathLogout, body)
	})

	if status, ok := apiclient.StatusCode(err); ok && status == http.StatusNotFound && deps.FallbackOnNotFound {
		deps.Logger.V(1).Info("logout endpoint not found, trying fallback", "path", apiclient.PathSignout)
		result.Endpoint = apiclient.PathSignout
		result.FellBack = true
		err = callLogout(ctx, deps.API, apiclient.PathSignout, body)
	}
	if err != nil {
		deps.Logger.Error(err, "server logout failed", "session", realtime.Redact(sess.ID), "endpoint", result.Endpoint)
	}
	result.Err = err
	return result
}

var errLogoutRejected = errors.New("logout not acknowledged by server")

func callLogout(ctx context.Context, api API, path string, body apiclient.LogoutRequest) error {
	resp, err := api.Logout(ctx, path, body)
	if err != nil {
		return err
	}
	if resp.Status != "" && resp.Status != apiclient.StatusSuccess {
		return errLogoutRejected
	}
	return nil
}
