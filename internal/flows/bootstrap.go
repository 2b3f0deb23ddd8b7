package flows

import (
	"context"
	"net/http"

	"github.com/go-logr/logr"

	"github.com/MrEthical07/goSession/apiclient"
	"github.com/MrEthical07/goSession/realtime"
	"github.com/MrEthical07/goSession/session"
)

// BootstrapDeps captures page bootstrap dependencies.
type BootstrapDeps struct {
	API     API
	Store   session.Store
	Channel Channel
	Cleanup CleanupDeps
	Logger  logr.Logger
}

type BootstrapResult struct {
	// Session is the session after bootstrap, zero when there is none.
	Session      session.Session
	ServerRole   string
	RoleMismatch bool
	Invalidated  bool
	// Validated is false when the server could not be asked.
	Validated bool
}

// RunBootstrap opens the channel for a stored session and checks the stored
// role against the server. A dead session is cleaned up. An unreachable
// server leaves the stored role in charge.
func RunBootstrap(ctx context.Context, deps BootstrapDeps) (BootstrapResult, error) {
	sess, err := deps.Store.Get(ctx)
	if err != nil {
		return BootstrapResult{}, err
	}
	if sess.ID == "" {
		return BootstrapResult{}, nil
	}
	result := BootstrapResult{Session: sess}

	if err := deps.Channel.Connect(sess.ID); err != nil {
		deps.Logger.Error(err, "realtime connect during bootstrap failed")
	}

	resp, err := deps.API.ValidateSession(ctx, sess.ID)
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		status, ok := apiclient.StatusCode(err)
		if ok && (status == http.StatusUnauthorized || status == http.StatusForbidden) {
			return invalidate(ctx, result, deps), nil
		}
		deps.Logger.Error(err, "session validation failed, keeping stored role",
			"session", realtime.Redact(sess.ID), "role", sess.Role)
		return result, nil
	}
	if resp.Status != "" && resp.Status != apiclient.StatusSuccess {
		return invalidate(ctx, result, deps), nil
	}

	result.Validated = true
	result.ServerRole = resp.EffectiveRole()
	if result.ServerRole == "" || result.ServerRole == sess.Role {
		return result, nil
	}

	result.RoleMismatch = true
	deps.Logger.Info("stored role differs from server role",
		"stored", sess.Role, "server", result.ServerRole)
	sess.Role = result.ServerRole
	if err := deps.Store.Set(ctx, sess); err != nil {
		return result, err
	}
	result.Session = sess
	return result, nil
}

func invalidate(ctx context.Context, result BootstrapResult, deps BootstrapDeps) BootstrapResult {
	deps.Logger.Info("stored session rejected by server", "session", realtime.Redact(result.Session.ID))
	deps.Channel.Disconnect()
	RunCleanup(context.WithoutCancel(ctx), deps.Cleanup)
	result.Invalidated = true
	result.Session = session.Session{}
	return result
}
