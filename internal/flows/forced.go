package flows

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/MrEthical07/goSession/realtime"
	"github.com/MrEthical07/goSession/session"
)

// Reasons a forced-logout signal was not applied.
const (
	ForcedReasonStoreError     = "store_error"
	ForcedReasonNoSession      = "no_session"
	ForcedReasonTargetMismatch = "target_mismatch"
)

// ForcedDeps captures forced logout flow dependencies.
type ForcedDeps struct {
	Store   session.Store
	Channel Channel
	Cleanup CleanupDeps
	Logger  logr.Logger
}

type ForcedResult struct {
	Session session.Session
	Applied bool
	Reason  string
}

// RunForcedLogout applies signal when it targets the stored session (or no
// session in particular). Nothing is sent to the server.
func RunForcedLogout(ctx context.Context, signal realtime.ForcedLogout, deps ForcedDeps) ForcedResult {
	sess, err := deps.Store.Get(ctx)
	if err != nil {
		deps.Logger.Error(err, "read session for forced logout")
		return ForcedResult{Reason: ForcedReasonStoreError}
	}
	if sess.ID == "" {
		return ForcedResult{Reason: ForcedReasonNoSession}
	}
	if !signal.AppliesTo(sess.ID) {
		deps.Logger.V(1).Info("forced logout for another session ignored",
			"target", realtime.Redact(signal.TargetSessionID),
			"current", realtime.Redact(sess.ID))
		return ForcedResult{Session: sess, Reason: ForcedReasonTargetMismatch}
	}

	deps.Channel.Disconnect()
	RunCleanup(context.WithoutCancel(ctx), deps.Cleanup)
	return ForcedResult{Session: sess, Applied: true}
}
