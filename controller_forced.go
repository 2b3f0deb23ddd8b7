package goSession

import (
	"context"

	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/realtime"
)

const msgSessionTerminated = "Your session was terminated."

// HandleForcedLogout applies a server-initiated logout when it targets the
// stored session or names no session at all. It never calls the server.
// It reports whether local cleanup ran.
func (c *Controller) HandleForcedLogout(ctx context.Context, signal realtime.ForcedLogout) bool {
	deps := c.deps.Forced
	msg := signal.Message
	if msg == "" {
		msg = msgSessionTerminated
	}
	// the notice goes out before the redirect
	navigate := deps.Cleanup.Navigate
	deps.Cleanup.Navigate = func(ctx context.Context) {
		c.notify(ctx, NoticeWarning, msg)
		navigate(ctx)
	}

	res := flows.RunForcedLogout(ctx, signal, deps)
	if !res.Applied {
		c.metricInc(MetricForcedLogoutIgnored)
		c.emitAudit(ctx, auditEventForcedLogoutIgnored, false, res.Session, nil, func() map[string]string {
			return map[string]string{"reason": res.Reason}
		})
		return false
	}

	c.metricInc(MetricForcedLogoutApplied)
	c.emitAudit(ctx, auditEventForcedLogoutApplied, true, res.Session, nil, nil)
	c.log.Info("session terminated by server", "session", realtime.Redact(res.Session.ID))
	return true
}

// ForceLogoutUser asks the server to terminate username's session, or only
// targetSessionID when it is not empty. The caller must be logged in as an
// admin or reseller.
func (c *Controller) ForceLogoutUser(ctx context.Context, username, targetSessionID string) error {
	sess, err := flows.RunForceLogoutUser(ctx, username, targetSessionID, c.deps.Admin)
	c.emitAudit(ctx, auditEventAdminForceLogout, err == nil, sess, err, func() map[string]string {
		md := map[string]string{"target_username": username}
		if targetSessionID != "" {
			md["target_session"] = realtime.Redact(targetSessionID)
		}
		return md
	})
	if err != nil {
		return err
	}
	c.metricInc(MetricAdminForceLogout)
	return nil
}

func canForceLogout(role string) bool {
	return role == RoleAdmin || role == RoleReseller
}
