package goSession

import (
	"context"

	"github.com/MrEthical07/goSession/internal/flows"
)

// Bootstrap runs on page load. current is the page being shown.
//
// With no stored session it navigates to PageLogin. Otherwise it opens the
// realtime channel and checks the stored role with the server: a rejected
// session is cleaned up, a different server role replaces the stored one,
// and an unreachable server leaves the stored role in charge. When current
// is not the page for the effective role it navigates there.
func (c *Controller) Bootstrap(ctx context.Context, current Page) (*BootstrapResult, error) {
	res, err := flows.RunBootstrap(ctx, c.deps.Bootstrap)
	if err != nil {
		return nil, err
	}

	out := &BootstrapResult{Session: res.Session, Validated: res.Validated}
	switch {
	case res.Invalidated:
		// cleanup already navigated to the login page
		c.metricInc(MetricSessionInvalidated)
		c.emitAudit(ctx, auditEventSessionInvalidated, true, res.Session, nil, nil)
		out.Page = PageLogin
		out.Redirected = true
		return out, nil
	case res.Session.Empty():
		out.Page = PageLogin
		if current != PageLogin {
			c.navigate(ctx, PageLogin)
			out.Redirected = true
		}
		return out, nil
	}

	if res.RoleMismatch {
		out.RoleCorrected = true
		c.metricInc(MetricRoleMismatch)
		c.emitAudit(ctx, auditEventRoleMismatch, true, res.Session, nil, func() map[string]string {
			return map[string]string{"server_role": res.ServerRole}
		})
	}

	out.Page = PageForRole(res.Session.Role)
	if current != out.Page {
		c.navigate(ctx, out.Page)
		out.Redirected = true
	}
	return out, nil
}
