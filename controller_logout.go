package goSession

import (
	"context"
	"fmt"

	"github.com/MrEthical07/goSession/internal/flows"
)

// Logout disconnects the channel, tells the server and clears local state.
//
// Local cleanup (store, cookies, redirect to PageLogin) runs exactly once per
// call whatever the server does, even when ctx is canceled. The error is nil
// when the server acknowledged the logout and wraps ErrLogoutNotAcknowledged
// otherwise.
func (c *Controller) Logout(ctx context.Context) error {
	res := flows.RunLogout(ctx, c.deps.Logout)

	c.metricInc(MetricLogout)
	if res.FellBack {
		c.metricInc(MetricLogoutFallback)
	}

	var err error
	if res.ServerCalled && res.Err != nil {
		c.metricInc(MetricLogoutUnacknowledged)
		err = fmt.Errorf("%w: %v", ErrLogoutNotAcknowledged, res.Err)
	}

	c.emitAudit(ctx, auditEventLogout, err == nil, res.Session, err, func() map[string]string {
		md := map[string]string{"server_called": fmt.Sprint(res.ServerCalled)}
		if res.Endpoint != "" {
			md["endpoint"] = res.Endpoint
		}
		return md
	})
	return err
}
