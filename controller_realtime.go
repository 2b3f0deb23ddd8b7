package goSession

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/realtime"
	"github.com/MrEthical07/goSession/session"
)

const realtimeHandlerTimeout = 30 * time.Second

func (c *Controller) realtimeHandlers() realtime.Handlers {
	return realtime.Handlers{
		ForcedLogout: func(signal realtime.ForcedLogout) {
			ctx, cancel := context.WithTimeout(context.Background(), realtimeHandlerTimeout)
			defer cancel()
			c.HandleForcedLogout(ctx, signal)
		},
		RefreshSessions: c.onRefreshSessions,
		ServiceUpdated:  c.onServiceUpdated,
	}
}

func (c *Controller) realtimeHooks(observe func(realtime.State)) realtime.Hooks {
	return realtime.Hooks{
		StateChanged: observe,
		Opened: func(string) {
			c.metricInc(MetricRealtimeOpened)
		},
		Closed: func(error) {
			c.metricInc(MetricRealtimeClosed)
		},
		Reconnecting: func(sessionID string) {
			c.metricInc(MetricRealtimeReconnect)
			c.emitAudit(context.Background(), auditEventRealtimeReconnecting, true, sessionRef(sessionID), nil, nil)
		},
		Malformed: func(error) {
			c.metricInc(MetricRealtimeMalformed)
		},
	}
}

// onRefreshSessions reloads the sessions view in the background. A refresh
// already in flight absorbs the request.
func (c *Controller) onRefreshSessions() {
	if !c.views.SessionsVisible() {
		return
	}
	if !c.refreshing.CompareAndSwap(false, true) {
		return
	}
	c.metricInc(MetricSilentRefresh)
	go func() {
		defer c.refreshing.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), realtimeHandlerTimeout)
		defer cancel()
		if err := c.views.RefreshSessions(ctx); err != nil {
			c.log.Error(err, "silent sessions refresh failed")
		}
	}()
}

func (c *Controller) onServiceUpdated(update realtime.ServiceUpdate) {
	c.metricInc(MetricServiceUpdated)
	ctx, cancel := context.WithTimeout(context.Background(), realtimeHandlerTimeout)
	defer cancel()

	msg := update.Message
	switch {
	case msg != "":
	case update.Service != "":
		msg = "Service " + update.Service + " was updated."
	default:
		msg = "Services were updated."
	}
	c.notify(ctx, NoticeInfo, msg)

	if !c.views.ServicesVisible() {
		return
	}
	if err := c.views.RefreshServices(ctx); err != nil {
		c.log.Error(err, "services refresh failed", "service", update.Service)
	}
}

func sessionRef(id string) session.Session {
	return session.Session{ID: id}
}
