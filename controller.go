package goSession

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/MrEthical07/goSession/apiclient"
	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/realtime"
	"github.com/MrEthical07/goSession/session"
)

// Controller coordinates login, logout and forced logout across the session
// store, the API client and the realtime channel.
type Controller struct {
	config    Config
	store     session.Store
	api       *apiclient.Client
	channel   *realtime.Channel
	navigator Navigator
	notifier  Notifier
	views     Views
	audit     *audit.Dispatcher
	metrics   *Metrics
	log       logr.Logger
	now       func() time.Time
	deps      flows.Deps

	refreshing atomic.Bool
	closed     atomic.Bool
}

// Close disconnects the realtime channel, waits for its read goroutine and
// flushes pending audit events. The stored session is left in place. Close
// must not be called from a Navigator or Notifier invoked by a push.
func (c *Controller) Close() {
	if c == nil || !c.closed.CompareAndSwap(false, true) {
		return
	}
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.audit != nil {
		c.audit.Close()
	}
}

// AuditDropped returns how many audit events were discarded.
func (c *Controller) AuditDropped() uint64 {
	if c == nil || c.audit == nil {
		return 0
	}
	return c.audit.Dropped()
}

func (c *Controller) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return c.metrics.Snapshot()
}

func (c *Controller) metricInc(id MetricID) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics.Inc(id)
}

// RealtimeState reports the push channel's current state.
func (c *Controller) RealtimeState() realtime.State {
	return c.channel.State()
}

// Session returns the stored session; the zero Session when logged out.
func (c *Controller) Session(ctx context.Context) (session.Session, error) {
	return c.store.Get(ctx)
}

// Config returns a copy of the active configuration.
func (c *Controller) Config() Config {
	return cloneConfig(c.config)
}

func (c *Controller) notify(ctx context.Context, level NoticeLevel, msg string) {
	c.notifier.Notify(ctx, Notice{Level: level, Message: msg})
}

func (c *Controller) navigate(ctx context.Context, page Page) {
	c.navigator.Navigate(ctx, page)
}
