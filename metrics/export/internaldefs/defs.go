package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/realtime"
)

// CounterDef binds a counter id to its exported name.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram id to its exported base name.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Successful logins."},
	{ID: goSession.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "Failed logins, including conflicts and network failures."},
	{ID: goSession.MetricLoginConflict, Name: "gosession_login_conflict_total", Help: "Logins refused because the account is logged in elsewhere."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Voluntary logout operations."},
	{ID: goSession.MetricLogoutRetry, Name: "gosession_logout_retry_total", Help: "Extra attempts against the primary logout endpoint."},
	{ID: goSession.MetricLogoutFallback, Name: "gosession_logout_fallback_total", Help: "Logouts that fell back to the alternate endpoint."},
	{ID: goSession.MetricLogoutUnacknowledged, Name: "gosession_logout_unacknowledged_total", Help: "Logouts the server never acknowledged."},
	{ID: goSession.MetricForcedLogoutApplied, Name: "gosession_forced_logout_applied_total", Help: "Forced-logout signals that terminated the local session."},
	{ID: goSession.MetricForcedLogoutIgnored, Name: "gosession_forced_logout_ignored_total", Help: "Forced-logout signals addressed to another session."},
	{ID: goSession.MetricAdminForceLogout, Name: "gosession_admin_force_logout_total", Help: "Administrative force-logout requests sent."},
	{ID: goSession.MetricRealtimeOpened, Name: "gosession_realtime_opened_total", Help: "Realtime channel connections opened."},
	{ID: goSession.MetricRealtimeClosed, Name: "gosession_realtime_closed_total", Help: "Realtime channel connections closed."},
	{ID: goSession.MetricRealtimeReconnect, Name: "gosession_realtime_reconnect_total", Help: "Scheduled realtime reconnect attempts."},
	{ID: goSession.MetricRealtimeMalformed, Name: "gosession_realtime_malformed_total", Help: "Inbound realtime frames that failed to parse."},
	{ID: goSession.MetricSilentRefresh, Name: "gosession_silent_refresh_total", Help: "Silent session refreshes triggered by the server."},
	{ID: goSession.MetricServiceUpdated, Name: "gosession_service_updated_total", Help: "Service update notifications received."},
	{ID: goSession.MetricRoleMismatch, Name: "gosession_role_mismatch_total", Help: "Bootstraps where the server role differed from the stored role."},
	{ID: goSession.MetricSessionInvalidated, Name: "gosession_session_invalidated_total", Help: "Stored sessions rejected by the server on bootstrap."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricRequestLatency, Name: "gosession_request_latency_seconds", Help: "Remote API request latency histogram."},
}

// HistogramBounds are the upper bounds of the eight fixed buckets, in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix mirrors HistogramBounds in a form valid inside an
// instrument name.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero filling short input.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

// AuditDroppedName is the counter exported for dropped audit events.
const AuditDroppedName = "gosession_audit_dropped_total"

// AuditDroppedHelp describes AuditDroppedName.
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

// RealtimeOpenName is the gauge exported for the push channel state.
const RealtimeOpenName = "gosession_realtime_open"

// RealtimeOpenHelp describes RealtimeOpenName.
const RealtimeOpenHelp = "1 while the realtime channel is open, 0 otherwise."

// RealtimeReporter is implemented by metric sources that own a realtime
// channel. *goSession.Controller is one.
type RealtimeReporter interface {
	RealtimeState() realtime.State
}

// RealtimeOpen reports the gauge value for source, and false when source
// has no channel to report on.
func RealtimeOpen(source any) (int64, bool) {
	r, ok := source.(RealtimeReporter)
	if !ok {
		return 0, false
	}
	if r.RealtimeState() == realtime.StateOpen {
		return 1, true
	}
	return 0, true
}
