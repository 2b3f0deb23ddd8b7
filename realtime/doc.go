// Package realtime maintains the single push connection used for forced
// logout, session-refresh and service-update notifications.
//
// # State machine
//
//	Disconnected --Connect(id)--> Connecting --open+register--> Open
//	Connecting/Open --transport close--> Disconnected (+ reconnect timer)
//	Connecting/Open --Disconnect()--> Closing --> Disconnected (timer cancelled)
//
// Reconnects re-read the session id from the [SessionSource] when the timer
// fires, so a connection is never re-registered under a stale id. A
// generation counter invalidates dial goroutines and timers that belong to a
// connection that was replaced or intentionally closed.
//
// # Architecture boundaries
//
// This package owns the transport handle and message dispatch. It does NOT
// decide whether a forced-logout signal targets the current session and does
// not clear any state: handlers supplied by the lifecycle controller do that.
//
// # What this package must NOT do
//
//   - Import goSession or session.
//   - Return transport errors to the caller of Connect; they are logged and
//     recovered by the reconnect timer.
//   - Hold more than one live connection per Channel.
package realtime
