// Package goSession keeps a client's login session, its realtime push channel
// and the server's view of that session in step.
//
// A [Controller] is built once through [Builder.Build] and then drives every
// lifecycle transition: [Controller.Login], [Controller.Logout], forced logout
// pushed by the server ([Controller.HandleForcedLogout]), page bootstrap
// ([Controller.Bootstrap]) and admin-initiated termination of other sessions
// ([Controller.ForceLogoutUser]). Controller methods are safe to call from
// multiple goroutines.
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Controller], [Builder],
// [Config] and value types (Page, Notice, MetricsSnapshot). Orchestration of
// each operation lives in internal/flows; persistence in session; HTTP in
// apiclient; the push channel in realtime.
//
// # What this package must NOT do
//
//   - Render UI. Redirects and notices leave through [Navigator] and
//     [Notifier].
//   - Skip local cleanup on logout because the server call failed.
//   - Import any sub-package that re-imports goSession (no import cycles).
package goSession
