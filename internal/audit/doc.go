// Package audit implements async delivery of session lifecycle events
// (login, logout, forced logout, role corrections) to a caller-supplied sink.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines, logr, no-op).
//   - [Dispatcher]: buffered async relay that either drops or blocks when full.
//   - [Event]: one lifecycle record.
//
// # Architecture boundaries
//
// This package owns buffering and delivery. It does NOT decide which events
// to emit; the lifecycle controller does.
//
// # What this package must NOT do
//
//   - Import goSession or any sibling internal package.
//   - Put session ids in events unredacted when the caller asks for redaction.
package audit
