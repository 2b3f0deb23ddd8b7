// Package session provides the locally persisted session triple (session id,
// role, username/email) and the stores that hold it.
//
// # Backends
//
//   - [MemoryStore]: process-local, the default.
//   - [RedisStore]: two Redis hashes (persisted + transient) written through
//     MULTI/EXEC so a reader never sees half of a Set.
//   - [SQLiteStore]: one key/value table, every write inside a transaction.
//
// # Architecture boundaries
//
// This package owns persistence of the session triple and of session-scoped
// transient values. It does NOT talk to the remote API, manage cookies, or
// decide when a session starts or ends: those responsibilities belong to the
// lifecycle controller.
//
// # What this package must NOT do
//
//   - Import goSession, apiclient, or realtime (no upward imports).
//   - Expose a partially written session to a concurrent reader.
//   - Persist passwords or any credential other than the opaque session id.
package session
