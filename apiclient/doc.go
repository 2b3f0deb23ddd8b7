// Package apiclient performs credentialed JSON calls against the remote
// session API and normalizes failures into a small error taxonomy.
//
// # Error taxonomy
//
//   - [ErrNetworkUnavailable]: the server could not be reached.
//   - [*RequestFailed]: the server answered with a non-2xx status.
//   - [ErrMalformedPayload]: a 2xx body could not be decoded.
//
// # Architecture boundaries
//
// This package owns HTTP transport, the cookie jar and base URL resolution. It
// does NOT read or write the session store and does not retry: retry and
// fallback policy belong to the lifecycle controller.
//
// # What this package must NOT do
//
//   - Import goSession, session, or realtime.
//   - Log request bodies (they carry passwords).
package apiclient
