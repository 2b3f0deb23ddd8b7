// Package retry provides a small bounded-retry policy: a maximum number of
// attempts, a fixed delay between them, and a predicate deciding which
// errors are worth another attempt.
//
// # What this package must NOT do
//
//   - Know about HTTP status codes or endpoints; callers supply Retryable.
//   - Sleep without honouring the caller's context.
package retry
