// Package flows contains the orchestration behind every Controller operation.
//
// Each flow function (RunLogin, RunLogout, RunForcedLogout, RunBootstrap)
// accepts a typed dependency struct and returns a result struct. Metrics,
// audit and user notices are derived by the caller from that result.
//
// # Architecture boundaries
//
// Flow functions coordinate the session store, API client, realtime channel
// and cleanup callbacks. They do NOT own any of these resources; ownership
// stays with the Controller.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goSession (to avoid import cycles).
//   - Talk to the network directly. All I/O goes through dependency interfaces.
package flows
