// Package prometheus renders controller metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] reads a [goSession.Controller] and exposes an
// [http.Handler]. Counter names are prefixed gosession_ and end in _total; the
// single histogram is gosession_request_latency_seconds. A controller source
// also yields the gosession_realtime_open gauge.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate controller state.
package prometheus
