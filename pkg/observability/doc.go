// Package observability wires Prometheus metrics, OpenTelemetry tracing and
// process resource sampling into an extraction run.
package observability
