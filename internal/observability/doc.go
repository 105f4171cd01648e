// Package observability provides logging, metrics, and tracing for
// the proxy rotation service.
//
// Logging is structured and zap-backed behind a small Logger
// interface so that packages depend on the interface rather than on
// zap directly. Metrics are Prometheus collectors registered on a
// private registry and exposed through Handler. Tracing is optional
// OpenTelemetry with an OTLP gRPC exporter.
package observability
