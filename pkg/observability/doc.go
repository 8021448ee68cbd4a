// Package observability provides logging, Prometheus metrics and OpenTelemetry
// tracing for hatch.
//
// # Logging
//
// Every component takes a *logrus.Logger:
//
//	logger := observability.NewLogger("info", "text", os.Stderr)
//	logger.WithField("plugin", name).Info("Executing plugin")
//
// # Metrics
//
// hatch is a short-lived command, so metrics are not scraped. They are
// written to a file for the node exporter textfile collector instead:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.ObserveRun("direct", observability.OutcomeSuccess, 0.42)
//	err := metrics.WriteTextfile("/var/lib/node_exporter/hatch.prom")
//
// # Tracing
//
// InitOTel installs an OTLP/gRPC exporter when enabled; spans created with
// Tracer are no-ops otherwise.
package observability
