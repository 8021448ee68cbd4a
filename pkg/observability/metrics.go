package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes recorded on RunsTotal
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeTimeout  = "timeout"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Run metrics
	RunsTotal             *prometheus.CounterVec
	RunDuration           *prometheus.HistogramVec
	PolicyRejectionsTotal prometheus.Counter

	// Catalog metrics
	PluginsDiscovered prometheus.Gauge
	InvalidManifests  prometheus.Gauge

	// Report metrics
	ReportsWrittenTotal prometheus.Counter
	ReportErrorsTotal   prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hatch_plugin_runs_total",
				Help: "Total number of plugin runs",
			},
			[]string{"runner", "outcome"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hatch_plugin_run_duration_seconds",
				Help:    "Plugin run duration in seconds",
				Buckets: []float64{.05, .1, .5, 1, 5, 10, 25, 60, 120},
			},
			[]string{"runner"},
		),
		PolicyRejectionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hatch_policy_rejections_total",
				Help: "Total number of runs refused by the network policy gate",
			},
		),
		PluginsDiscovered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hatch_plugins_discovered",
				Help: "Number of plugins found by the last discovery",
			},
		),
		InvalidManifests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hatch_invalid_manifests",
				Help: "Number of plugins whose manifest misses required keys",
			},
		),
		ReportsWrittenTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hatch_reports_written_total",
				Help: "Total number of run reports written",
			},
		),
		ReportErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hatch_report_errors_total",
				Help: "Total number of run reports that failed to write",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.PolicyRejectionsTotal,
		m.PluginsDiscovered,
		m.InvalidManifests,
		m.ReportsWrittenTotal,
		m.ReportErrorsTotal,
	)

	return m
}

// Registry returns the registry the metrics were registered with
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRun records one finished plugin run
func (m *Metrics) ObserveRun(runner, outcome string, durationSec float64) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(runner, outcome).Inc()
	m.RunDuration.WithLabelValues(runner).Observe(durationSec)
}

// ObserveRejection records a run refused before anything was spawned
func (m *Metrics) ObserveRejection(runner string) {
	if m == nil {
		return
	}
	m.PolicyRejectionsTotal.Inc()
	m.RunsTotal.WithLabelValues(runner, OutcomeRejected).Inc()
}

// ObserveError records a run the backend refused to start
func (m *Metrics) ObserveError(runner string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(runner, OutcomeError).Inc()
}

// ObserveCatalog records the size of the last plugin scan
func (m *Metrics) ObserveCatalog(plugins, invalid int) {
	if m == nil {
		return
	}
	m.PluginsDiscovered.Set(float64(plugins))
	m.InvalidManifests.Set(float64(invalid))
}

// ObserveReport records a report write attempt
func (m *Metrics) ObserveReport(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.ReportErrorsTotal.Inc()
		return
	}
	m.ReportsWrittenTotal.Inc()
}

// WriteTextfile writes the current metric values in the Prometheus text
// format, for pickup by the node exporter textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
