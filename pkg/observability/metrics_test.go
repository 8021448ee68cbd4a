package observability

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	require.NotNil(t, metrics)
	assert.Same(t, registry, metrics.Registry())
	assert.NotNil(t, metrics.RunsTotal)
	assert.NotNil(t, metrics.RunDuration)
	assert.NotNil(t, metrics.PolicyRejectionsTotal)
	assert.NotNil(t, metrics.PluginsDiscovered)
	assert.NotNil(t, metrics.InvalidManifests)
	assert.NotNil(t, metrics.ReportsWrittenTotal)
	assert.NotNil(t, metrics.ReportErrorsTotal)
}

func TestNewMetrics_NilRegistry(t *testing.T) {
	metrics := NewMetrics(nil)
	require.NotNil(t, metrics.Registry())
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewMetrics(registry)
	assert.Panics(t, func() { NewMetrics(registry) })
}

func TestObserveRun(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.ObserveRun("direct", OutcomeSuccess, 0.5)
	metrics.ObserveRun("direct", OutcomeSuccess, 1.5)
	metrics.ObserveRun("container", OutcomeTimeout, 25)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("direct", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("container", OutcomeTimeout)))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.RunDuration))
}

func TestObserveRejection(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.ObserveRejection("direct")

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PolicyRejectionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("direct", OutcomeRejected)))
	assert.Equal(t, 0, testutil.CollectAndCount(metrics.RunDuration))
}

func TestObserveErrorAndReport(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.ObserveError("container")
	metrics.ObserveReport(nil)
	metrics.ObserveReport(nil)
	metrics.ObserveReport(errors.New("disk full"))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("container", OutcomeError)))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ReportsWrittenTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ReportErrorsTotal))
}

func TestObserveCatalog(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.ObserveCatalog(4, 1)
	metrics.ObserveCatalog(3, 0)

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.PluginsDiscovered))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.InvalidManifests))
}

func TestObserveRun_NilMetrics(t *testing.T) {
	var metrics *Metrics
	assert.NotPanics(t, func() { metrics.ObserveRun("direct", OutcomeError, 0) })
	assert.NotPanics(t, func() { metrics.ObserveRejection("direct") })
	assert.NotPanics(t, func() { metrics.ObserveError("direct") })
	assert.NotPanics(t, func() { metrics.ObserveReport(nil) })
	assert.NotPanics(t, func() { metrics.ObserveCatalog(3, 1) })
	assert.NoError(t, metrics.WriteTextfile(filepath.Join(t.TempDir(), "m.prom")))
}

func TestWriteTextfile(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	metrics.PolicyRejectionsTotal.Inc()
	metrics.PluginsDiscovered.Set(3)

	path := filepath.Join(t.TempDir(), "hatch.prom")
	require.NoError(t, metrics.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "hatch_policy_rejections_total 1")
	assert.Contains(t, text, "hatch_plugins_discovered 3")
	assert.True(t, strings.Contains(text, "# HELP hatch_reports_written_total"))
}

func TestWriteTextfile_EmptyPathIsNoop(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	assert.NoError(t, metrics.WriteTextfile(""))
}

func TestWriteTextfile_BadDirectory(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	err := metrics.WriteTextfile(filepath.Join(t.TempDir(), "missing", "hatch.prom"))
	assert.Error(t, err)
}
