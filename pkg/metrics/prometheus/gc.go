package prometheus

import (
	"time"

	"github.com/marmos91/dittofiles/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type gcMetrics struct {
	runsTotal   *prometheus.CounterVec
	runDuration prometheus.Histogram
	scanned     prometheus.Counter
	removed     *prometheus.CounterVec
}

// NewGCMetrics creates a Prometheus-backed GCMetrics instance, or a no-op
// when metrics are disabled.
func NewGCMetrics() metrics.GCMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopGCMetrics()
	}

	reg := metrics.GetRegistry()

	return &gcMetrics{
		runsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittofiles_gc_runs_total",
				Help: "Total number of orphan collection passes by status",
			},
			[]string{"status"},
		),
		runDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "dittofiles_gc_run_duration_seconds",
				Help: "Duration of orphan collection passes in seconds",
				Buckets: []float64{
					0.1,  // 100ms
					1,    // 1s
					10,   // 10s
					60,   // 1m
					600,  // 10m
					3600, // 1h
				},
			},
		),
		scanned: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittofiles_gc_blobs_scanned_total",
				Help: "Total number of blob keys inspected by the collector",
			},
		),
		removed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittofiles_gc_blobs_removed_total",
				Help: "Total number of blobs removed by the collector by kind",
			},
			[]string{"kind"}, // orphan or temp
		),
	}
}

func (m *gcMetrics) RecordRun(duration time.Duration, scanned int, err error) {
	m.runsTotal.WithLabelValues(statusLabel(err)).Inc()
	m.runDuration.Observe(duration.Seconds())
	m.scanned.Add(float64(scanned))
}

func (m *gcMetrics) RecordRemoved(kind string, count int) {
	if count > 0 {
		m.removed.WithLabelValues(kind).Add(float64(count))
	}
}
