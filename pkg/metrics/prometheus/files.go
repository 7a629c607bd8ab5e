// Package prometheus implements the pkg/metrics interfaces on the global
// Prometheus registry.
package prometheus

import (
	"time"

	"github.com/marmos91/dittofiles/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// filesMetrics is the Prometheus implementation of metrics.FilesMetrics.
type filesMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	uploadsTotal      *prometheus.CounterVec
	uploadBytes       prometheus.Counter
	blobsDeleted      *prometheus.CounterVec
	cleanupFailures   prometheus.Counter
	uploadsInFlight   prometheus.Gauge
}

// NewFilesMetrics creates a new Prometheus-backed FilesMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewFilesMetrics() metrics.FilesMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopFilesMetrics()
	}

	reg := metrics.GetRegistry()

	return &filesMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittofiles_operations_total",
				Help: "Total number of file operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittofiles_operation_duration_seconds",
				Help: "Duration of file operations in seconds",
				Buckets: []float64{
					0.001, // 1ms
					0.005, // 5ms
					0.025, // 25ms
					0.1,   // 100ms
					0.5,   // 500ms
					1.0,   // 1s
					5.0,   // 5s
					30.0,  // 30s
					120.0, // 2m, large uploads
				},
			},
			[]string{"operation"},
		),
		uploadsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittofiles_uploads_total",
				Help: "Total number of binary uploads by outcome",
			},
			[]string{"outcome"},
		),
		uploadBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittofiles_upload_bytes_total",
				Help: "Total bytes received by binary uploads",
			},
		),
		blobsDeleted: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittofiles_blobs_deleted_total",
				Help: "Total number of blobs deleted after losing their last reference",
			},
			[]string{"reason"},
		),
		cleanupFailures: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittofiles_upload_cleanup_failures_total",
				Help: "Total number of temporary upload blobs that could not be removed",
			},
		),
		uploadsInFlight: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "dittofiles_uploads_in_flight",
				Help: "Current number of uploads being streamed",
			},
		),
	}
}

func (m *filesMetrics) RecordOperation(operation string, duration time.Duration, err error) {
	m.operationsTotal.WithLabelValues(operation, statusLabel(err)).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *filesMetrics) RecordUpload(outcome string, bytes int64) {
	m.uploadsTotal.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		m.uploadBytes.Add(float64(bytes))
	}
}

func (m *filesMetrics) RecordBlobDeleted(reason string) {
	m.blobsDeleted.WithLabelValues(reason).Inc()
}

func (m *filesMetrics) RecordCleanupFailure() {
	m.cleanupFailures.Inc()
}

func (m *filesMetrics) SetUploadsInFlight(count int) {
	m.uploadsInFlight.Set(float64(count))
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
