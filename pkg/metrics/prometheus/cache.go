package prometheus

import (
	"github.com/marmos91/dittofiles/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type cacheMetrics struct {
	hits          prometheus.Counter
	misses        prometheus.Counter
	invalidations *prometheus.CounterVec
}

// NewCacheMetrics creates a Prometheus-backed CacheMetrics instance, or a
// no-op when metrics are disabled.
func NewCacheMetrics() metrics.CacheMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopCacheMetrics()
	}

	reg := metrics.GetRegistry()

	return &cacheMetrics{
		hits: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittofiles_metadata_cache_hits_total",
				Help: "Total number of metadata lookups served from cache",
			},
		),
		misses: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittofiles_metadata_cache_misses_total",
				Help: "Total number of metadata lookups that reached the backing store",
			},
		),
		invalidations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittofiles_metadata_cache_invalidations_total",
				Help: "Total number of metadata cache invalidations by scope",
			},
			[]string{"scope"},
		),
	}
}

func (m *cacheMetrics) RecordHit() {
	m.hits.Inc()
}

func (m *cacheMetrics) RecordMiss() {
	m.misses.Inc()
}

func (m *cacheMetrics) RecordInvalidation(scope string) {
	m.invalidations.WithLabelValues(scope).Inc()
}
