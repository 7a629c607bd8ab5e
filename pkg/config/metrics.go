package config

import (
	contents3 "github.com/marmos91/dittofiles/pkg/content/s3"
	"github.com/marmos91/dittofiles/pkg/metrics"
	promMetrics "github.com/marmos91/dittofiles/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// Files, Cache and GC are never nil; they are no-ops when disabled
	Files metrics.FilesMetrics
	Cache metrics.CacheMetrics
	GC    metrics.GCMetrics

	// S3 is nil when disabled, which the S3 store treats as a no-op
	S3 contents3.Metrics
}

// InitializeMetrics creates all metrics components based on configuration.
//
// If metrics are enabled, the global Prometheus registry is initialized and
// every collector registers with it. Call it at most once per process: the
// Prometheus collectors cannot be registered twice.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return noopMetrics()
	}

	metrics.InitRegistry()

	return &MetricsResult{
		Server: metrics.NewServer(metrics.ServerConfig{Port: cfg.Server.Metrics.Port}),
		Files:  promMetrics.NewFilesMetrics(),
		Cache:  promMetrics.NewCacheMetrics(),
		GC:     promMetrics.NewGCMetrics(),
		S3:     promMetrics.NewS3Metrics(),
	}
}

func noopMetrics() *MetricsResult {
	return &MetricsResult{
		Files: metrics.NewNoopFilesMetrics(),
		Cache: metrics.NewNoopCacheMetrics(),
		GC:    metrics.NewNoopGCMetrics(),
	}
}
