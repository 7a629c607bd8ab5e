package config

import (
	"strings"
	"time"

	"github.com/marmos91/dittofiles/pkg/files"
	"github.com/marmos91/dittofiles/pkg/gc"
	"github.com/marmos91/dittofiles/pkg/hash"
)

// Default locations used when no store options are configured.
const (
	DefaultContentPath  = "/tmp/dittofiles-content"
	DefaultMetadataPath = "/tmp/dittofiles-metadata"
	DefaultMetricsPort  = 9090
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Store-specific defaults are handled by store implementations
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyContentDefaults(&cfg.Content)
	applyMetadataDefaults(&cfg.Metadata)
	applyFilesDefaults(&cfg.Files)
	applyGCDefaults(&cfg.GC)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = DefaultMetricsPort
	}
}

// applyContentDefaults sets content store defaults. Every section gets its
// defaults, not just the selected one, so generated config files show them.
func applyContentDefaults(cfg *ContentConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}

	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}

	if _, ok := cfg.Filesystem["path"]; !ok {
		cfg.Filesystem["path"] = DefaultContentPath
	}
}

func applyMetadataDefaults(cfg *MetadataConfig) {
	if cfg.Type == "" {
		cfg.Type = "badger"
	}

	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.Postgres == nil {
		cfg.Postgres = make(map[string]any)
	}

	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = DefaultMetadataPath
	}
	if _, ok := cfg.Postgres["auto_migrate"]; !ok {
		cfg.Postgres["auto_migrate"] = true
	}

	if cfg.Cache.SizeMB == 0 {
		cfg.Cache.SizeMB = 64
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = time.Minute
	}
}

func applyFilesDefaults(cfg *FilesConfig) {
	if cfg.HashAlgorithm == "" {
		cfg.HashAlgorithm = hash.Default
	}
	cfg.HashAlgorithm = strings.ToLower(cfg.HashAlgorithm)

	// QuotaBytes and UploadRateLimit default to 0 (unlimited)

	if cfg.UploadRateLimit > 0 && cfg.UploadBurst == 0 {
		cfg.UploadBurst = 1
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = files.DefaultBufferSize
	}
	if cfg.BufferPoolSize == 0 {
		cfg.BufferPoolSize = files.DefaultBufferPoolSize
	}
	if cfg.CleanupTimeout == 0 {
		cfg.CleanupTimeout = files.DefaultCleanupTimeout
	}
}

// applyGCDefaults fills in the collector schedule. Enabled defaults to false.
func applyGCDefaults(cfg *gc.Config) {
	if cfg.Interval == 0 {
		cfg.Interval = gc.DefaultInterval
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = gc.DefaultTimeout
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = gc.DefaultBatchSize
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
