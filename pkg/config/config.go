package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/dittofiles/pkg/gc"
	"github.com/spf13/viper"
)

// Config represents the complete dittofiles configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DITTOFILES_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values
//
// Store Configuration Pattern:
// Each store implementation defines its own configuration type. The Config
// struct holds one map per implementation (e.g. content.filesystem,
// content.s3) and only the section matching the selected type is decoded.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains process-wide settings
	Server ServerConfig `mapstructure:"server"`

	// Content selects and configures the blob store
	Content ContentConfig `mapstructure:"content"`

	// Metadata selects and configures the record store
	Metadata MetadataConfig `mapstructure:"metadata"`

	// Files configures the file controller
	Files FilesConfig `mapstructure:"files"`

	// GC configures the orphan blob collector
	GC gc.Config `mapstructure:"gc"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains process-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig configures metrics collection and its HTTP endpoint.
type MetricsConfig struct {
	// Enabled turns on Prometheus collection and the /metrics server
	Enabled bool `mapstructure:"enabled"`

	// Port is the TCP port of the metrics server
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
}

// ContentConfig specifies blob store configuration.
type ContentConfig struct {
	// Type specifies which content store implementation to use
	// Valid values: filesystem, memory, s3
	Type string `mapstructure:"type" validate:"required,oneof=filesystem memory s3"`

	// Filesystem is used when Type = "filesystem"
	Filesystem map[string]any `mapstructure:"filesystem"`

	// Memory is used when Type = "memory"
	Memory map[string]any `mapstructure:"memory"`

	// S3 is used when Type = "s3"
	S3 map[string]any `mapstructure:"s3"`
}

// MetadataConfig specifies record store configuration.
type MetadataConfig struct {
	// Type specifies which metadata store implementation to use
	// Valid values: memory, badger, postgres
	Type string `mapstructure:"type" validate:"required,oneof=memory badger postgres"`

	// Memory is used when Type = "memory"
	Memory map[string]any `mapstructure:"memory"`

	// Badger is used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`

	// Postgres is used when Type = "postgres"
	Postgres map[string]any `mapstructure:"postgres"`

	// Cache wraps the selected store with a record cache
	Cache CacheConfig `mapstructure:"cache"`
}

// CacheConfig configures the metadata record cache.
type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// SizeMB is the cache capacity in megabytes
	SizeMB int `mapstructure:"size_mb" validate:"gte=0"`

	// TTL bounds how long a record may be served from cache (0 = no expiry)
	TTL time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

// FilesConfig configures the file controller.
type FilesConfig struct {
	// HashAlgorithm names the content digest. Changing it orphans every
	// existing blob, so it is fixed per deployment.
	HashAlgorithm string `mapstructure:"hash_algorithm" validate:"required,oneof=sha256 sha512 blake2b-256"`

	// QuotaBytes caps the total file size per owner (0 = unlimited)
	QuotaBytes int64 `mapstructure:"quota_bytes" validate:"gte=0"`

	// UploadRateLimit is the number of uploads admitted per second (0 = unlimited)
	UploadRateLimit float64 `mapstructure:"upload_rate_limit" validate:"gte=0"`

	// UploadBurst is the number of uploads admitted at once above the rate
	UploadBurst int `mapstructure:"upload_burst" validate:"gte=0"`

	// BufferSize is the size of each upload copy buffer in bytes
	BufferSize int `mapstructure:"buffer_size" validate:"gte=0"`

	// BufferPoolSize is the number of pooled upload copy buffers
	BufferPoolSize int `mapstructure:"buffer_pool_size" validate:"gte=0"`

	// CleanupTimeout bounds the removal of temporary upload blobs
	CleanupTimeout time.Duration `mapstructure:"cleanup_timeout" validate:"gte=0"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: DITTOFILES_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DITTOFILES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// $XDG_CONFIG_HOME/dittofiles/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		// An explicit path that does not exist falls back to defaults too
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittofiles")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittofiles")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
