package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected valid config, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "TRACE"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected error for invalid log level")
	}
	if !strings.Contains(err.Error(), "Level") {
		t.Errorf("Expected error to mention Level, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for invalid log format")
	}
}

func TestValidate_InvalidContentType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Content.Type = "ftp"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for invalid content type")
	}
}

func TestValidate_InvalidMetadataType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metadata.Type = "mysql"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for invalid metadata type")
	}
}

func TestValidate_InvalidHashAlgorithm(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Files.HashAlgorithm = "md5"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected error for unsupported hash algorithm")
	}
	if !strings.Contains(err.Error(), "HashAlgorithm") {
		t.Errorf("Expected error to mention HashAlgorithm, got: %v", err)
	}
}

func TestValidate_NegativeQuota(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Files.QuotaBytes = -1

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for negative quota")
	}
}

func TestValidate_RateWithoutBurst(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Files.UploadRateLimit = 5
	cfg.Files.UploadBurst = 0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected error for rate limit without burst")
	}
	if !strings.Contains(err.Error(), "upload_burst") {
		t.Errorf("Expected error to mention upload_burst, got: %v", err)
	}
}

func TestValidate_S3RequiresBucket(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Content.Type = "s3"
	cfg.Content.S3 = map[string]any{"region": "us-east-1"}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected error for S3 without bucket")
	}
	if !strings.Contains(err.Error(), "bucket") {
		t.Errorf("Expected error to mention bucket, got: %v", err)
	}

	cfg.Content.S3["bucket"] = "dittofiles"
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected valid S3 config, got: %v", err)
	}
}

func TestValidate_PostgresRequiresDSN(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metadata.Type = "postgres"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected error for postgres without dsn")
	}
	if !strings.Contains(err.Error(), "dsn") {
		t.Errorf("Expected error to mention dsn, got: %v", err)
	}

	cfg.Metadata.Postgres["dsn"] = "postgres://localhost/dittofiles"
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected valid postgres config, got: %v", err)
	}
}

func TestValidate_InvalidShutdownTimeout(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.ShutdownTimeout = 0

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for zero shutdown timeout")
	}
}

func TestValidate_InvalidMetricsPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Metrics.Port = 70000

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for metrics port out of range")
	}
}

func TestValidate_NegativeCacheTTL(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metadata.Cache.TTL = -time.Second

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for negative cache TTL")
	}
}

func TestValidate_GCBatchSizeTooLarge(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.GC.BatchSize = 5000

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for batch size above the DeleteObjects limit")
	}
}

func TestValidate_LogLevelNormalization(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"error", "ERROR"},
		{"DEBUG", "DEBUG"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cfg := &Config{Logging: LoggingConfig{Level: tt.input}}
			ApplyDefaults(cfg)

			if err := Validate(cfg); err != nil {
				t.Fatalf("Expected valid config for level %q, got: %v", tt.input, err)
			}
			if cfg.Logging.Level != tt.expected {
				t.Errorf("Expected level %q, got %q", tt.expected, cfg.Logging.Level)
			}
		})
	}
}
