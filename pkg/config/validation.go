package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs validation that cannot be expressed in tags.
func validateCustomRules(cfg *Config) error {
	if cfg.Files.UploadRateLimit > 0 && cfg.Files.UploadBurst < 1 {
		return fmt.Errorf("files: upload_burst must be at least 1 when upload_rate_limit is set")
	}

	if cfg.Content.Type == "s3" {
		if s, _ := cfg.Content.S3["bucket"].(string); s == "" {
			return fmt.Errorf("content.s3: bucket is required")
		}
	}

	if cfg.Metadata.Type == "postgres" {
		if s, _ := cfg.Metadata.Postgres["dsn"].(string); s == "" {
			return fmt.Errorf("metadata.postgres: dsn is required")
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
