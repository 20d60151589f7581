package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	v.RegisterValidation("environment", validateEnvironment)
	v.RegisterValidation("loglevel", validateLogLevel)
	v.RegisterValidation("granularity", validateGranularity)
	v.RegisterValidation("probability", validateProbability)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	if err := cv.validator.Struct(cfg); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	return validateCrossField(cfg)
}

func validateEnvironment(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "development", "staging", "production":
		return true
	default:
		return false
	}
}

func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func validateGranularity(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "source", "entity":
		return true
	default:
		return false
	}
}

func validateProbability(fl validator.FieldLevel) bool {
	p := fl.Field().Float()
	return p >= 0 && p <= 1
}

// validateCrossField performs cross-field validations
func validateCrossField(cfg *Config) error {
	start, end, err := cfg.Backtest.BacktestRange()
	if err != nil {
		return err
	}
	if !start.Before(end) {
		return fmt.Errorf("backtest start_date must be before end_date")
	}

	if cfg.Backtest.PicksMax < cfg.Backtest.PicksMin {
		return fmt.Errorf("backtest picks_max cannot be less than picks_min")
	}

	if cfg.Backtest.HighConfidence < cfg.Calibration.BucketStart {
		return fmt.Errorf("backtest high_confidence must not be below calibration bucket_start")
	}

	if cfg.Calibration.BucketStart+cfg.Calibration.BucketWidth > 1 {
		return fmt.Errorf("calibration bucket_start + bucket_width must not exceed 1")
	}

	if cfg.Checkpoint.Backend == "postgres" && !cfg.UsePostgres() {
		return fmt.Errorf("postgres checkpoint backend requires database.host")
	}

	if cfg.UsePostgres() && cfg.Database.MaxIdleConnections > cfg.Database.MaxConnections {
		return fmt.Errorf("max_idle_connections cannot exceed max_connections")
	}

	if cfg.IsProduction() && cfg.UsePostgres() && cfg.Database.SSLMode == "disable" {
		return fmt.Errorf("production environment requires SSL mode to be 'require' or 'verify-full'")
	}

	seen := make(map[string]struct{}, len(cfg.Sync.Sources))
	for _, src := range cfg.Sync.Sources {
		if _, dup := seen[src.Name]; dup {
			return fmt.Errorf("duplicate sync source name %q", src.Name)
		}
		seen[src.Name] = struct{}{}
		if src.Kind == "file" && src.Path == "" {
			return fmt.Errorf("file source %q requires path", src.Name)
		}
		if src.Kind != "file" && src.Enabled && src.BaseURL == "" {
			return fmt.Errorf("source %q requires base_url", src.Name)
		}
	}

	return nil
}

// formatValidationErrors formats validation errors into a readable string
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var b strings.Builder
	for _, fieldError := range validationErrors {
		field := fieldError.StructField()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required", "required_if", "required_with":
			fmt.Fprintf(&b, "- Field '%s' is required\n", field)
		case "url":
			fmt.Fprintf(&b, "- Field '%s' must be a valid URL, got '%v'\n", field, value)
		case "min", "max":
			fmt.Fprintf(&b, "- Field '%s' validation failed: %s constraint violated\n", field, tag)
		case "gt", "gte", "lt", "lte":
			fmt.Fprintf(&b, "- Field '%s' validation failed: numeric constraint %s violated\n", field, tag)
		case "environment":
			fmt.Fprintf(&b, "- Field '%s' must be one of: development, staging, production\n", field)
		case "loglevel":
			fmt.Fprintf(&b, "- Field '%s' must be one of: debug, info, warn, error\n", field)
		case "granularity":
			fmt.Fprintf(&b, "- Field '%s' must be one of: source, entity\n", field)
		case "probability":
			fmt.Fprintf(&b, "- Field '%s' must be between 0 and 1, got '%v'\n", field, value)
		case "oneof":
			fmt.Fprintf(&b, "- Field '%s' has invalid value '%v'\n", field, value)
		default:
			fmt.Fprintf(&b, "- Field '%s' failed validation: %s\n", field, tag)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", b.String())
}
