// Package config provides configuration management for the pra-edge application.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App         AppConfig         `mapstructure:"app" validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Checkpoint  CheckpointConfig  `mapstructure:"checkpoint" validate:"required"`
	Sync        SyncConfig        `mapstructure:"sync" validate:"required"`
	Features    FeatureConfig     `mapstructure:"features" validate:"required"`
	Scoring     ScoringConfig     `mapstructure:"scoring" validate:"required"`
	Calibration CalibrationConfig `mapstructure:"calibration" validate:"required"`
	Backtest    BacktestConfig    `mapstructure:"backtest" validate:"required"`
	Predict     PredictConfig     `mapstructure:"predict" validate:"required"`
	Report      ReportConfig      `mapstructure:"report" validate:"required"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	API         APIConfig         `mapstructure:"api"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
	LogFile     string `mapstructure:"log_file"`
}

// DatabaseConfig represents database connection configuration. An empty
// host selects the in-memory ledger.
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required_with=Host"`
	User               string `mapstructure:"user" validate:"required_with=Host"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"omitempty,gt=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"omitempty,gte=0"`
}

// CheckpointConfig selects where watermarks are stored.
type CheckpointConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=file postgres"`
	Dir     string `mapstructure:"dir" validate:"required_if=Backend file"`
}

// SyncConfig configures the incremental synchronizer and its sources.
type SyncConfig struct {
	Granularity string         `mapstructure:"granularity" validate:"required,granularity"`
	Sources     []SourceConfig `mapstructure:"sources" validate:"required,min=1,dive"`
}

// SourceConfig represents a single ingestion source
type SourceConfig struct {
	Name           string   `mapstructure:"name" validate:"required"`
	Kind           string   `mapstructure:"kind" validate:"required,oneof=odds box_score file"`
	Enabled        bool     `mapstructure:"enabled"`
	BaseURL        string   `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey         string   `mapstructure:"api_key"`
	Path           string   `mapstructure:"path"`
	Schedule       string   `mapstructure:"schedule"`
	Bookmakers     []string `mapstructure:"bookmakers"`
	RateLimit      float64  `mapstructure:"rate_limit" validate:"omitempty,gt=0"`
	MaxRetries     int      `mapstructure:"max_retries" validate:"gte=0"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds" validate:"omitempty,gt=0"`
}

// FeatureConfig controls the point-in-time feature builder.
type FeatureConfig struct {
	MinGames          int `mapstructure:"min_games" validate:"required,gt=0"`
	RecentWindow      int `mapstructure:"recent_window" validate:"required,gt=0"`
	ConsistencyWindow int `mapstructure:"consistency_window" validate:"required,gt=1"`
}

// ScoringConfig selects the scoring function.
type ScoringConfig struct {
	Model           string             `mapstructure:"model" validate:"required,oneof=logistic margin ensemble remote"`
	Weights         map[string]float64 `mapstructure:"weights"`
	RemoteURL       string             `mapstructure:"remote_url" validate:"required_if=Model remote,omitempty,url"`
	RemoteVersion   string             `mapstructure:"remote_version"`
	CacheTTLSeconds int                `mapstructure:"cache_ttl_seconds" validate:"gte=0"`
	CacheMaxSize    int                `mapstructure:"cache_max_size" validate:"gte=0"`
}

// CalibrationConfig fixes the confidence buckets.
type CalibrationConfig struct {
	BucketStart float64 `mapstructure:"bucket_start" validate:"probability"`
	BucketWidth float64 `mapstructure:"bucket_width" validate:"required,gt=0,lte=0.5"`
	Tolerance   float64 `mapstructure:"tolerance" validate:"required,gt=0,lt=1"`
	MinSamples  int     `mapstructure:"min_samples" validate:"required,gt=0"`
}

// BacktestConfig represents backtesting configuration
type BacktestConfig struct {
	StartDate          string  `mapstructure:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate            string  `mapstructure:"end_date" validate:"required,datetime=2006-01-02"`
	Workers            int     `mapstructure:"workers" validate:"required,gt=0"`
	HighConfidence     float64 `mapstructure:"high_confidence" validate:"required,probability"`
	PicksMin           int     `mapstructure:"picks_min" validate:"gte=0"`
	PicksMax           int     `mapstructure:"picks_max" validate:"gte=0"`
	Bookmaker          string  `mapstructure:"bookmaker"`
	PersistPredictions bool    `mapstructure:"persist_predictions"`
	WindowDays         int     `mapstructure:"window_days" validate:"gte=0"`
}

// PredictConfig drives the live prediction flow.
type PredictConfig struct {
	MinConfidence float64 `mapstructure:"min_confidence" validate:"required,probability"`
	HorizonHours  int     `mapstructure:"horizon_hours" validate:"required,gt=0"`
}

// ReportConfig controls where report artifacts go.
type ReportConfig struct {
	OutputDir     string   `mapstructure:"output_dir" validate:"required"`
	ParquetExport bool     `mapstructure:"parquet_export"`
	S3            S3Config `mapstructure:"s3"`
}

// S3Config configures optional artifact upload.
type S3Config struct {
	Enabled         bool   `mapstructure:"enabled"`
	Bucket          string `mapstructure:"bucket" validate:"required_if=Enabled true"`
	Region          string `mapstructure:"region" validate:"required_if=Enabled true"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PathStyle       bool   `mapstructure:"path_style"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// APIConfig configures the read-only HTTP API.
type APIConfig struct {
	BindAddress string   `mapstructure:"bind_address"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// UsePostgres reports whether a database is configured.
func (c *Config) UsePostgres() bool {
	return c.Database.Host != ""
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// Source returns the named source configuration.
func (c *Config) Source(name string) (SourceConfig, bool) {
	for _, src := range c.Sync.Sources {
		if src.Name == name {
			return src, true
		}
	}
	return SourceConfig{}, false
}

// BacktestRange parses the configured backtest dates.
func (c *BacktestConfig) BacktestRange() (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", c.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date: %w", err)
	}
	end, err := time.Parse("2006-01-02", c.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date: %w", err)
	}
	return start, end, nil
}
