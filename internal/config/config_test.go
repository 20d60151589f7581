package config

import (
	"strings"
	"testing"
)

const (
	validConfigPath              = "testdata/valid_config.yaml"
	invalidConfigPath            = "testdata/invalid_config.yaml"
	nonexistentConfigPath        = "testdata/nonexistent_config.yaml"
	expectedNoErrorLoadingConfig = "expected no error loading config, got %v"
	expectedNoErrorMsg           = "expected no error, got %v"
	expectedNonNilConfig         = "expected non-nil config"
	praEdgeName                  = "pra-edge"
	developmentEnv               = "development"
	localhostHost                = "localhost"
	postgresPort                 = 5432
	postgresPrefix               = "postgres://"
	testAppName                  = "test-app"
	testDBPassword               = "TEST_DB_PASSWORD"
	expandedSecretValue          = "expanded_secret_value"
)

// TestLoadConfigSuccess tests loading a valid configuration file
func TestLoadConfigSuccess(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorMsg, err)
	}
	if cfg == nil {
		t.Fatal(expectedNonNilConfig)
	}

	if cfg.App.Name != praEdgeName {
		t.Errorf("expected app name '%s', got '%s'", praEdgeName, cfg.App.Name)
	}
	if cfg.App.Environment != developmentEnv {
		t.Errorf("expected environment '%s', got '%s'", developmentEnv, cfg.App.Environment)
	}
	if cfg.Database.Host != localhostHost {
		t.Errorf("expected database host '%s', got '%s'", localhostHost, cfg.Database.Host)
	}
	if cfg.Database.Port != postgresPort {
		t.Errorf("expected database port %d, got %d", postgresPort, cfg.Database.Port)
	}
	if len(cfg.Sync.Sources) != 3 {
		t.Fatalf("expected 3 sync sources, got %d", len(cfg.Sync.Sources))
	}
	if cfg.Scoring.Weights["logistic_weight"] != 0.6 {
		t.Errorf("expected logistic weight 0.6, got %v", cfg.Scoring.Weights["logistic_weight"])
	}
	if cfg.Calibration.BucketWidth != 0.02 {
		t.Errorf("expected bucket width 0.02, got %v", cfg.Calibration.BucketWidth)
	}
}

// TestLoadConfigFileNotFound tests handling of missing configuration file
func TestLoadConfigFileNotFound(t *testing.T) {
	if _, err := Load(nonexistentConfigPath); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

// TestLoadConfigEnvironmentVariables tests environment variable override
func TestLoadConfigEnvironmentVariables(t *testing.T) {
	t.Setenv("PRA_EDGE_APP_NAME", testAppName)

	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorMsg, err)
	}

	if cfg.App.Name != testAppName {
		t.Errorf("expected app name '%s' from environment, got '%s'", testAppName, cfg.App.Name)
	}
}

// TestLoadConfigEnvironmentVariableExpansion tests ${VAR} expansion in the config file
func TestLoadConfigEnvironmentVariableExpansion(t *testing.T) {
	t.Setenv(testDBPassword, expandedSecretValue)

	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	if cfg.Database.Password != expandedSecretValue {
		t.Errorf("expected password '%s' from environment expansion, got '%s'", expandedSecretValue, cfg.Database.Password)
	}
}

// TestLoadWithDefaultsMissingFile falls back to defaults when the file is absent
func TestLoadWithDefaultsMissingFile(t *testing.T) {
	cfg, err := LoadWithDefaults(nonexistentConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorMsg, err)
	}

	if cfg.Features.MinGames != 5 {
		t.Errorf("expected default min_games 5, got %d", cfg.Features.MinGames)
	}
	if cfg.Calibration.BucketStart != 0.50 || cfg.Calibration.BucketWidth != 0.02 {
		t.Errorf("unexpected calibration defaults: %+v", cfg.Calibration)
	}
	if cfg.Backtest.HighConfidence != 0.90 {
		t.Errorf("expected default high_confidence 0.90, got %v", cfg.Backtest.HighConfidence)
	}
	if cfg.UsePostgres() {
		t.Error("expected in-memory ledger when no database host is configured")
	}
}

// TestValidateSuccess tests validation of a valid configuration
func TestValidateSuccess(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	if err := Validate(cfg); err != nil {
		t.Fatalf("expected no validation error, got %v", err)
	}
}

// TestValidateInvalidConfig collects every field-level failure in one message
func TestValidateInvalidConfig(t *testing.T) {
	cfg, err := Load(invalidConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	err = Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}

	for _, field := range []string{"Environment", "LogLevel", "Granularity", "HighConfidence"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("expected error to mention %s, got: %v", field, err)
		}
	}
}

// TestValidateCrossField covers checks that span more than one field
func TestValidateCrossField(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
		want   string
	}{
		{
			name:   "reversed backtest range",
			mutate: func(cfg *Config) { cfg.Backtest.StartDate, cfg.Backtest.EndDate = cfg.Backtest.EndDate, cfg.Backtest.StartDate },
			want:   "start_date must be before end_date",
		},
		{
			name:   "picks band inverted",
			mutate: func(cfg *Config) { cfg.Backtest.PicksMin, cfg.Backtest.PicksMax = 9, 3 },
			want:   "picks_max",
		},
		{
			name:   "high confidence below buckets",
			mutate: func(cfg *Config) { cfg.Calibration.BucketStart = 0.95 },
			want:   "high_confidence",
		},
		{
			name: "duplicate source",
			mutate: func(cfg *Config) {
				cfg.Sync.Sources = append(cfg.Sync.Sources, cfg.Sync.Sources[0])
			},
			want: "duplicate sync source",
		},
		{
			name: "postgres checkpoints without database",
			mutate: func(cfg *Config) {
				cfg.Database = DatabaseConfig{}
				cfg.Checkpoint.Backend = "postgres"
			},
			want: "requires database.host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(validConfigPath)
			if err != nil {
				t.Fatalf(expectedNoErrorLoadingConfig, err)
			}
			tt.mutate(cfg)

			err = Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got: %v", tt.want, err)
			}
		})
	}
}

// TestGetDatabaseDSN tests DSN generation
func TestGetDatabaseDSN(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	dsn := cfg.GetDatabaseDSN()
	if !strings.HasPrefix(dsn, postgresPrefix) {
		t.Errorf("expected DSN to start with '%s', got '%s'", postgresPrefix, dsn)
	}
}

// TestOverlaySecrets applies only the secrets that are present
func TestOverlaySecrets(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}
	before := cfg.Database.Password

	overlaySecretsOnConfig(cfg, &SecretsOverlay{
		SourceAPIKeys: map[string]string{"odds_api": "secret-key"},
	})

	if cfg.Database.Password != before {
		t.Errorf("expected database password untouched, got %q", cfg.Database.Password)
	}
	src, ok := cfg.Source("odds_api")
	if !ok || src.APIKey != "secret-key" {
		t.Errorf("expected odds_api key from secrets, got %+v", src)
	}
}
