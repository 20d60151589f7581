// Package main provides the praedge CLI: incremental sync, walk-forward
// backtesting, live predictions and the read-only API server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/pra-edge/internal/config"
	"github.com/yourusername/pra-edge/internal/logger"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var (
	configFile string
	envFile    string
	log        *logrus.Logger
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "praedge",
	Short:         "NBA points+rebounds+assists prop predictor",
	Long:          `Synchronizes box scores, prop lines and outcomes into a local ledger, backtests the scorer with walk-forward confidence calibration, and publishes high-confidence picks.`,
	Version:       fmt.Sprintf("%s (%s)", Version, GitCommit),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnvFile(envFile); err != nil {
			return err
		}
		var err error
		cfg, err = loadConfigWithSecrets(cmd.Context(), configFile)
		if err != nil {
			return err
		}
		log = logger.NewLoggerWithOptions(logger.Options{
			Level:       cfg.App.LogLevel,
			Environment: cfg.App.Environment,
			File:        cfg.App.LogFile,
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before the config")

	rootCmd.AddCommand(
		newSyncCmd(),
		newBacktestCmd(),
		newReportCmd(),
		newPredictCmd(),
		newResolveCmd(),
		newCheckpointCmd(),
		newServeCmd(),
		newMigrateCmd(),
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// loadEnvFile loads a dotenv file if present. Variables already set in the
// environment win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func loadConfigWithSecrets(ctx context.Context, path string) (*config.Config, error) {
	c, err := config.LoadWithDefaults(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if region == "" || secretName == "" {
			return nil, fmt.Errorf("AWS_REGION and AWS_SECRET_NAME environment variables must be set when AWS_SECRETS_ENABLED is true")
		}
		if err := config.LoadSecretsFromAWS(ctx, c, region, secretName); err != nil {
			return nil, fmt.Errorf("failed to load secrets: %w", err)
		}
	}
	if err := config.Validate(c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}
