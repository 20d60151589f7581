package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/pra-edge/internal/backtest"
	"github.com/yourusername/pra-edge/internal/calibration"
	"github.com/yourusername/pra-edge/internal/features"
	"github.com/yourusername/pra-edge/internal/scoring"
)

type backtestOptions struct {
	start      string
	end        string
	workers    int
	windowDays int
	bookmaker  string
	parquet    bool
	upload     bool
	persist    bool
}

func newBacktestCmd() *cobra.Command {
	opts := &backtestOptions{}

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay the scorer over history and calibrate its confidence",
		Long: `Simulates every (player, event, bookmaker) selection in the date range using
only data observed before each game day, settles it against the recorded
outcome and reports accuracy, high-confidence accuracy and per-bucket
calibration. With --window-days the range is split into consecutive windows
whose calibration is pooled into a final recommendation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBacktest(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.start, "start", "", "Override start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.end, "end", "", "Override end date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Override worker count")
	cmd.Flags().IntVar(&opts.windowDays, "window-days", -1, "Walk-forward window size in days (0 runs a single window)")
	cmd.Flags().StringVar(&opts.bookmaker, "bookmaker", "", "Only replay lines from this bookmaker")
	cmd.Flags().BoolVar(&opts.parquet, "parquet", false, "Also export resolved predictions as Parquet")
	cmd.Flags().BoolVar(&opts.upload, "upload", false, "Upload report artifacts to S3")
	cmd.Flags().BoolVar(&opts.persist, "persist", false, "Store resolved predictions in the prediction table")
	return cmd
}

func buildBacktestConfig(opts *backtestOptions) (backtest.BacktestConfig, error) {
	btConfig, err := backtest.FromConfig(&cfg.Backtest)
	if err != nil {
		return btConfig, fmt.Errorf("invalid backtest config: %w", err)
	}
	if opts.start != "" {
		parsed, err := time.Parse("2006-01-02", opts.start)
		if err != nil {
			return btConfig, fmt.Errorf("invalid start date: %w", err)
		}
		btConfig.StartDate = parsed
	}
	if opts.end != "" {
		parsed, err := time.Parse("2006-01-02", opts.end)
		if err != nil {
			return btConfig, fmt.Errorf("invalid end date: %w", err)
		}
		btConfig.EndDate = parsed
	}
	if opts.workers > 0 {
		btConfig.Workers = opts.workers
	}
	if opts.windowDays >= 0 {
		btConfig.WindowDays = opts.windowDays
	}
	if opts.bookmaker != "" {
		btConfig.Bookmaker = opts.bookmaker
	}
	if opts.persist {
		btConfig.PersistPredictions = true
	}
	return btConfig, btConfig.Validate()
}

func runBacktest(ctx context.Context, opts *backtestOptions) error {
	btConfig, err := buildBacktestConfig(opts)
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	led, err := a.ledger(ctx)
	if err != nil {
		return err
	}
	scorer, err := scoring.New(cfg.Scoring, log)
	if err != nil {
		return err
	}

	engine, err := backtest.NewEngine(btConfig, led, scorer, calibration.ConfigFrom(cfg.Calibration), log,
		backtest.WithFeatureBuilder(features.NewBuilder(cfg.Features)),
		backtest.WithPredictionStore(a.repos.Prediction),
	)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	log.WithFields(logrus.Fields{
		"start":       btConfig.StartDate.Format("2006-01-02"),
		"end":         btConfig.EndDate.Format("2006-01-02"),
		"window_days": btConfig.WindowDays,
		"model":       scorer.Version(),
	}).Info("Starting backtest")

	// Report failures never invalidate a finished run.
	sinks := newReportSinks(ctx, opts)
	if btConfig.WindowDays > 0 {
		wf, err := backtest.RunWindows(ctx, engine, btConfig.WindowDays)
		if err != nil {
			return fmt.Errorf("walk-forward backtest failed: %w", err)
		}
		fmt.Print(backtest.RenderWalkForwardText(wf))
		results := make([]*backtest.Result, 0, len(wf.Windows))
		for _, w := range wf.Windows {
			results = append(results, w.Result)
		}
		writeReports(ctx, sinks, results, opts)
		writeWalkForwardReport(ctx, sinks, wf)
		return nil
	}

	r, err := engine.Run(ctx)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}
	fmt.Print(backtest.RenderText(r))
	writeReports(ctx, sinks, []*backtest.Result{r}, opts)
	return nil
}

type reportSinks struct {
	reporter *backtest.Reporter
	uploader *backtest.S3Uploader
}

func newReportSinks(ctx context.Context, opts *backtestOptions) reportSinks {
	sinks := reportSinks{reporter: backtest.NewReporter(cfg.Report.OutputDir, log)}
	if opts.upload || cfg.Report.S3.Enabled {
		u, err := backtest.NewS3Uploader(ctx, cfg.Report.S3, log)
		if err != nil {
			log.WithError(err).Warn("S3 upload disabled")
		} else {
			sinks.uploader = u
		}
	}
	return sinks
}

// writeWalkForwardReport persists the pooled result next to the per-window reports.
func writeWalkForwardReport(ctx context.Context, sinks reportSinks, wf *backtest.WalkForwardResult) {
	artifacts, err := sinks.reporter.WriteWalkForward(wf, time.Now())
	if err != nil {
		log.WithError(err).Warn("Some walk-forward artifacts were not written")
	}
	paths := artifacts.Paths()
	for _, p := range paths {
		fmt.Printf("Wrote %s\n", p)
	}

	if sinks.uploader != nil && len(paths) > 0 {
		keys, err := sinks.uploader.UploadWalkForward(ctx, wf, paths)
		if err != nil {
			log.WithError(err).Warn("Walk-forward upload incomplete")
		}
		for _, k := range keys {
			fmt.Printf("Uploaded s3://%s/%s\n", cfg.Report.S3.Bucket, k)
		}
	}
}

func writeReports(ctx context.Context, sinks reportSinks, results []*backtest.Result, opts *backtestOptions) {
	reporter, uploader := sinks.reporter, sinks.uploader

	for _, r := range results {
		artifacts, err := reporter.Write(r, time.Now())
		if err != nil {
			log.WithError(err).Warn("Some report artifacts were not written")
		}
		paths := artifacts.Paths()

		if opts.parquet || cfg.Report.ParquetExport {
			base := strings.TrimSuffix(filepath.Base(artifacts.JSON), ".json")
			if base == "" || base == "." {
				base = backtest.ReportBaseName(r, time.Now())
			}
			path, err := backtest.ExportPredictionsParquet(r, cfg.Report.OutputDir, base)
			if err != nil {
				log.WithError(err).Warn("Parquet export failed")
			} else {
				paths = append(paths, path)
			}
		}

		for _, p := range paths {
			fmt.Printf("Wrote %s\n", p)
		}

		if uploader != nil && len(paths) > 0 {
			keys, err := uploader.Upload(ctx, r, paths)
			if err != nil {
				log.WithError(err).Warn("Report upload incomplete")
			}
			for _, k := range keys {
				fmt.Printf("Uploaded s3://%s/%s\n", cfg.Report.S3.Bucket, k)
			}
		}
	}
}
