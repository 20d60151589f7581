package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yourusername/pra-edge/internal/api"
	"github.com/yourusername/pra-edge/internal/database"
	"github.com/yourusername/pra-edge/internal/metrics"
	"github.com/yourusername/pra-edge/internal/scheduler"
)

func newServeCmd() *cobra.Command {
	var noSchedule bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the read-only API and the scheduled source pulls",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			metrics.InitRegistry()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.predictor()
			if err != nil {
				return err
			}

			apiCfg := api.Config{
				ServiceName: cfg.App.Name,
				Version:     Version,
				Commit:      GitCommit,
				BindAddress: cfg.API.BindAddress,
				CORSOrigins: cfg.API.CORSOrigins,
				MetricsPath: cfg.Metrics.Path,
				ReportDir:   cfg.Report.OutputDir,
				Logger:      log,
				Checkpoints: a.checkpoints,
				Predictions: a.repos.Prediction,
				Results:     p,
			}
			if a.db != nil {
				apiCfg.DB = a.db
			}
			server := api.NewServer(apiCfg)
			if err := server.Start(ctx); err != nil {
				return fmt.Errorf("failed to start API server: %w", err)
			}

			if err := a.hydrate(ctx); err != nil {
				return err
			}

			var sched *scheduler.Scheduler
			if !noSchedule {
				srcs, err := a.sources()
				if err != nil {
					return err
				}
				sched = scheduler.NewScheduler(a.sync, log)
				n, err := sched.ScheduleSources(cfg.Sync.Sources, srcs)
				if err != nil {
					return err
				}
				if n > 0 {
					if err := sched.Start(); err != nil {
						return err
					}
				} else {
					log.Info("No source schedules configured, API only")
					sched = nil
				}
			}

			server.SetReady(true)
			<-ctx.Done()
			log.Info("Shutdown signal received")
			server.SetReady(false)

			if sched != nil {
				if err := sched.Stop(); err != nil {
					log.WithError(err).Warn("Scheduler did not stop cleanly")
				}
			}
			return server.Shutdown()
		},
	}

	cmd.Flags().BoolVar(&noSchedule, "no-schedule", false, "Serve the API without scheduled syncs")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cfg.UsePostgres() {
				return fmt.Errorf("migrate requires database.host")
			}
			db, err := database.NewDB(cmd.Context(), &cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			applied, err := database.Migrate(cmd.Context(), db)
			for _, name := range applied {
				fmt.Printf("Applied %s\n", name)
			}
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Println("Migrations up to date")
			}
			return nil
		},
	}
}
