package main

import (
	"context"
	"fmt"
	"time"

	"github.com/yourusername/pra-edge/internal/checkpoint"
	"github.com/yourusername/pra-edge/internal/database"
	"github.com/yourusername/pra-edge/internal/datasource"
	"github.com/yourusername/pra-edge/internal/features"
	"github.com/yourusername/pra-edge/internal/ledger"
	"github.com/yourusername/pra-edge/internal/repository"
	"github.com/yourusername/pra-edge/internal/scoring"
	"github.com/yourusername/pra-edge/internal/service"
)

// app bundles the stores and services every command builds on.
type app struct {
	db          *database.DB
	repos       *repository.Repositories
	checkpoints checkpoint.Store
	roster      *datasource.RosterResolver
	sync        *service.Synchronizer
	ephemeral   bool
}

// openApp wires Postgres when a database host is configured. Without one the
// ledger and its checkpoints live in memory for the life of the process, so
// watermarks can never run ahead of the data they describe.
func openApp(ctx context.Context) (*app, error) {
	a := &app{roster: datasource.NewRosterResolver()}

	if cfg.UsePostgres() {
		db, err := database.Initialize(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		a.db = db

		a.repos, err = repository.NewRepositories(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.checkpoints, err = checkpoint.New(cfg.Checkpoint, db)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
		}
		if err := a.roster.Refresh(ctx, a.repos.PlayerGame); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to load roster: %w", err)
		}
	} else {
		log.Warn("No database configured, using an in-memory ledger")
		a.repos = repository.NewMemoryRepositories()
		a.checkpoints = checkpoint.NewMemoryStore()
		a.ephemeral = true
	}

	a.sync = service.NewSynchronizer(a.repos, a.checkpoints, cfg.Sync.Granularity, log)
	return a, nil
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

// sources builds the enabled sources, optionally filtered by name.
func (a *app) sources(names ...string) ([]datasource.Source, error) {
	all, err := datasource.NewFactory(a.roster, log).NewSources(cfg.Sync)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return all, nil
	}

	byName := make(map[string]datasource.Source, len(all))
	for _, src := range all {
		byName[src.Name()] = src
	}
	var out []datasource.Source
	for _, name := range names {
		src, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("source %s is not configured or not enabled", name)
		}
		out = append(out, src)
	}
	return out, nil
}

// hydrate fills an in-memory ledger from every source. Box score sources
// run first so odds sources can resolve player teams.
func (a *app) hydrate(ctx context.Context) error {
	if !a.ephemeral {
		return nil
	}
	srcs, err := a.sources()
	if err != nil {
		return err
	}

	var boxScores, rest []datasource.Source
	for _, src := range srcs {
		if sc, ok := cfg.Source(src.Name()); ok && sc.Kind != string(datasource.OddsSourceKind) {
			boxScores = append(boxScores, src)
		} else {
			rest = append(rest, src)
		}
	}

	start := time.Now()
	if _, err := a.sync.PullAll(ctx, boxScores); err != nil {
		return fmt.Errorf("failed to hydrate ledger: %w", err)
	}
	if err := a.roster.Refresh(ctx, a.repos.PlayerGame); err != nil {
		return err
	}
	if _, err := a.sync.PullAll(ctx, rest); err != nil {
		return fmt.Errorf("failed to hydrate ledger: %w", err)
	}
	log.WithField("duration", time.Since(start)).Info("In-memory ledger hydrated")
	return nil
}

func (a *app) ledger(ctx context.Context) (*ledger.Ledger, error) {
	if err := a.hydrate(ctx); err != nil {
		return nil, err
	}
	return ledger.Load(ctx, a.repos)
}

func (a *app) predictor() (*service.Predictor, error) {
	scorer, err := scoring.New(cfg.Scoring, log)
	if err != nil {
		return nil, err
	}
	return service.NewPredictor(a.repos, features.NewBuilder(cfg.Features), scorer, cfg.Predict, log), nil
}
