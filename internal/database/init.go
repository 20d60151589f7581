package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/yourusername/pra-edge/internal/config"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationsTable is where golang-migrate records the schema version.
const MigrationsTable = "schema_migrations"

// Initialize creates a database connection pool and applies pending migrations.
func Initialize(ctx context.Context, cfg *config.Config) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	if _, err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// migrationSource exposes the embedded *.up.sql / *.down.sql pairs.
func migrationSource() (source.Driver, error) {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return nil, err
	}
	return iofs.New(sub, ".")
}

// Migrate brings the schema up to the newest embedded migration and returns
// the migrations it applied, oldest first.
func Migrate(ctx context.Context, db *DB) ([]string, error) {
	src, err := migrationSource()
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations: %w", err)
	}

	// closing sqlDB leaves the pool open
	sqlDB := stdlib.OpenDBFromPool(db.pool)
	driver, err := pgxmigrate.WithInstance(sqlDB, &pgxmigrate.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	before, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		before = 0
	case err != nil:
		return nil, fmt.Errorf("failed to read schema version: %w", err)
	case dirty:
		return nil, fmt.Errorf("schema version %d is dirty; fix it and force the version", before)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	after, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return nil, fmt.Errorf("failed to read schema version: %w", err)
	}

	names, err := migrationNames()
	if err != nil {
		return nil, err
	}
	var applied []string
	for _, mg := range names {
		if mg.version > before && mg.version <= after {
			applied = append(applied, mg.name)
		}
	}
	return applied, nil
}

type migration struct {
	version uint
	name    string
}

// migrationNames lists the embedded up migrations as "<version>_<name>".
func migrationNames() ([]migration, error) {
	src, err := migrationSource()
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations: %w", err)
	}
	defer src.Close()

	var out []migration
	v, err := src.First()
	for err == nil {
		r, ident, rerr := src.ReadUp(v)
		if rerr != nil {
			return nil, fmt.Errorf("failed to read migration %d: %w", v, rerr)
		}
		r.Close()
		out = append(out, migration{version: v, name: fmt.Sprintf("%03d_%s", v, ident)})
		v, err = src.Next(v)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	return out, nil
}
