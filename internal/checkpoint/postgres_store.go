package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/yourusername/pra-edge/internal/database"
	"github.com/yourusername/pra-edge/internal/models"
)

// PostgresStore keeps watermarks in the checkpoints table. Advance called
// with a context bound to an open transaction commits with that transaction,
// which ties the watermark to the merge it covers.
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore creates a Postgres-backed store
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Watermark(ctx context.Context, source string) (time.Time, bool, error) {
	return s.get(ctx, source, "")
}

func (s *PostgresStore) Advance(ctx context.Context, source string, wm time.Time) error {
	return s.advance(ctx, source, "", wm)
}

func (s *PostgresStore) EntityWatermark(ctx context.Context, source string, key models.IdentityKey) (time.Time, bool, error) {
	return s.get(ctx, source, key.String())
}

func (s *PostgresStore) AdvanceEntity(ctx context.Context, source string, key models.IdentityKey, wm time.Time) error {
	return s.advance(ctx, source, key.String(), wm)
}

func (s *PostgresStore) Sources(ctx context.Context) ([]Watermark, error) {
	query := `SELECT source, watermark, updated_at FROM checkpoints WHERE entity = '' ORDER BY source`

	rows, err := s.db.Conn(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoints: %w", err)
	}
	defer rows.Close()

	var out []Watermark
	for rows.Next() {
		var w Watermark
		if err := rows.Scan(&w.Source, &w.Watermark, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checkpoints: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) get(ctx context.Context, source, entity string) (time.Time, bool, error) {
	query := `SELECT watermark FROM checkpoints WHERE source = $1 AND entity = $2`

	var wm time.Time
	err := s.db.Conn(ctx).QueryRow(ctx, query, source, entity).Scan(&wm)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return wm, true, nil
}

// advance writes with a conditional upsert so two writers cannot both move
// the same row; the loser sees no RETURNING row and reports stale.
func (s *PostgresStore) advance(ctx context.Context, source, entity string, wm time.Time) error {
	// timestamptz stores microseconds
	wm = wm.UTC().Truncate(time.Microsecond)

	query := `
		INSERT INTO checkpoints (source, entity, watermark, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (source, entity) DO UPDATE SET
			watermark = EXCLUDED.watermark,
			updated_at = EXCLUDED.updated_at
		WHERE checkpoints.watermark < EXCLUDED.watermark
		RETURNING watermark
	`

	return s.db.WithTransaction(ctx, func(ctx context.Context) error {
		var stored time.Time
		err := s.db.Conn(ctx).QueryRow(ctx, query, source, entity, wm).Scan(&stored)
		if err == nil {
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to advance checkpoint: %w", err)
		}

		current, _, err := s.get(ctx, source, entity)
		if err != nil {
			return err
		}
		return &models.StaleWatermarkError{Source: source, Entity: entity, Current: current, Attempted: wm}
	})
}
