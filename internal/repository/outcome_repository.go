package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/yourusername/pra-edge/internal/database"
	"github.com/yourusername/pra-edge/internal/models"
)

// PostgresOutcomeRepository implements OutcomeRepository for PostgreSQL
type PostgresOutcomeRepository struct {
	db *database.DB
}

// NewPostgresOutcomeRepository creates a new outcome repository
func NewPostgresOutcomeRepository(db *database.DB) OutcomeRepository {
	return &PostgresOutcomeRepository{db: db}
}

// Insert stores the outcome unless one already exists for the key and event
func (r *PostgresOutcomeRepository) Insert(ctx context.Context, o *models.Outcome) (WriteResult, error) {
	query := `
		INSERT INTO outcomes (player_name, team, event_id, actual, settled_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (player_name, team, event_id) DO NOTHING
	`

	tag, err := r.db.Conn(ctx).Exec(ctx, query, o.Key.Name, o.Key.Team, o.EventID, o.Actual, o.SettledAt)
	if err != nil {
		return WriteSkipped, fmt.Errorf("failed to insert outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return WriteSkipped, nil
	}
	return WriteInserted, nil
}

// Get retrieves the outcome for a player in an event
func (r *PostgresOutcomeRepository) Get(ctx context.Context, key models.IdentityKey, eventID string) (*models.Outcome, error) {
	query := `
		SELECT player_name, team, event_id, actual, settled_at
		FROM outcomes WHERE player_name = $1 AND team = $2 AND event_id = $3
	`

	o := &models.Outcome{}
	err := r.db.Conn(ctx).QueryRow(ctx, query, key.Name, key.Team, eventID).Scan(
		&o.Key.Name, &o.Key.Team, &o.EventID, &o.Actual, &o.SettledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get outcome: %w", err)
	}
	return o, nil
}

// ListAll retrieves every outcome
func (r *PostgresOutcomeRepository) ListAll(ctx context.Context) ([]*models.Outcome, error) {
	query := `SELECT player_name, team, event_id, actual, settled_at FROM outcomes ORDER BY settled_at ASC`

	rows, err := r.db.Conn(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*models.Outcome
	for rows.Next() {
		o := &models.Outcome{}
		if err := rows.Scan(&o.Key.Name, &o.Key.Team, &o.EventID, &o.Actual, &o.SettledAt); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcomes: %w", err)
	}
	return outcomes, nil
}
