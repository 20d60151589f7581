package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/yourusername/pra-edge/internal/database"
	"github.com/yourusername/pra-edge/internal/models"
)

const propLineColumns = `player_name, team, event_id, bookmaker, fetched_at, market, line, over_price,
	under_price, home_team, away_team, scheduled_at`

// PostgresPropLineRepository implements PropLineRepository for PostgreSQL
type PostgresPropLineRepository struct {
	db *database.DB
}

// NewPostgresPropLineRepository creates a new prop line repository
func NewPostgresPropLineRepository(db *database.DB) PropLineRepository {
	return &PostgresPropLineRepository{db: db}
}

// Append inserts a line observation. The table has no UPDATE path.
func (r *PostgresPropLineRepository) Append(ctx context.Context, l *models.PropLine) (WriteResult, error) {
	query := `
		INSERT INTO prop_lines (` + propLineColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT DO NOTHING
	`

	tag, err := r.db.Conn(ctx).Exec(ctx, query,
		l.Key.Name, l.Key.Team, l.EventID, l.Bookmaker, l.FetchedAt, l.Market, l.Line,
		l.OverPrice, l.UnderPrice, l.HomeTeam, l.AwayTeam, l.ScheduledAt,
	)
	if err != nil {
		return WriteSkipped, fmt.Errorf("failed to append prop line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return WriteSkipped, nil
	}
	return WriteInserted, nil
}

// ListScheduledBetween retrieves lines for events scheduled in [start, end)
func (r *PostgresPropLineRepository) ListScheduledBetween(ctx context.Context, start, end time.Time) ([]*models.PropLine, error) {
	query := `SELECT ` + propLineColumns + ` FROM prop_lines
		WHERE scheduled_at >= $1 AND scheduled_at < $2
		ORDER BY scheduled_at ASC, fetched_at ASC`
	return r.list(ctx, query, start, end)
}

// ListAll retrieves every line observation
func (r *PostgresPropLineRepository) ListAll(ctx context.Context) ([]*models.PropLine, error) {
	query := `SELECT ` + propLineColumns + ` FROM prop_lines ORDER BY scheduled_at ASC, fetched_at ASC`
	return r.list(ctx, query)
}

func (r *PostgresPropLineRepository) list(ctx context.Context, query string, args ...any) ([]*models.PropLine, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query prop lines: %w", err)
	}
	defer rows.Close()

	var lines []*models.PropLine
	for rows.Next() {
		l, err := scanPropLine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prop line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prop lines: %w", err)
	}
	return lines, nil
}

func scanPropLine(row pgx.Row) (*models.PropLine, error) {
	l := &models.PropLine{}
	err := row.Scan(
		&l.Key.Name, &l.Key.Team, &l.EventID, &l.Bookmaker, &l.FetchedAt, &l.Market, &l.Line,
		&l.OverPrice, &l.UnderPrice, &l.HomeTeam, &l.AwayTeam, &l.ScheduledAt,
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}
