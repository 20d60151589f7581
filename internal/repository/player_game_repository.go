package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/yourusername/pra-edge/internal/database"
	"github.com/yourusername/pra-edge/internal/models"
)

const playerGameColumns = `player_name, team, period, game_date, season, opponent, home, points, rebounds,
	assists, minutes, fg_pct, fg3_pct, ft_pct, fga, fta, turnovers, observed_at`

// PostgresPlayerGameRepository implements PlayerGameRepository for PostgreSQL
type PostgresPlayerGameRepository struct {
	db *database.DB
}

// NewPostgresPlayerGameRepository creates a new player game repository
func NewPostgresPlayerGameRepository(db *database.DB) PlayerGameRepository {
	return &PostgresPlayerGameRepository{db: db}
}

// Upsert relies on the conflict WHERE clause so the timestamp comparison and
// the write happen in one statement. A skipped row returns no RETURNING row.
func (r *PostgresPlayerGameRepository) Upsert(ctx context.Context, g *models.PlayerGame) (WriteResult, error) {
	query := `
		INSERT INTO player_games (` + playerGameColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (player_name, team, period) DO UPDATE SET
			game_date = EXCLUDED.game_date,
			season = EXCLUDED.season,
			opponent = EXCLUDED.opponent,
			home = EXCLUDED.home,
			points = EXCLUDED.points,
			rebounds = EXCLUDED.rebounds,
			assists = EXCLUDED.assists,
			minutes = EXCLUDED.minutes,
			fg_pct = EXCLUDED.fg_pct,
			fg3_pct = EXCLUDED.fg3_pct,
			ft_pct = EXCLUDED.ft_pct,
			fga = EXCLUDED.fga,
			fta = EXCLUDED.fta,
			turnovers = EXCLUDED.turnovers,
			observed_at = EXCLUDED.observed_at
		WHERE player_games.observed_at < EXCLUDED.observed_at
		RETURNING (xmax = 0) AS inserted
	`

	var inserted bool
	err := r.db.Conn(ctx).QueryRow(ctx, query,
		g.Key.Name, g.Key.Team, g.Period, g.GameDate, g.Season, g.Opponent, g.Home,
		g.Points, g.Rebounds, g.Assists, g.Minutes, g.FieldGoalPct, g.ThreePointPct, g.FreeThrowPct,
		g.FieldGoalAttempts, g.FreeThrowAttempts, g.Turnovers, g.ObservedAt,
	).Scan(&inserted)
	if errors.Is(err, pgx.ErrNoRows) {
		return WriteSkipped, nil
	}
	if err != nil {
		return WriteSkipped, fmt.Errorf("failed to upsert player game: %w", err)
	}
	if inserted {
		return WriteInserted, nil
	}
	return WriteUpdated, nil
}

// Get retrieves one row by key and period
func (r *PostgresPlayerGameRepository) Get(ctx context.Context, key models.IdentityKey, period string) (*models.PlayerGame, error) {
	query := `SELECT ` + playerGameColumns + ` FROM player_games WHERE player_name = $1 AND team = $2 AND period = $3`

	g, err := scanPlayerGame(r.db.Conn(ctx).QueryRow(ctx, query, key.Name, key.Team, period))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player game: %w", err)
	}
	return g, nil
}

// ListByKey retrieves a player's games in date order
func (r *PostgresPlayerGameRepository) ListByKey(ctx context.Context, key models.IdentityKey) ([]*models.PlayerGame, error) {
	query := `SELECT ` + playerGameColumns + ` FROM player_games
		WHERE player_name = $1 AND team = $2 ORDER BY game_date ASC`
	return r.list(ctx, query, key.Name, key.Team)
}

// ListAll retrieves every row in date order
func (r *PostgresPlayerGameRepository) ListAll(ctx context.Context) ([]*models.PlayerGame, error) {
	query := `SELECT ` + playerGameColumns + ` FROM player_games ORDER BY game_date ASC, player_name, team`
	return r.list(ctx, query)
}

func (r *PostgresPlayerGameRepository) list(ctx context.Context, query string, args ...any) ([]*models.PlayerGame, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query player games: %w", err)
	}
	defer rows.Close()

	var games []*models.PlayerGame
	for rows.Next() {
		g, err := scanPlayerGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player game: %w", err)
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating player games: %w", err)
	}
	return games, nil
}

func scanPlayerGame(row pgx.Row) (*models.PlayerGame, error) {
	g := &models.PlayerGame{}
	err := row.Scan(
		&g.Key.Name, &g.Key.Team, &g.Period, &g.GameDate, &g.Season, &g.Opponent, &g.Home,
		&g.Points, &g.Rebounds, &g.Assists, &g.Minutes, &g.FieldGoalPct, &g.ThreePointPct, &g.FreeThrowPct,
		&g.FieldGoalAttempts, &g.FreeThrowAttempts, &g.Turnovers, &g.ObservedAt,
	)
	if err != nil {
		return nil, err
	}
	return g, nil
}
