package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/yourusername/pra-edge/internal/database"
	"github.com/yourusername/pra-edge/internal/models"
)

const predictionColumns = `id, player_name, team, event_id, bookmaker, line, as_of, probability, label,
	confidence, model_version, alternate_line, status, actual_value, actual_label, correct, created_at, resolved_at`

// PostgresPredictionRepository implements PredictionRepository for PostgreSQL
type PostgresPredictionRepository struct {
	db *database.DB
}

// NewPostgresPredictionRepository creates a new prediction repository
func NewPostgresPredictionRepository(db *database.DB) PredictionRepository {
	return &PostgresPredictionRepository{db: db}
}

// Create inserts a new prediction
func (r *PostgresPredictionRepository) Create(ctx context.Context, p *models.Prediction) error {
	query := `
		INSERT INTO predictions (` + predictionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := r.db.Conn(ctx).Exec(ctx, query, predictionArgs(p)...)
	if err != nil {
		return fmt.Errorf("failed to create prediction: %w", err)
	}
	return nil
}

// CreateBatch inserts multiple predictions with COPY
func (r *PostgresPredictionRepository) CreateBatch(ctx context.Context, predictions []*models.Prediction) error {
	if len(predictions) == 0 {
		return nil
	}

	rows := make([][]any, len(predictions))
	for i, p := range predictions {
		rows[i] = predictionArgs(p)
	}

	columns := []string{
		"id", "player_name", "team", "event_id", "bookmaker", "line", "as_of", "probability", "label",
		"confidence", "model_version", "alternate_line", "status", "actual_value", "actual_label",
		"correct", "created_at", "resolved_at",
	}

	copied, err := r.db.CopyFrom(ctx, pgx.Identifier{"predictions"}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to batch insert predictions: %w", err)
	}
	if int(copied) != len(predictions) {
		return fmt.Errorf("expected to insert %d predictions, inserted %d", len(predictions), copied)
	}
	return nil
}

// Resolve writes the outcome fields if the stored row is still open
func (r *PostgresPredictionRepository) Resolve(ctx context.Context, p *models.Prediction) error {
	if !p.IsResolved() {
		return fmt.Errorf("%w: %s", models.ErrUnresolved, p.ID)
	}

	query := `
		UPDATE predictions
		SET status = $2, actual_value = $3, actual_label = $4, correct = $5, resolved_at = $6
		WHERE id = $1 AND status = 'open'
	`

	var actualLabel *string
	if p.ActualLabel != nil {
		s := string(*p.ActualLabel)
		actualLabel = &s
	}

	tag, err := r.db.Conn(ctx).Exec(ctx, query, p.ID, string(p.Status), p.ActualValue, actualLabel, p.Correct, p.ResolvedAt)
	if err != nil {
		return fmt.Errorf("failed to resolve prediction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, p.ID); errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		return fmt.Errorf("%w: %s", models.ErrAlreadyResolved, p.ID)
	}
	return nil
}

// GetByID retrieves a prediction by ID
func (r *PostgresPredictionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Prediction, error) {
	query := `SELECT ` + predictionColumns + ` FROM predictions WHERE id = $1`

	p, err := scanPrediction(r.db.Conn(ctx).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return p, nil
}

// ListOpen retrieves predictions awaiting an outcome
func (r *PostgresPredictionRepository) ListOpen(ctx context.Context) ([]*models.Prediction, error) {
	query := `SELECT ` + predictionColumns + ` FROM predictions WHERE status = 'open' ORDER BY as_of ASC`
	return r.list(ctx, query)
}

// ListResolved retrieves resolved predictions with as_of in [start, end)
func (r *PostgresPredictionRepository) ListResolved(ctx context.Context, start, end time.Time) ([]*models.Prediction, error) {
	query := `SELECT ` + predictionColumns + ` FROM predictions
		WHERE status = 'resolved' AND as_of >= $1 AND as_of < $2
		ORDER BY as_of ASC`
	return r.list(ctx, query, start, end)
}

func (r *PostgresPredictionRepository) list(ctx context.Context, query string, args ...any) ([]*models.Prediction, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var predictions []*models.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		predictions = append(predictions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating predictions: %w", err)
	}
	return predictions, nil
}

func predictionArgs(p *models.Prediction) []any {
	var actualLabel *string
	if p.ActualLabel != nil {
		s := string(*p.ActualLabel)
		actualLabel = &s
	}
	return []any{
		p.ID, p.Key.Name, p.Key.Team, p.EventID, p.Bookmaker, p.Line, p.AsOf, p.Probability, string(p.Label),
		p.Confidence, p.ModelVersion, p.AlternateLine, string(p.Status), p.ActualValue, actualLabel,
		p.Correct, p.CreatedAt, p.ResolvedAt,
	}
}

func scanPrediction(row pgx.Row) (*models.Prediction, error) {
	p := &models.Prediction{}
	var label, status string
	var actualLabel *string

	err := row.Scan(
		&p.ID, &p.Key.Name, &p.Key.Team, &p.EventID, &p.Bookmaker, &p.Line, &p.AsOf, &p.Probability, &label,
		&p.Confidence, &p.ModelVersion, &p.AlternateLine, &status, &p.ActualValue, &actualLabel,
		&p.Correct, &p.CreatedAt, &p.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Label = models.Label(label)
	p.Status = models.PredictionStatus(status)
	if actualLabel != nil {
		l := models.Label(*actualLabel)
		p.ActualLabel = &l
	}
	return p, nil
}
