package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/pra-edge/internal/models"
)

// WriteResult reports what a conditional write did.
type WriteResult int

const (
	WriteSkipped WriteResult = iota
	WriteInserted
	WriteUpdated
)

func (w WriteResult) String() string {
	switch w {
	case WriteInserted:
		return "inserted"
	case WriteUpdated:
		return "updated"
	default:
		return "skipped"
	}
}

// PlayerGameRepository defines the interface for box-score rows
type PlayerGameRepository interface {
	// Upsert inserts a new row or replaces an existing one only when the
	// incoming ObservedAt is strictly newer.
	Upsert(ctx context.Context, game *models.PlayerGame) (WriteResult, error)
	Get(ctx context.Context, key models.IdentityKey, period string) (*models.PlayerGame, error)
	ListByKey(ctx context.Context, key models.IdentityKey) ([]*models.PlayerGame, error)
	ListAll(ctx context.Context) ([]*models.PlayerGame, error)
}

// PropLineRepository defines the interface for the append-only line log
type PropLineRepository interface {
	// Append stores a line observation; an identical observation is skipped.
	Append(ctx context.Context, line *models.PropLine) (WriteResult, error)
	ListScheduledBetween(ctx context.Context, start, end time.Time) ([]*models.PropLine, error)
	ListAll(ctx context.Context) ([]*models.PropLine, error)
}

// OutcomeRepository defines the interface for settled outcomes
type OutcomeRepository interface {
	// Insert stores an outcome once; later outcomes for the same key and event are skipped.
	Insert(ctx context.Context, outcome *models.Outcome) (WriteResult, error)
	Get(ctx context.Context, key models.IdentityKey, eventID string) (*models.Outcome, error)
	ListAll(ctx context.Context) ([]*models.Outcome, error)
}

// PredictionRepository defines the interface for prediction data access
type PredictionRepository interface {
	Create(ctx context.Context, prediction *models.Prediction) error
	CreateBatch(ctx context.Context, predictions []*models.Prediction) error
	// Resolve persists a resolved prediction. It returns models.ErrAlreadyResolved
	// if the stored row is no longer open.
	Resolve(ctx context.Context, prediction *models.Prediction) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Prediction, error)
	ListOpen(ctx context.Context) ([]*models.Prediction, error)
	ListResolved(ctx context.Context, start, end time.Time) ([]*models.Prediction, error)
}

// Transactor runs fn atomically. Repository calls made with the context
// passed to fn participate in the same unit of work.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(context.Context) error) error
}
