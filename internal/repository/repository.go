package repository

import (
	"context"
	"fmt"

	"github.com/yourusername/pra-edge/internal/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	PlayerGame PlayerGameRepository
	PropLine   PropLineRepository
	Outcome    OutcomeRepository
	Prediction PredictionRepository
	Tx         Transactor
}

// NewRepositories creates and returns the Postgres implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		PlayerGame: NewPostgresPlayerGameRepository(db),
		PropLine:   NewPostgresPropLineRepository(db),
		Outcome:    NewPostgresOutcomeRepository(db),
		Prediction: NewPostgresPredictionRepository(db),
		Tx:         db,
	}, nil
}

// NewMemoryRepositories returns process-local implementations backed by maps.
func NewMemoryRepositories() *Repositories {
	return &Repositories{
		PlayerGame: NewMemoryPlayerGameRepository(),
		PropLine:   NewMemoryPropLineRepository(),
		Outcome:    NewMemoryOutcomeRepository(),
		Prediction: NewMemoryPredictionRepository(),
		Tx:         noopTransactor{},
	}
}

type noopTransactor struct{}

func (noopTransactor) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
