package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/pra-edge/internal/models"
)

// MemoryPlayerGameRepository keeps box-score rows in a map keyed by record key.
type MemoryPlayerGameRepository struct {
	mu    sync.RWMutex
	games map[string]models.PlayerGame
}

// NewMemoryPlayerGameRepository creates an empty in-memory repository
func NewMemoryPlayerGameRepository() PlayerGameRepository {
	return &MemoryPlayerGameRepository{games: make(map[string]models.PlayerGame)}
}

func (r *MemoryPlayerGameRepository) Upsert(_ context.Context, g *models.PlayerGame) (WriteResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := g.RecordKey()
	existing, ok := r.games[k]
	if !ok {
		r.games[k] = *g
		return WriteInserted, nil
	}
	if !g.NewerThan(existing) {
		return WriteSkipped, nil
	}
	r.games[k] = *g
	return WriteUpdated, nil
}

func (r *MemoryPlayerGameRepository) Get(_ context.Context, key models.IdentityKey, period string) (*models.PlayerGame, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.games[models.PlayerGame{Key: key, Period: period}.RecordKey()]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &g, nil
}

func (r *MemoryPlayerGameRepository) ListByKey(_ context.Context, key models.IdentityKey) ([]*models.PlayerGame, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.PlayerGame
	for _, g := range r.games {
		if g.Key == key {
			g := g
			out = append(out, &g)
		}
	}
	sortGames(out)
	return out, nil
}

func (r *MemoryPlayerGameRepository) ListAll(_ context.Context) ([]*models.PlayerGame, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.PlayerGame, 0, len(r.games))
	for _, g := range r.games {
		g := g
		out = append(out, &g)
	}
	sortGames(out)
	return out, nil
}

func sortGames(games []*models.PlayerGame) {
	sort.Slice(games, func(i, j int) bool {
		if !games[i].GameDate.Equal(games[j].GameDate) {
			return games[i].GameDate.Before(games[j].GameDate)
		}
		return games[i].RecordKey() < games[j].RecordKey()
	})
}

// MemoryPropLineRepository is an append-only slice with a dedup index.
type MemoryPropLineRepository struct {
	mu    sync.RWMutex
	seen  map[string]struct{}
	lines []models.PropLine
}

// NewMemoryPropLineRepository creates an empty in-memory line log
func NewMemoryPropLineRepository() PropLineRepository {
	return &MemoryPropLineRepository{seen: make(map[string]struct{})}
}

func (r *MemoryPropLineRepository) Append(_ context.Context, l *models.PropLine) (WriteResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := l.RecordKey()
	if _, ok := r.seen[k]; ok {
		return WriteSkipped, nil
	}
	r.seen[k] = struct{}{}
	r.lines = append(r.lines, *l)
	return WriteInserted, nil
}

func (r *MemoryPropLineRepository) ListScheduledBetween(_ context.Context, start, end time.Time) ([]*models.PropLine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.PropLine
	for _, l := range r.lines {
		if !l.ScheduledAt.Before(start) && l.ScheduledAt.Before(end) {
			l := l
			out = append(out, &l)
		}
	}
	sortLines(out)
	return out, nil
}

func (r *MemoryPropLineRepository) ListAll(_ context.Context) ([]*models.PropLine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.PropLine, 0, len(r.lines))
	for _, l := range r.lines {
		l := l
		out = append(out, &l)
	}
	sortLines(out)
	return out, nil
}

func sortLines(lines []*models.PropLine) {
	sort.SliceStable(lines, func(i, j int) bool {
		if !lines[i].ScheduledAt.Equal(lines[j].ScheduledAt) {
			return lines[i].ScheduledAt.Before(lines[j].ScheduledAt)
		}
		return lines[i].FetchedAt.Before(lines[j].FetchedAt)
	})
}

// MemoryOutcomeRepository stores the first outcome per key and event.
type MemoryOutcomeRepository struct {
	mu       sync.RWMutex
	outcomes map[string]models.Outcome
}

// NewMemoryOutcomeRepository creates an empty in-memory outcome store
func NewMemoryOutcomeRepository() OutcomeRepository {
	return &MemoryOutcomeRepository{outcomes: make(map[string]models.Outcome)}
}

func (r *MemoryOutcomeRepository) Insert(_ context.Context, o *models.Outcome) (WriteResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := o.RecordKey()
	if _, ok := r.outcomes[k]; ok {
		return WriteSkipped, nil
	}
	r.outcomes[k] = *o
	return WriteInserted, nil
}

func (r *MemoryOutcomeRepository) Get(_ context.Context, key models.IdentityKey, eventID string) (*models.Outcome, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.outcomes[models.Outcome{Key: key, EventID: eventID}.RecordKey()]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &o, nil
}

func (r *MemoryOutcomeRepository) ListAll(_ context.Context) ([]*models.Outcome, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Outcome, 0, len(r.outcomes))
	for _, o := range r.outcomes {
		o := o
		out = append(out, &o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SettledAt.Equal(out[j].SettledAt) {
			return out[i].SettledAt.Before(out[j].SettledAt)
		}
		return out[i].RecordKey() < out[j].RecordKey()
	})
	return out, nil
}

// MemoryPredictionRepository stores predictions by ID.
type MemoryPredictionRepository struct {
	mu          sync.RWMutex
	predictions map[uuid.UUID]models.Prediction
}

// NewMemoryPredictionRepository creates an empty in-memory prediction store
func NewMemoryPredictionRepository() PredictionRepository {
	return &MemoryPredictionRepository{predictions: make(map[uuid.UUID]models.Prediction)}
}

func (r *MemoryPredictionRepository) Create(_ context.Context, p *models.Prediction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.predictions[p.ID]; ok {
		return fmt.Errorf("%w: prediction %s", models.ErrDuplicateKey, p.ID)
	}
	r.predictions[p.ID] = *p
	return nil
}

func (r *MemoryPredictionRepository) CreateBatch(_ context.Context, predictions []*models.Prediction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range predictions {
		if _, ok := r.predictions[p.ID]; ok {
			return fmt.Errorf("%w: prediction %s", models.ErrDuplicateKey, p.ID)
		}
	}
	for _, p := range predictions {
		r.predictions[p.ID] = *p
	}
	return nil
}

func (r *MemoryPredictionRepository) Resolve(_ context.Context, p *models.Prediction) error {
	if !p.IsResolved() {
		return fmt.Errorf("%w: %s", models.ErrUnresolved, p.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.predictions[p.ID]
	if !ok {
		return models.ErrNotFound
	}
	if stored.Status != models.PredictionOpen {
		return fmt.Errorf("%w: %s", models.ErrAlreadyResolved, p.ID)
	}
	r.predictions[p.ID] = *p
	return nil
}

func (r *MemoryPredictionRepository) GetByID(_ context.Context, id uuid.UUID) (*models.Prediction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.predictions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &p, nil
}

func (r *MemoryPredictionRepository) ListOpen(_ context.Context) ([]*models.Prediction, error) {
	return r.filter(func(p *models.Prediction) bool { return p.Status == models.PredictionOpen }), nil
}

func (r *MemoryPredictionRepository) ListResolved(_ context.Context, start, end time.Time) ([]*models.Prediction, error) {
	return r.filter(func(p *models.Prediction) bool {
		return p.Status == models.PredictionResolved && !p.AsOf.Before(start) && p.AsOf.Before(end)
	}), nil
}

func (r *MemoryPredictionRepository) filter(keep func(*models.Prediction) bool) []*models.Prediction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Prediction
	for _, p := range r.predictions {
		p := p
		if keep(&p) {
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AsOf.Equal(out[j].AsOf) {
			return out[i].AsOf.Before(out[j].AsOf)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}
