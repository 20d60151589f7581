package checkpoint

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yourusername/pra-edge/internal/models"
)

type scope struct {
	source string
	entity string
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu    sync.Mutex
	marks map[scope]Watermark
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{marks: make(map[scope]Watermark)}
}

func (s *MemoryStore) Watermark(_ context.Context, source string) (time.Time, bool, error) {
	return s.get(scope{source: source})
}

func (s *MemoryStore) Advance(ctx context.Context, source string, wm time.Time) error {
	return s.advance(ctx, scope{source: source}, wm)
}

func (s *MemoryStore) EntityWatermark(_ context.Context, source string, key models.IdentityKey) (time.Time, bool, error) {
	return s.get(scope{source: source, entity: key.String()})
}

func (s *MemoryStore) AdvanceEntity(ctx context.Context, source string, key models.IdentityKey, wm time.Time) error {
	return s.advance(ctx, scope{source: source, entity: key.String()}, wm)
}

func (s *MemoryStore) Sources(_ context.Context) ([]Watermark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Watermark
	for k, w := range s.marks {
		if k.entity == "" {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out, nil
}

func (s *MemoryStore) get(k scope) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.marks[k]
	return w.Watermark, ok, nil
}

func (s *MemoryStore) advance(ctx context.Context, k scope, wm time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.marks[k]
	if err := checkAdvance(k.source, k.entity, current.Watermark, ok, wm); err != nil {
		return err
	}
	s.marks[k] = Watermark{Source: k.source, Entity: k.entity, Watermark: wm, UpdatedAt: time.Now().UTC()}
	return nil
}
