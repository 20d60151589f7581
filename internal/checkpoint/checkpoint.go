// Package checkpoint stores per-source sync watermarks. A watermark only ever
// moves forward; an advance to a value not strictly greater than the stored
// one fails with *models.StaleWatermarkError and leaves state untouched.
package checkpoint

import (
	"context"
	"fmt"
	"time"

	"github.com/yourusername/pra-edge/internal/config"
	"github.com/yourusername/pra-edge/internal/database"
	"github.com/yourusername/pra-edge/internal/models"
)

// Watermark is one stored checkpoint. Entity is empty for the source-level row.
type Watermark struct {
	Source    string    `json:"source" yaml:"source"`
	Entity    string    `json:"entity,omitempty" yaml:"entity,omitempty"`
	Watermark time.Time `json:"watermark" yaml:"watermark"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Store is the checkpoint contract shared by every backend.
type Store interface {
	// Watermark returns the source watermark; ok is false if none was stored.
	Watermark(ctx context.Context, source string) (wm time.Time, ok bool, err error)
	Advance(ctx context.Context, source string, wm time.Time) error
	EntityWatermark(ctx context.Context, source string, key models.IdentityKey) (wm time.Time, ok bool, err error)
	AdvanceEntity(ctx context.Context, source string, key models.IdentityKey, wm time.Time) error
	// Sources lists the source-level watermarks ordered by source name.
	Sources(ctx context.Context) ([]Watermark, error)
}

// New builds the store selected by configuration. db may be nil for the file backend.
func New(cfg config.CheckpointConfig, db *database.DB) (Store, error) {
	switch cfg.Backend {
	case "file":
		return NewFileStore(cfg.Dir)
	case "postgres":
		if db == nil {
			return nil, fmt.Errorf("postgres checkpoint backend requires a database connection")
		}
		return NewPostgresStore(db), nil
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Backend)
	}
}

// checkAdvance enforces strict monotonicity against the stored value.
func checkAdvance(source, entity string, current time.Time, exists bool, attempted time.Time) error {
	if exists && !attempted.After(current) {
		return &models.StaleWatermarkError{
			Source:    source,
			Entity:    entity,
			Current:   current,
			Attempted: attempted,
		}
	}
	return nil
}
