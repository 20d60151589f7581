package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/pra-edge/internal/config"
	"github.com/yourusername/pra-edge/internal/database"
	"github.com/yourusername/pra-edge/internal/models"
)

var base = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

func eachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("file", func(t *testing.T) {
		s, err := NewFileStore(t.TempDir())
		require.NoError(t, err)
		fn(t, s)
	})
	t.Run("postgres", func(t *testing.T) {
		fn(t, NewPostgresStore(database.SetupTestDB(t)))
	})
}

func TestWatermarkAbsent(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		_, ok, err := s.Watermark(context.Background(), "odds_api")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestAdvanceIsStrictlyMonotonic(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Advance(ctx, "odds_api", base))

		tests := []struct {
			name    string
			wm      time.Time
			wantErr bool
		}{
			{"equal", base, true},
			{"earlier", base.Add(-time.Minute), true},
			{"zero", time.Time{}, true},
			{"later", base.Add(time.Second), false},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				before, _, err := s.Watermark(ctx, "odds_api")
				require.NoError(t, err)

				err = s.Advance(ctx, "odds_api", tt.wm)
				if !tt.wantErr {
					require.NoError(t, err)
					return
				}

				var stale *models.StaleWatermarkError
				require.ErrorAs(t, err, &stale)
				assert.ErrorIs(t, err, models.ErrStaleWatermark)
				assert.Equal(t, "odds_api", stale.Source)

				after, _, err := s.Watermark(ctx, "odds_api")
				require.NoError(t, err)
				assert.True(t, before.Equal(after), "rejected advance must not change state")
			})
		}
	})
}

func TestAdvanceSequenceProperty(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		offsets := []int{5, 3, 9, 9, 12, 1, 20, 15, 21}
		var high time.Time
		for _, off := range offsets {
			wm := base.Add(time.Duration(off) * time.Minute)
			err := s.Advance(ctx, "box_scores", wm)
			if wm.After(high) {
				require.NoError(t, err, "offset %d", off)
				high = wm
			} else {
				assert.ErrorIs(t, err, models.ErrStaleWatermark, "offset %d", off)
			}
		}
		got, ok, err := s.Watermark(ctx, "box_scores")
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, high.Equal(got))
	})
}

func TestEntityWatermarksAreIndependent(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a := models.NewIdentityKey("Luka Doncic", "DAL")
		b := models.NewIdentityKey("Nikola Jokic", "DEN")

		require.NoError(t, s.AdvanceEntity(ctx, "box_scores", a, base))
		require.NoError(t, s.AdvanceEntity(ctx, "box_scores", b, base.Add(-time.Hour)))

		err := s.AdvanceEntity(ctx, "box_scores", a, base)
		var stale *models.StaleWatermarkError
		require.ErrorAs(t, err, &stale)
		assert.Equal(t, a.String(), stale.Entity)

		wm, ok, err := s.EntityWatermark(ctx, "box_scores", b)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, base.Add(-time.Hour).Equal(wm))

		_, ok, err = s.Watermark(ctx, "box_scores")
		require.NoError(t, err)
		assert.False(t, ok, "entity advances do not create a source watermark")
	})
}

func TestSourcesListing(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Advance(ctx, "odds_api", base))
		require.NoError(t, s.Advance(ctx, "box_scores", base.Add(time.Hour)))

		got, err := s.Sources(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "box_scores", got[0].Source)
		assert.Equal(t, "odds_api", got[1].Source)
	})
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	wm := base.Add(123456789 * time.Nanosecond)

	s1, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Advance(ctx, "odds_api", wm))

	s2, err := NewFileStore(dir)
	require.NoError(t, err)
	got, ok, err := s2.Watermark(ctx, "odds_api")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, wm.Equal(got))
	assert.ErrorIs(t, s2.Advance(ctx, "odds_api", wm), models.ErrStaleWatermark)

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "odds_api.yaml"), []byte("watermark: [not a time"), 0o644))

	s, err := NewFileStore(dir)
	require.NoError(t, err)
	_, _, err = s.Watermark(context.Background(), "odds_api")
	assert.Error(t, err)
}

func TestFileStoreRejectsPathLikeSource(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, s.Advance(context.Background(), "../escape", base))
}

func TestAdvanceHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewMemoryStore()
	assert.ErrorIs(t, s.Advance(ctx, "odds_api", base), context.Canceled)
	_, ok, _ := s.Watermark(context.Background(), "odds_api")
	assert.False(t, ok)
}

func TestNewSelectsBackend(t *testing.T) {
	s, err := New(config.CheckpointConfig{Backend: "file", Dir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = New(config.CheckpointConfig{Backend: "postgres"}, nil)
	assert.Error(t, err)

	_, err = New(config.CheckpointConfig{Backend: "etcd"}, nil)
	assert.Error(t, err)
}
