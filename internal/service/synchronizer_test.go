package service

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/pra-edge/internal/checkpoint"
	"github.com/yourusername/pra-edge/internal/datasource"
	"github.com/yourusername/pra-edge/internal/models"
	"github.com/yourusername/pra-edge/internal/repository"
)

var (
	base    = time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	tatum   = models.NewIdentityKey("Jayson Tatum", "BOS")
	brunson = models.NewIdentityKey("Jalen Brunson", "NYK")
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func gameRow(key models.IdentityKey, day int, points float64, observedAt time.Time) models.PlayerGame {
	d := base.AddDate(0, 0, day)
	return models.PlayerGame{
		Key:               key,
		Period:            d.Format("2006-01-02"),
		GameDate:          d,
		Season:            "2024-25",
		Points:            points,
		Rebounds:          8,
		Assists:           5,
		Minutes:           36,
		FieldGoalPct:      0.47,
		FieldGoalAttempts: 20,
		FreeThrowAttempts: 7,
		Turnovers:         3,
		ObservedAt:        observedAt,
	}
}

func lineRow(key models.IdentityKey, eventID string, line float64, fetchedAt, scheduledAt time.Time) models.PropLine {
	return models.PropLine{
		Key:         key,
		EventID:     eventID,
		Line:        line,
		Market:      models.MarketPRA,
		Bookmaker:   "draftkings",
		OverPrice:   1.91,
		UnderPrice:  1.91,
		HomeTeam:    "BOS",
		AwayTeam:    "NYK",
		FetchedAt:   fetchedAt,
		ScheduledAt: scheduledAt,
	}
}

func newSynchronizer(t *testing.T, granularity string) (*Synchronizer, *repository.Repositories, checkpoint.Store) {
	t.Helper()
	repos := repository.NewMemoryRepositories()
	store := checkpoint.NewMemoryStore()
	return NewSynchronizer(repos, store, granularity, quietLogger()), repos, store
}

func TestSyncIsIdempotent(t *testing.T) {
	s, repos, store := newSynchronizer(t, GranularitySource)
	ctx := context.Background()

	t1 := base.Add(2 * time.Hour)
	t2 := base.Add(5 * time.Hour)
	batch := models.Batch{
		Games: []models.PlayerGame{
			gameRow(tatum, -2, 27, t1),
			gameRow(tatum, -1, 31, t1),
		},
		Lines:    []models.PropLine{lineRow(tatum, "evt1", 44.5, t2, base.Add(24*time.Hour))},
		Outcomes: []models.Outcome{{Key: tatum, EventID: "evt0", Actual: 41, SettledAt: t1}},
	}

	first, err := s.Sync(ctx, "feed", batch)
	require.NoError(t, err)
	assert.Equal(t, 4, first.Inserted)
	assert.Equal(t, 0, first.Skipped)
	assert.True(t, first.Advanced)
	assert.True(t, first.Watermark.Equal(t2))

	second, err := s.Sync(ctx, "feed", batch)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 4, second.Skipped)
	assert.False(t, second.Advanced)
	assert.True(t, second.Watermark.Equal(t2))

	games, err := repos.PlayerGame.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, games, 2)
	lines, err := repos.PropLine.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, lines, 1)

	wm, ok, err := store.Watermark(ctx, "feed")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, wm.Equal(t2))
}

func TestSyncKeepsNewestObservation(t *testing.T) {
	s, repos, store := newSynchronizer(t, GranularitySource)
	ctx := context.Background()

	t1 := base.Add(1 * time.Hour)
	t2 := base.Add(3 * time.Hour)

	res, err := s.Sync(ctx, "feed", models.Batch{Games: []models.PlayerGame{gameRow(tatum, -1, 25, t1)}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)

	res, err = s.Sync(ctx, "feed", models.Batch{Games: []models.PlayerGame{gameRow(tatum, -1, 29, t2)}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.True(t, res.Advanced)

	// a late redelivery of the older version changes nothing
	res, err = s.Sync(ctx, "feed", models.Batch{Games: []models.PlayerGame{gameRow(tatum, -1, 25, t1)}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.False(t, res.Advanced)

	stored, err := repos.PlayerGame.Get(ctx, tatum, base.AddDate(0, 0, -1).Format("2006-01-02"))
	require.NoError(t, err)
	assert.Equal(t, 29.0, stored.Points)
	assert.True(t, stored.ObservedAt.Equal(t2))

	wm, _, err := store.Watermark(ctx, "feed")
	require.NoError(t, err)
	assert.True(t, wm.Equal(t2))
}

func TestSyncNormalizesIdentity(t *testing.T) {
	s, repos, _ := newSynchronizer(t, GranularitySource)
	ctx := context.Background()

	raw := gameRow(models.IdentityKey{Name: "Jayson Tatum Jr.", Team: " bos"}, -1, 30, base)
	_, err := s.Sync(ctx, "feed", models.Batch{Games: []models.PlayerGame{raw}})
	require.NoError(t, err)

	games, err := repos.PlayerGame.ListByKey(ctx, tatum)
	require.NoError(t, err)
	assert.Len(t, games, 1)
}

func TestSyncSkipsInvalidRecords(t *testing.T) {
	s, repos, _ := newSynchronizer(t, GranularitySource)
	ctx := context.Background()

	badGame := gameRow(tatum, -3, -4, base)
	badLine := lineRow(tatum, "evt1", 44.5, base, base.Add(24*time.Hour))
	badLine.OverPrice = 0.5
	noKey := gameRow(models.IdentityKey{Name: "", Team: "BOS"}, -2, 20, base)

	res, err := s.Sync(ctx, "feed", models.Batch{
		Games:    []models.PlayerGame{badGame, noKey, gameRow(tatum, -1, 30, base.Add(time.Hour))},
		Lines:    []models.PropLine{badLine},
		Outcomes: []models.Outcome{{Key: tatum, EventID: "evt0", Actual: math.NaN(), SettledAt: base}},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Invalid)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 2, res.ByKind[KindGame].Invalid)
	assert.Equal(t, 1, res.ByKind[KindLine].Invalid)
	assert.Equal(t, 1, res.ByKind[KindOutcome].Invalid)
	assert.True(t, res.Watermark.Equal(base.Add(time.Hour)), "invalid records never move the watermark")

	outcomes, err := repos.Outcome.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

func TestRecordValidatorReportsField(t *testing.T) {
	v := NewRecordValidator()

	g := gameRow(tatum, -1, 30, base)
	g.FieldGoalPct = 1.4
	err := v.ValidateGame("feed", &g)

	var dq *models.DataQualityError
	require.ErrorAs(t, err, &dq)
	assert.ErrorIs(t, err, models.ErrDataQuality)
	assert.Equal(t, "feed", dq.Source)
	assert.Equal(t, KindGame, dq.Kind)
	assert.Contains(t, dq.Field, "FieldGoalPct")

	g = gameRow(tatum, -1, 30, base)
	g.Turnovers = math.Inf(1)
	require.ErrorAs(t, v.ValidateGame("feed", &g), &dq)
	assert.Equal(t, "tov", dq.Field)

	l := lineRow(tatum, "evt", 40.5, time.Now().Add(72*time.Hour), base)
	require.ErrorAs(t, v.ValidateLine("feed", &l), &dq)
	assert.Equal(t, "fetched_at", dq.Field)

	valid := lineRow(tatum, "evt", 40.5, base, base.Add(time.Hour))
	valid.OverPrice, valid.UnderPrice = 0, 0
	assert.NoError(t, v.ValidateLine("feed", &valid), "prices are optional")
}

func TestSyncEmptyBatchKeepsWatermark(t *testing.T) {
	s, _, store := newSynchronizer(t, GranularitySource)
	ctx := context.Background()
	require.NoError(t, store.Advance(ctx, "feed", base))

	res, err := s.Sync(ctx, "feed", models.Batch{})
	require.NoError(t, err)
	assert.False(t, res.Advanced)
	assert.True(t, res.Watermark.Equal(base))
}

func TestSyncEntityGranularity(t *testing.T) {
	s, _, store := newSynchronizer(t, GranularityEntity)
	ctx := context.Background()

	tTatum := base.Add(2 * time.Hour)
	tBrunson := base.Add(4 * time.Hour)
	_, err := s.Sync(ctx, "feed", models.Batch{Games: []models.PlayerGame{
		gameRow(tatum, -1, 30, tTatum),
		gameRow(brunson, -1, 28, tBrunson),
	}})
	require.NoError(t, err)

	wm, ok, err := store.EntityWatermark(ctx, "feed", tatum)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, wm.Equal(tTatum))

	wm, ok, err = store.EntityWatermark(ctx, "feed", brunson)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, wm.Equal(tBrunson))

	// an older row for one player leaves both per-player marks alone
	_, err = s.Sync(ctx, "feed", models.Batch{Games: []models.PlayerGame{gameRow(tatum, -2, 22, base)}})
	require.NoError(t, err)
	wm, _, err = store.EntityWatermark(ctx, "feed", tatum)
	require.NoError(t, err)
	assert.True(t, wm.Equal(tTatum))
}

// blockingTx holds the first transaction open until released.
type blockingTx struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (b *blockingTx) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	b.once.Do(func() {
		close(b.entered)
		<-b.release
	})
	return fn(ctx)
}

func TestSyncRejectsConcurrentSameSource(t *testing.T) {
	s, repos, _ := newSynchronizer(t, GranularitySource)
	tx := &blockingTx{entered: make(chan struct{}), release: make(chan struct{})}
	repos.Tx = tx
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := s.Sync(ctx, "feed", models.Batch{Games: []models.PlayerGame{gameRow(tatum, -1, 30, base)}})
		done <- err
	}()
	<-tx.entered

	_, err := s.Sync(ctx, "feed", models.Batch{})
	var concurrent *models.ConcurrentSyncError
	require.ErrorAs(t, err, &concurrent)
	assert.Equal(t, "feed", concurrent.Source)
	assert.ErrorIs(t, err, models.ErrConcurrentSync)

	// other sources are unaffected
	_, err = s.Sync(ctx, "other", models.Batch{Games: []models.PlayerGame{gameRow(brunson, -1, 25, base)}})
	assert.NoError(t, err)

	close(tx.release)
	require.NoError(t, <-done)

	_, err = s.Sync(ctx, "feed", models.Batch{})
	assert.NoError(t, err, "lock is released after the first sync returns")
}

type failingTx struct{}

func (failingTx) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		return err
	}
	return errors.New("commit failed")
}

func TestSyncFailedMergeLeavesWatermark(t *testing.T) {
	s, repos, store := newSynchronizer(t, GranularitySource)
	repos.Tx = failingTx{}
	ctx := context.Background()

	_, err := s.Sync(ctx, "feed", models.Batch{Games: []models.PlayerGame{gameRow(tatum, -1, 30, base)}})
	require.Error(t, err)

	_, ok, err := store.Watermark(ctx, "feed")
	require.NoError(t, err)
	assert.False(t, ok)
}

// MockSource mocks a datasource.Source
type MockSource struct {
	mock.Mock
	name string
}

func (m *MockSource) Name() string { return m.name }

func (m *MockSource) Fetch(ctx context.Context, since time.Time) (models.Batch, error) {
	args := m.Called(ctx, since)
	return args.Get(0).(models.Batch), args.Error(1)
}

func TestPullUsesWatermark(t *testing.T) {
	s, _, store := newSynchronizer(t, GranularitySource)
	ctx := context.Background()

	t1 := base.Add(time.Hour)
	src := &MockSource{name: "boxscores"}
	src.On("Fetch", ctx, time.Time{}).Return(models.Batch{Games: []models.PlayerGame{gameRow(tatum, -1, 30, t1)}}, nil).Once()
	src.On("Fetch", ctx, t1).Return(models.Batch{}, nil).Once()

	res, err := s.Pull(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)

	res, err = s.Pull(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted)

	src.AssertExpectations(t)
	wm, _, err := store.Watermark(ctx, "boxscores")
	require.NoError(t, err)
	assert.True(t, wm.Equal(t1))
}

func TestPullAllContinuesPastFailures(t *testing.T) {
	s, _, _ := newSynchronizer(t, GranularitySource)
	ctx := context.Background()

	broken := &MockSource{name: "odds"}
	broken.On("Fetch", ctx, mock.Anything).Return(models.Batch{}, errors.New("upstream down"))
	good := &MockSource{name: "boxscores"}
	good.On("Fetch", ctx, mock.Anything).Return(models.Batch{Games: []models.PlayerGame{gameRow(tatum, -1, 30, base)}}, nil)

	results, err := s.PullAll(ctx, []datasource.Source{broken, good})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")
	require.Len(t, results, 1)
	assert.Equal(t, "boxscores", results[0].Source)
}
