package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/pra-edge/internal/config"
	"github.com/yourusername/pra-edge/internal/features"
	"github.com/yourusername/pra-edge/internal/models"
	"github.com/yourusername/pra-edge/internal/repository"
)

// fixedScorer returns the same probability for every vector.
type fixedScorer struct {
	p   float64
	err error
}

func (s fixedScorer) Score(context.Context, features.FeatureVector) (float64, error) {
	return s.p, s.err
}

func (s fixedScorer) Version() string { return "fixed-v1" }

var predictNow = time.Date(2025, 2, 1, 15, 0, 0, 0, time.UTC)

func seedPredictor(t *testing.T, scorer fixedScorer, minConfidence float64) (*Predictor, *repository.Repositories) {
	t.Helper()
	ctx := context.Background()
	repos := repository.NewMemoryRepositories()

	pra := []float64{38, 41, 35, 44, 30, 39, 42, 36, 40, 37}
	for i, v := range pra {
		d := predictNow.Truncate(24*time.Hour).AddDate(0, 0, -2*(len(pra)-i))
		_, err := repos.PlayerGame.Upsert(ctx, &models.PlayerGame{
			Key: tatum, Period: d.Format("2006-01-02"), GameDate: d, Season: "2024-25",
			Points: v - 13, Rebounds: 8, Assists: 5, Minutes: 36,
			FieldGoalAttempts: 20, FreeThrowAttempts: 7, Turnovers: 3,
			ObservedAt: d.Add(6 * time.Hour),
		})
		require.NoError(t, err)
	}
	// only two games for brunson
	for i := 1; i <= 2; i++ {
		d := predictNow.Truncate(24*time.Hour).AddDate(0, 0, -i)
		_, err := repos.PlayerGame.Upsert(ctx, &models.PlayerGame{
			Key: brunson, Period: d.Format("2006-01-02"), GameDate: d, Season: "2024-25",
			Points: 28, Rebounds: 4, Assists: 7, Minutes: 35, ObservedAt: d.Add(6 * time.Hour),
		})
		require.NoError(t, err)
	}

	tipoff := predictNow.Add(4 * time.Hour)
	stale := lineRow(tatum, "evt-live", 36.5, predictNow.Add(-3*time.Hour), tipoff)
	fresh := lineRow(tatum, "evt-live", 35.5, predictNow.Add(-1*time.Hour), tipoff)
	thin := lineRow(brunson, "evt-live", 38.5, predictNow.Add(-1*time.Hour), tipoff)
	later := lineRow(tatum, "evt-next", 35.5, predictNow.Add(-1*time.Hour), predictNow.Add(72*time.Hour))
	for _, l := range []models.PropLine{stale, fresh, thin, later} {
		l := l
		_, err := repos.PropLine.Append(ctx, &l)
		require.NoError(t, err)
	}

	p := NewPredictor(repos, features.NewBuilder(config.FeatureConfig{}), scorer,
		config.PredictConfig{MinConfidence: minConfidence, HorizonHours: 24}, quietLogger())
	p.now = func() time.Time { return predictNow }
	return p, repos
}

func TestPredictStoresConfidentPicks(t *testing.T) {
	p, repos := seedPredictor(t, fixedScorer{p: 0.93}, 0.90)
	ctx := context.Background()

	summary, err := p.Predict(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Candidates, "one latest line per selection inside the horizon")
	assert.Equal(t, 1, summary.Skipped["insufficient_data"])
	require.Len(t, summary.Predictions, 1)

	pred := summary.Predictions[0]
	assert.Equal(t, tatum, pred.Key)
	assert.Equal(t, 35.5, pred.Line, "latest fetch wins")
	assert.Equal(t, "draftkings", pred.Bookmaker)
	assert.Equal(t, models.LabelOver, pred.Label)
	assert.Equal(t, "fixed-v1", pred.ModelVersion)
	require.NotNil(t, pred.AlternateLine)
	assert.Less(t, *pred.AlternateLine, pred.Line)

	open, err := repos.Prediction.ListOpen(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 1)

	again, err := p.Predict(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Duplicates)
	assert.Empty(t, again.Predictions)
}

func TestPredictThreshold(t *testing.T) {
	p, repos := seedPredictor(t, fixedScorer{p: 0.40}, 0.90)

	summary, err := p.Predict(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Scored)
	assert.Equal(t, 1, summary.BelowThreshold)
	assert.Empty(t, summary.Predictions)

	open, err := repos.Prediction.ListOpen(context.Background())
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestPredictScoringFailure(t *testing.T) {
	p, _ := seedPredictor(t, fixedScorer{err: errors.New("model offline")}, 0.90)

	summary, err := p.Predict(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped["scoring_failed"])
	assert.Equal(t, 0, summary.Scored)
}

func TestPredictFeatureFailure(t *testing.T) {
	p, repos := seedPredictor(t, fixedScorer{p: 0.93}, 0.90)
	ctx := context.Background()

	brown := models.NewIdentityKey("Jaylen Brown", "BOS")
	for i := 1; i <= 10; i++ {
		d := predictNow.Truncate(24*time.Hour).AddDate(0, 0, -i)
		g := &models.PlayerGame{
			Key: brown, Period: d.Format("2006-01-02"), GameDate: d, Season: "2024-25",
			Points: 24, Rebounds: 6, Assists: 4, Minutes: 34, ObservedAt: d.Add(6 * time.Hour),
		}
		if i == 3 {
			g.Points = math.Inf(1)
		}
		_, err := repos.PlayerGame.Upsert(ctx, g)
		require.NoError(t, err)
	}
	l := lineRow(brown, "evt-live", 33.5, predictNow.Add(-time.Hour), predictNow.Add(4*time.Hour))
	_, err := repos.PropLine.Append(ctx, &l)
	require.NoError(t, err)

	summary, err := p.Predict(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped["feature_failed"])
	assert.Zero(t, summary.Skipped["scoring_failed"])
	assert.Equal(t, 1, summary.Scored)
}

func TestPredictExcludesGamesOnTheEventDate(t *testing.T) {
	ctx := context.Background()
	repos := repository.NewMemoryRepositories()
	now := time.Date(2025, 2, 2, 2, 0, 0, 0, time.UTC) // 21:00 ET on Feb 1

	for i := 0; i < 10; i++ {
		d := time.Date(2025, 1, 22+i, 0, 0, 0, 0, time.UTC)
		_, err := repos.PlayerGame.Upsert(ctx, &models.PlayerGame{
			Key: tatum, Period: d.Format("2006-01-02"), GameDate: d, Season: "2024-25",
			Points: 25, Rebounds: 8, Assists: 5, Minutes: 36, ObservedAt: d.Add(6 * time.Hour),
		})
		require.NoError(t, err)
	}
	// a box score already dated on the event's local date
	feb1 := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err := repos.PlayerGame.Upsert(ctx, &models.PlayerGame{
		Key: tatum, Period: "2025-02-01", GameDate: feb1, Season: "2024-25",
		Points: 67, Rebounds: 8, Assists: 5, Minutes: 36, ObservedAt: now.Add(-time.Minute),
	})
	require.NoError(t, err)

	l := lineRow(tatum, "evt-late", 35.5, now.Add(-time.Hour), now.Add(time.Hour))
	_, err = repos.PropLine.Append(ctx, &l)
	require.NoError(t, err)

	scorer := &vectorScorer{}
	p := NewPredictor(repos, features.NewBuilder(config.FeatureConfig{}), scorer,
		config.PredictConfig{MinConfidence: 0.5, HorizonHours: 24}, quietLogger())
	p.now = func() time.Time { return now }

	_, err = p.Predict(ctx)
	require.NoError(t, err)
	require.Len(t, scorer.seen, 1)
	assert.Equal(t, 10.0, scorer.seen[0].GamesPlayed)
	assert.InDelta(t, 38.0, scorer.seen[0].SeasonAvg, 1e-9)
}

// vectorScorer records every vector it scores.
type vectorScorer struct {
	seen []features.FeatureVector
}

func (s *vectorScorer) Score(_ context.Context, fv features.FeatureVector) (float64, error) {
	s.seen = append(s.seen, fv)
	return 0.95, nil
}

func (s *vectorScorer) Version() string { return "vector-v1" }

func TestResolveSettlesOnce(t *testing.T) {
	p, repos := seedPredictor(t, fixedScorer{p: 0.06}, 0.90)
	ctx := context.Background()

	summary, err := p.Predict(ctx)
	require.NoError(t, err)
	require.Len(t, summary.Predictions, 1)
	assert.Equal(t, models.LabelUnder, summary.Predictions[0].Label)

	res, err := p.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Resolved)
	assert.Equal(t, 1, res.Pending)

	_, err = repos.Outcome.Insert(ctx, &models.Outcome{Key: tatum, EventID: "evt-live", Actual: 35.5, SettledAt: predictNow.Add(7 * time.Hour)})
	require.NoError(t, err)

	res, err = p.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Resolved)
	assert.Equal(t, 1, res.Correct, "a push settles UNDER")

	res, err = p.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Resolved, "resolved predictions are not reopened")

	records, err := p.Results(ctx, predictNow.Add(-24*time.Hour), predictNow.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "2025-02-01", records[0].Date)
	assert.Equal(t, 1, records[0].Wins)
	assert.Equal(t, 0, records[0].Losses)
	assert.Equal(t, 1.0, records[0].WinPct)
}

func TestLatestLines(t *testing.T) {
	asOf := base.Add(12 * time.Hour)
	a := lineRow(tatum, "e1", 40.5, base.Add(1*time.Hour), base.Add(20*time.Hour))
	b := lineRow(tatum, "e1", 41.5, base.Add(2*time.Hour), base.Add(20*time.Hour))
	future := lineRow(tatum, "e1", 42.5, base.Add(13*time.Hour), base.Add(20*time.Hour))

	got := latestLines([]*models.PropLine{&a, &future, &b}, asOf)
	require.Len(t, got, 1)
	assert.Equal(t, 41.5, got[0].Line)
}
