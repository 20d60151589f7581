package calibration

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/pra-edge/internal/config"
	"github.com/yourusername/pra-edge/internal/models"
)

var asOf = time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)

func resolved(t *testing.T, i int, p, line, actual float64) *models.Prediction {
	t.Helper()
	key := models.NewIdentityKey(fmt.Sprintf("player %d", i), "LAL")
	eventID := fmt.Sprintf("evt%d", i)

	pred, err := models.NewPrediction(key, eventID, line, asOf, p, "test-v1")
	require.NoError(t, err)
	require.NoError(t, pred.Resolve(models.Outcome{Key: key, EventID: eventID, Actual: actual, SettledAt: asOf}, asOf))
	return pred
}

func newCalibrator(t *testing.T, cfg Config) *Calibrator {
	t.Helper()
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestBucketLayout(t *testing.T) {
	c := newCalibrator(t, DefaultConfig())
	r := c.Report()

	require.Len(t, r.Buckets, 25)
	assert.Equal(t, 0.50, r.Buckets[0].Lower)
	assert.Equal(t, 0.52, r.Buckets[0].Upper)
	assert.Equal(t, 0.92, r.Buckets[21].Lower)
	assert.Equal(t, 0.94, r.Buckets[21].Upper)
	assert.Equal(t, 1.0, r.Buckets[24].Upper)

	for i := 1; i < len(r.Buckets); i++ {
		assert.Equal(t, r.Buckets[i-1].Upper, r.Buckets[i].Lower, "buckets must tile")
	}
}

func TestBucketIndexBoundaries(t *testing.T) {
	c := newCalibrator(t, DefaultConfig())

	tests := []struct {
		confidence float64
		want       int
	}{
		{0.50, 0},
		{0.5199999, 0},
		{0.52, 1},
		{0.92, 21},
		{0.93, 21},
		{0.94, 22},
		{0.98, 24},
		{1.0, 24},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.confidence), func(t *testing.T) {
			i, err := c.BucketIndex(tt.confidence)
			require.NoError(t, err)
			assert.Equal(t, tt.want, i)
		})
	}

	_, err := c.BucketIndex(0.49)
	assert.ErrorIs(t, err, ErrConfidenceOutOfRange)
	_, err = c.BucketIndex(1.01)
	assert.ErrorIs(t, err, models.ErrInvalidProbability)
}

func TestScenarioPredictionLandsInBucket(t *testing.T) {
	c := newCalibrator(t, DefaultConfig())
	pred := resolved(t, 1, 0.93, 35.5, 44)

	assert.Equal(t, models.LabelOver, pred.Label)
	assert.Equal(t, models.LabelOver, *pred.ActualLabel)
	assert.True(t, pred.IsCorrect())

	require.NoError(t, c.Record(pred))
	r := c.Report()

	b, ok := r.Bucket(0.93)
	require.True(t, ok)
	assert.Equal(t, 0.92, b.Lower)
	assert.Equal(t, 0.94, b.Upper)
	assert.Equal(t, 1, b.Count)
	assert.Equal(t, 1, b.Wins)
	require.NotNil(t, b.WinRate)
	assert.Equal(t, 1.0, *b.WinRate)
	assert.False(t, b.Definitive, "one sample is never definitive")
	assert.False(t, b.Calibrated)
}

func TestEmptyBucketIsUndefined(t *testing.T) {
	c := newCalibrator(t, DefaultConfig())
	require.NoError(t, c.Record(resolved(t, 1, 0.93, 35.5, 30)))

	r := c.Report()
	empty := r.Buckets[0]
	assert.Nil(t, empty.WinRate)
	assert.Nil(t, empty.Gap)

	lost := r.Buckets[21]
	require.NotNil(t, lost.WinRate)
	assert.Equal(t, 0.0, *lost.WinRate, "zero is distinct from undefined")

	data, err := json.Marshal(r.Buckets[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"win_rate":null`)
}

func TestRecordRejectsUnresolved(t *testing.T) {
	c := newCalibrator(t, DefaultConfig())
	open, err := models.NewPrediction(models.NewIdentityKey("a", "LAL"), "evt", 30.5, asOf, 0.9, "v")
	require.NoError(t, err)

	assert.ErrorIs(t, c.Record(open), models.ErrUnresolved)
	assert.ErrorIs(t, c.Record(nil), models.ErrUnresolved)
	assert.Equal(t, 0, c.Count())
}

func TestDefinitiveAndCalibrated(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamples = 10
	c := newCalibrator(t, cfg)

	// 10 picks at 0.91 (bucket [0.90,0.92), midpoint 0.91) winning 9
	for i := 0; i < 10; i++ {
		actual := 40.0
		if i == 0 {
			actual = 20
		}
		require.NoError(t, c.Record(resolved(t, i, 0.91, 35.5, actual)))
	}
	// 10 picks at 0.97 winning 5
	for i := 10; i < 20; i++ {
		actual := 40.0
		if i%2 == 0 {
			actual = 20
		}
		require.NoError(t, c.Record(resolved(t, i, 0.97, 35.5, actual)))
	}

	r := c.Report()
	good := r.Buckets[20]
	assert.True(t, good.Definitive)
	assert.InDelta(t, 0.01, *good.Gap, 1e-9)
	assert.True(t, good.Calibrated)

	bad := r.Buckets[23]
	assert.True(t, bad.Definitive)
	assert.InDelta(t, 0.47, *bad.Gap, 1e-9)
	assert.False(t, bad.Calibrated)

	assert.False(t, r.WellCalibrated)
	assert.Equal(t, 20, r.Total)
	assert.Equal(t, 14, r.Wins)
	assert.InDelta(t, 0.7, *r.Accuracy(), 1e-12)
	require.NotNil(t, r.ECE)
	assert.InDelta(t, (10*0.01+10*0.47)/20, *r.ECE, 1e-9)
}

func TestUnderPredictionConfidence(t *testing.T) {
	c := newCalibrator(t, DefaultConfig())
	// p=0.06 is a 0.94 confidence UNDER; actual below the line wins
	pred := resolved(t, 1, 0.06, 35.5, 30)
	assert.Equal(t, models.LabelUnder, pred.Label)
	require.NoError(t, c.Record(pred))

	b, ok := c.Report().Bucket(0.94)
	require.True(t, ok)
	assert.Equal(t, 1, b.Wins)
	require.NotNil(t, c.Report().Brier)
	assert.InDelta(t, 0.0036, *c.Report().Brier, 1e-12)
}

func dyadicPredictions(t *testing.T) []*models.Prediction {
	probs := []float64{0.5, 0.53125, 0.625, 0.75, 0.9375, 0.96875, 0.25, 0.0625}
	var preds []*models.Prediction
	for i := 0; i < 64; i++ {
		actual := 40.0
		if i%3 == 0 {
			actual = 30
		}
		preds = append(preds, resolved(t, i, probs[i%len(probs)], 35.5, actual))
	}
	return preds
}

func TestReplayOrderIndependent(t *testing.T) {
	preds := dyadicPredictions(t)

	forward := newCalibrator(t, DefaultConfig())
	require.NoError(t, forward.Replay(preds))

	shuffled := make([]*models.Prediction, len(preds))
	copy(shuffled, preds)
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 5; trial++ {
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		c := newCalibrator(t, DefaultConfig())
		require.NoError(t, c.Replay(shuffled))

		want, got := forward.Report(), c.Report()
		assert.Equal(t, want.Buckets, got.Buckets)
		assert.Equal(t, want.Total, got.Total)
		assert.Equal(t, want.Wins, got.Wins)
		assert.InDelta(t, *want.Brier, *got.Brier, 1e-12)
		assert.InDelta(t, *want.LogLoss, *got.LogLoss, 1e-12)
	}
}

func TestMergeMatchesSingleReplay(t *testing.T) {
	preds := dyadicPredictions(t)

	whole := newCalibrator(t, DefaultConfig())
	require.NoError(t, whole.Replay(preds))

	a := newCalibrator(t, DefaultConfig())
	b := newCalibrator(t, DefaultConfig())
	require.NoError(t, a.Replay(preds[:20]))
	require.NoError(t, b.Replay(preds[20:]))
	require.NoError(t, a.Merge(b))

	assert.Equal(t, whole.Report().Buckets, a.Report().Buckets)

	other := DefaultConfig()
	other.Width = 0.05
	assert.ErrorIs(t, a.Merge(newCalibrator(t, other)), ErrConfigMismatch)
}

func TestConcurrentRecord(t *testing.T) {
	preds := dyadicPredictions(t)
	c := newCalibrator(t, DefaultConfig())

	var wg sync.WaitGroup
	for _, p := range preds {
		wg.Add(1)
		go func(p *models.Prediction) {
			defer wg.Done()
			assert.NoError(t, c.Record(p))
		}(p)
	}
	wg.Wait()

	assert.Equal(t, len(preds), c.Count())
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"start at one", Config{Start: 1, Width: 0.02, MinSamples: 1}},
		{"zero width", Config{Start: 0.5, Width: 0, MinSamples: 1}},
		{"too wide", Config{Start: 0.5, Width: 0.6, MinSamples: 1}},
		{"no samples", Config{Start: 0.5, Width: 0.02}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestConfigFrom(t *testing.T) {
	c := ConfigFrom(config.CalibrationConfig{BucketWidth: 0.05, MinSamples: 30})
	assert.Equal(t, 0.5, c.Start)
	assert.Equal(t, 0.05, c.Width)
	assert.Equal(t, DefaultTolerance, c.Tolerance)
	assert.Equal(t, 30, c.MinSamples)

	cal := newCalibrator(t, c)
	assert.Len(t, cal.Report().Buckets, 10)
}
