package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Jaren Jackson Jr.", "jaren jackson"},
		{"  LeBron   James ", "lebron james"},
		{"Gary Trent Jr", "gary trent"},
		{"Kelly Oubre III", "kelly oubre"},
		{"D'Angelo Russell", "dangelo russell"},
		{"P.J. Washington", "pj washington"},
		{"Jr", "jr"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestParseIdentityKey(t *testing.T) {
	key, err := ParseIdentityKey("Jaren Jackson Jr.|mem")
	require.NoError(t, err)
	assert.Equal(t, IdentityKey{Name: "jaren jackson", Team: "MEM"}, key)
	assert.Equal(t, "jaren jackson|MEM", key.String())

	_, err = ParseIdentityKey("no-team")
	assert.ErrorIs(t, err, ErrInvalidIdentityKey)
}

func TestPredictionLabelAndConfidence(t *testing.T) {
	assert.Equal(t, LabelOver, LabelFor(0.5))
	assert.Equal(t, LabelUnder, LabelFor(0.49))
	assert.InDelta(t, 0.93, ConfidenceFor(0.93), 1e-12)
	assert.InDelta(t, 0.93, ConfidenceFor(0.07), 1e-12)
}

func TestNewPredictionRejectsInvalidProbability(t *testing.T) {
	key := NewIdentityKey("A", "BOS")
	for _, p := range []float64{-0.1, 1.01} {
		_, err := NewPrediction(key, "evt", 35.5, time.Now(), p, "v1")
		assert.ErrorIs(t, err, ErrInvalidProbability)
	}
}

func TestPredictionResolveExactlyOnce(t *testing.T) {
	key := NewIdentityKey("A", "BOS")
	asOf := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	pred, err := NewPrediction(key, "evt-1", 35.5, asOf, 0.93, "logistic-v1")
	require.NoError(t, err)
	assert.Equal(t, PredictionOpen, pred.Status)
	assert.False(t, pred.IsCorrect())

	outcome := Outcome{Key: key, EventID: "evt-1", Actual: 44, SettledAt: asOf.Add(4 * time.Hour)}
	require.NoError(t, pred.Resolve(outcome, outcome.SettledAt))

	assert.True(t, pred.IsResolved())
	assert.True(t, pred.IsCorrect())
	assert.Equal(t, LabelOver, *pred.ActualLabel)

	err = pred.Resolve(Outcome{Key: key, EventID: "evt-1", Actual: 10}, time.Now())
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.Equal(t, 44.0, *pred.ActualValue)
}

func TestPredictionResolveRejectsMismatchedOutcome(t *testing.T) {
	pred, err := NewPrediction(NewIdentityKey("A", "BOS"), "evt-1", 35.5, time.Now(), 0.8, "v1")
	require.NoError(t, err)

	err = pred.Resolve(Outcome{Key: NewIdentityKey("B", "BOS"), EventID: "evt-1", Actual: 40}, time.Now())
	assert.ErrorIs(t, err, ErrOutcomeMismatch)
	assert.False(t, pred.IsResolved())
}

func TestActualLabelPushSettlesUnder(t *testing.T) {
	assert.Equal(t, LabelUnder, ActualLabelFor(35, 35))
	assert.Equal(t, LabelOver, ActualLabelFor(36, 35.5))
	assert.Equal(t, LabelUnder, ActualLabelFor(35, 35.5))
}

func TestTypedErrorsUnwrapToSentinels(t *testing.T) {
	var err error = &StaleWatermarkError{Source: "odds", Current: time.Now(), Attempted: time.Now().Add(-time.Hour)}
	assert.True(t, errors.Is(err, ErrStaleWatermark))

	err = &ConcurrentSyncError{Source: "odds"}
	assert.True(t, errors.Is(err, ErrConcurrentSync))

	err = &InsufficientDataError{Key: NewIdentityKey("A", "BOS"), Have: 2, Need: 5}
	var insufficient *InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 2, insufficient.Have)
	assert.ErrorIs(t, err, ErrInsufficientData)

	err = &DataQualityError{Source: "stats", Kind: "player_game", Record: "x", Field: "Minutes", Reason: "failed lte"}
	assert.ErrorIs(t, err, ErrDataQuality)
	assert.Contains(t, err.Error(), "Minutes")
}

func TestPropLineIsHome(t *testing.T) {
	line := PropLine{Key: NewIdentityKey("A", "bos"), HomeTeam: "BOS", AwayTeam: "NYK"}
	home, known := line.IsHome()
	assert.True(t, home)
	assert.True(t, known)

	line.Key = NewIdentityKey("B", "NYK")
	home, known = line.IsHome()
	assert.False(t, home)
	assert.True(t, known)

	line.Key = NewIdentityKey("C", "LAL")
	_, known = line.IsHome()
	assert.False(t, known)
}

func TestGameDayUsesLocalDate(t *testing.T) {
	jan11 := time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		tip  time.Time
		want time.Time
	}{
		{"evening tip after utc midnight", time.Date(2025, 1, 12, 0, 30, 0, 0, time.UTC), jan11},
		{"late west coast tip", time.Date(2025, 1, 12, 3, 0, 0, 0, time.UTC), jan11},
		{"afternoon tip", time.Date(2025, 1, 11, 20, 0, 0, 0, time.UTC), jan11},
		{"summer offset", time.Date(2025, 6, 13, 0, 30, 0, 0, time.UTC), time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GameDay(tt.tip))
			assert.Equal(t, tt.want, PropLine{ScheduledAt: tt.tip}.GameDay())
		})
	}
}
