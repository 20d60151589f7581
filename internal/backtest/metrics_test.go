package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/pra-edge/internal/calibration"
	"github.com/yourusername/pra-edge/internal/models"
)

func resolvedResult(t *testing.T, d time.Time, p, actual float64) *TupleResult {
	t.Helper()
	pred, err := models.NewPrediction(tatum, "evt", 35.5, d, p, "test-v1")
	require.NoError(t, err)
	require.NoError(t, pred.Resolve(models.Outcome{Key: tatum, EventID: "evt", Actual: actual}, d))
	return &TupleResult{Tuple: Tuple{Day: d}, State: StateResolved, Prediction: pred}
}

func skippedResult(d time.Time, reason SkipReason) *TupleResult {
	return &TupleResult{Tuple: Tuple{Day: d}, State: StateSkipped, Reason: reason}
}

func TestSeasonFor(t *testing.T) {
	tests := []struct {
		date time.Time
		want string
	}{
		{time.Date(2024, 10, 22, 0, 0, 0, 0, time.UTC), "2024-25"},
		{time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), "2024-25"},
		{time.Date(2025, 9, 30, 23, 0, 0, 0, time.UTC), "2024-25"},
		{time.Date(1999, 11, 1, 0, 0, 0, 0, time.UTC), "1999-00"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, SeasonFor(tt.date))
		})
	}
}

func TestAccumulator(t *testing.T) {
	cfg := BacktestConfig{HighConfidence: 0.9, PicksMin: 1, PicksMax: 2}
	acc := newAccumulator(cfg)

	d1 := day(10)
	day1 := acc.addDay(d1, []*TupleResult{
		resolvedResult(t, d1, 0.95, 40), // HC win
		resolvedResult(t, d1, 0.92, 30), // HC loss
		resolvedResult(t, d1, 0.40, 30), // UNDER win
		skippedResult(d1, SkipInsufficientData),
	})
	assert.Equal(t, DayResult{Date: "2025-01-10", Tuples: 4, Resolved: 3, Wins: 2, Skipped: 1, HighConfidence: 2, HighConfidenceWins: 1}, day1)

	d2 := day(11)
	acc.addDay(d2, []*TupleResult{skippedResult(d2, SkipScoringFailed)})

	m, days := acc.finish(nil, nil)
	assert.Len(t, days, 2)
	assert.Equal(t, 5, m.Tuples)
	assert.Equal(t, "2-1", m.Record())
	assert.InDelta(t, 2.0/3, *m.Accuracy, 1e-9)
	assert.InDelta(t, 0.5, *m.HighConfidenceAccuracy, 1e-9)
	assert.Equal(t, 2, m.Skipped)
	assert.Equal(t, 1, m.SkippedByReason[string(SkipScoringFailed)])
	assert.Equal(t, 0, m.SkippedByReason[string(SkipResolveFailed)], "every reason is reported")

	assert.Equal(t, PicksPerDay{Days: 2, Min: 0, Max: 2, Mean: 1, BandMin: 1, BandMax: 2, InBandFraction: 0.5}, m.PicksPerDay)

	require.Len(t, m.BySeason, 1)
	assert.Equal(t, 3, m.BySeason[0].Resolved)
	assert.Equal(t, 2, m.BySeason[0].HighConfidencePicks)
}

func TestAccumulatorNoResolved(t *testing.T) {
	acc := newAccumulator(BacktestConfig{HighConfidence: 0.9})
	acc.addDay(day(10), []*TupleResult{skippedResult(day(10), SkipInvalidProbability)})

	m, _ := acc.finish(nil, nil)
	assert.Nil(t, m.Accuracy)
	assert.Nil(t, m.HighConfidenceAccuracy)
	assert.Equal(t, "0-0", m.Record())
}

func ptr(f float64) *float64 { return &f }

func TestGenerateVerdict(t *testing.T) {
	inBand := PicksPerDay{Days: 10, BandMin: 3, BandMax: 8, InBandFraction: 0.8}
	tests := []struct {
		name string
		m    Metrics
		cal  calibration.Report
		want string
	}{
		{
			name: "no high confidence picks",
			m:    Metrics{HighConfidenceThreshold: 0.9, PicksPerDay: inBand},
			cal:  calibration.Report{MinSamples: 20, Tolerance: 0.05, WellCalibrated: true},
			want: RecommendationNeedsReview,
		},
		{
			name: "too few picks",
			m:    Metrics{HighConfidenceThreshold: 0.9, HighConfidencePicks: 5, HighConfidenceAccuracy: ptr(1), PicksPerDay: inBand},
			cal:  calibration.Report{MinSamples: 20, Tolerance: 0.05, WellCalibrated: true},
			want: RecommendationNeedsReview,
		},
		{
			name: "accept",
			m:    Metrics{HighConfidenceThreshold: 0.9, HighConfidencePicks: 40, HighConfidenceAccuracy: ptr(0.92), PicksPerDay: inBand},
			cal:  calibration.Report{MinSamples: 20, Tolerance: 0.05, WellCalibrated: true},
			want: RecommendationAccept,
		},
		{
			name: "accurate but miscalibrated",
			m:    Metrics{HighConfidenceThreshold: 0.9, HighConfidencePicks: 40, HighConfidenceAccuracy: ptr(0.92), PicksPerDay: inBand},
			cal:  calibration.Report{MinSamples: 20, Tolerance: 0.05},
			want: RecommendationNeedsReview,
		},
		{
			name: "within tolerance below threshold",
			m:    Metrics{HighConfidenceThreshold: 0.9, HighConfidencePicks: 40, HighConfidenceAccuracy: ptr(0.87), PicksPerDay: inBand},
			cal:  calibration.Report{MinSamples: 20, Tolerance: 0.05, WellCalibrated: true},
			want: RecommendationNeedsReview,
		},
		{
			name: "reject",
			m:    Metrics{HighConfidenceThreshold: 0.9, HighConfidencePicks: 40, HighConfidenceAccuracy: ptr(0.80), PicksPerDay: inBand},
			cal:  calibration.Report{MinSamples: 20, Tolerance: 0.05, WellCalibrated: true},
			want: RecommendationReject,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := GenerateVerdict(tt.m, tt.cal)
			assert.Equal(t, tt.want, v.Recommendation)
			assert.NotEmpty(t, v.Reasons)
		})
	}
}

func TestGenerateVerdictFlagsPickVolume(t *testing.T) {
	m := Metrics{
		HighConfidenceThreshold: 0.9,
		HighConfidencePicks:     40,
		HighConfidenceAccuracy:  ptr(0.95),
		PicksPerDay:             PicksPerDay{Days: 10, BandMin: 3, BandMax: 8, InBandFraction: 0.2},
	}
	v := GenerateVerdict(m, calibration.Report{MinSamples: 20, Tolerance: 0.05, WellCalibrated: true})
	assert.Equal(t, RecommendationAccept, v.Recommendation)
	assert.Contains(t, v.Reasons[len(v.Reasons)-1], "20% of days within 3-8 picks")
}

func TestGenerateRecommendation(t *testing.T) {
	accept := Verdict{Recommendation: RecommendationAccept}
	review := Verdict{Recommendation: RecommendationNeedsReview}
	reject := Verdict{Recommendation: RecommendationReject}

	assert.Equal(t, RecommendationAccept, GenerateRecommendation(accept, 0.6))
	assert.Equal(t, RecommendationNeedsReview, GenerateRecommendation(accept, 0.5))
	assert.Equal(t, RecommendationReject, GenerateRecommendation(accept, 0.39))
	assert.Equal(t, RecommendationNeedsReview, GenerateRecommendation(review, 1))
	assert.Equal(t, RecommendationReject, GenerateRecommendation(reject, 1))
}
