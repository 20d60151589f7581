package lines

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/pra-edge/internal/features"
)

func TestMinimum(t *testing.T) {
	tests := []struct {
		name        string
		season      float64
		recent      float64
		consistency float64
		main        float64
		wantLine    float64
		wantConf    float64
		wantTrend   string
	}{
		{"steady consistent", 38.2, 38.0, 0.90, 35.5, 32.5, 0.89, "steady"},
		{"very consistent above main", 38.2, 38.0, 0.95, 33.5, 31.0, 0.91, "steady"},
		{"hot streak", 30, 33, 0.5, 28.5, 24.5, 0.91, "trending up"},
		{"cold streak", 40, 30, 0.85, 40.5, 33.5, 0.91, "trending down"},
		{"floored at three quarters of average", 40, 40, 0.5, 30, 30, 0.93, "steady"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fv := features.FeatureVector{SeasonAvg: tt.season, RecentAvg: tt.recent, Consistency: tt.consistency}
			rec, err := Minimum(fv, tt.main)
			require.NoError(t, err)

			assert.Equal(t, tt.wantLine, rec.Line)
			assert.Equal(t, tt.wantConf, rec.Confidence)
			assert.InDelta(t, tt.season-tt.wantLine, rec.Cushion, 1e-9)
			assert.InDelta(t, tt.main-tt.wantLine, rec.BelowMain, 1e-9)
			assert.Contains(t, rec.Reasoning, tt.wantTrend)
		})
	}
}

func TestMinimumLineIsHalfPoint(t *testing.T) {
	for season := 10.0; season < 60; season += 0.7 {
		rec, err := Minimum(features.FeatureVector{SeasonAvg: season, RecentAvg: season, Consistency: 0.85}, season+3)
		require.NoError(t, err)
		assert.Equal(t, 0.0, rec.Line*2-float64(int(rec.Line*2)), "line %v", rec.Line)
		assert.Less(t, rec.Line, season+3)
	}
}

func TestMinimumNoSeason(t *testing.T) {
	_, err := Minimum(features.FeatureVector{}, 30.5)
	assert.ErrorIs(t, err, ErrNoSeasonAverage)
}
