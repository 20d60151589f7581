package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/yourusername/pra-edge/internal/features"
)

const (
	recentWeight = 0.6
	seasonWeight = 0.4
	minSD        = 1.0

	// keep confidence off exactly 1 so every prediction lands in a bucket
	minProbability = 0.001
	maxProbability = 0.999
)

// MarginScorer treats PRA as normal around a blended expectation and returns
// P(PRA > line). Spread shrinks as consistency rises.
type MarginScorer struct{}

// NewMarginScorer creates a margin scorer
func NewMarginScorer() *MarginScorer { return &MarginScorer{} }

func (MarginScorer) Version() string { return "margin-v1" }

func (MarginScorer) Score(ctx context.Context, fv features.FeatureVector) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if fv.Line <= 0 {
		return 0, fmt.Errorf("%w: line %v", ErrScoringFailed, fv.Line)
	}

	expected := recentWeight*fv.RecentAvg + seasonWeight*fv.SeasonAvg
	cv := (1 - fv.Consistency) / 2
	sd := math.Max(expected*cv, minSD)

	z := (expected - fv.Line) / sd
	p := 0.5 * (1 + math.Erf(z/math.Sqrt2))
	p = math.Min(math.Max(p, minProbability), maxProbability)
	if err := CheckProbability(p); err != nil {
		return 0, err
	}
	return p, nil
}
