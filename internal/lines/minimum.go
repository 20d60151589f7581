// Package lines derives an alternate (minimum) line below the main
// sportsbook line from a player's feature vector.
package lines

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/yourusername/pra-edge/internal/features"
)

// ErrNoSeasonAverage is returned when the player has no season baseline.
var ErrNoSeasonAverage = errors.New("no season average")

var (
	half        = decimal.RequireFromString("0.5")
	two         = decimal.NewFromInt(2)
	one         = decimal.NewFromInt(1)
	belowMain   = decimal.RequireFromString("2.5")
	floorFactor = decimal.RequireFromString("0.75")
	hotFactor   = decimal.RequireFromString("1.02")
	coldFactor  = decimal.RequireFromString("0.98")
)

// Recommendation is a suggested alternate line.
type Recommendation struct {
	Line       float64 `json:"line"`
	Confidence float64 `json:"confidence"`
	Cushion    float64 `json:"cushion"`
	BelowMain  float64 `json:"below_main"`
	Reasoning  string  `json:"reasoning"`
}

// Minimum computes a line under main with a consistency-scaled safety margin.
func Minimum(fv features.FeatureVector, mainLine float64) (Recommendation, error) {
	if fv.SeasonAvg <= 0 {
		return Recommendation{}, ErrNoSeasonAverage
	}

	season := decimal.NewFromFloat(fv.SeasonAvg)
	recent := decimal.NewFromFloat(fv.RecentAvg)
	main := decimal.NewFromFloat(mainLine)
	trend := fv.RecentAvg / fv.SeasonAvg

	margin := decimal.RequireFromString("0.20")
	switch {
	case fv.Consistency > 0.90:
		margin = decimal.RequireFromString("0.10")
	case fv.Consistency > 0.80:
		margin = decimal.RequireFromString("0.15")
	}

	line := season.Mul(one.Sub(margin))
	switch {
	case trend > 1.05:
		line = line.Mul(hotFactor)
	case trend < 0.95:
		line = line.Mul(coldFactor)
	}
	line = roundHalf(line)

	if line.GreaterThanOrEqual(main) {
		line = main.Sub(belowMain)
	}
	if floor := season.Mul(floorFactor); line.LessThan(floor) {
		line = roundHalf(floor)
	}

	cushion := season.Sub(line)
	pct := cushion.Div(season).InexactFloat64()
	var confidence float64
	switch {
	case pct > 0.25:
		confidence = 0.95
	case pct > 0.20:
		confidence = 0.93
	case pct > 0.15:
		confidence = 0.91
	default:
		confidence = 0.89
	}

	rec := Recommendation{
		Line:       line.InexactFloat64(),
		Confidence: confidence,
		Cushion:    cushion.InexactFloat64(),
		BelowMain:  main.Sub(line).InexactFloat64(),
	}
	rec.Reasoning = reasoning(season, recent, rec)
	return rec, nil
}

// roundHalf rounds to the nearest 0.5, ties to even.
func roundHalf(d decimal.Decimal) decimal.Decimal {
	return d.Mul(two).RoundBank(0).Mul(half)
}

func reasoning(season, recent decimal.Decimal, rec Recommendation) string {
	parts := []string{fmt.Sprintf("season avg %s", season.StringFixed(1))}

	switch {
	case recent.GreaterThan(season.Mul(decimal.RequireFromString("1.05"))):
		parts = append(parts, fmt.Sprintf("trending up (L5 %s)", recent.StringFixed(1)))
	case recent.LessThan(season.Mul(decimal.RequireFromString("0.95"))):
		parts = append(parts, fmt.Sprintf("trending down (L5 %s)", recent.StringFixed(1)))
	default:
		parts = append(parts, fmt.Sprintf("steady (L5 %s)", recent.StringFixed(1)))
	}
	parts = append(parts,
		fmt.Sprintf("%.1f pt cushion", rec.Cushion),
		fmt.Sprintf("%.1f below main line", rec.BelowMain),
	)
	return strings.Join(parts, " | ")
}
