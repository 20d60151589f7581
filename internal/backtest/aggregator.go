package backtest

import (
	"fmt"

	"github.com/yourusername/pra-edge/internal/calibration"
)

// Recommendations produced by the verdict.
const (
	RecommendationAccept      = "ACCEPT"
	RecommendationReject      = "REJECT"
	RecommendationNeedsReview = "NEEDS_REVIEW"
)

// Verdict is the accept/reject call on a model version with its reasons.
type Verdict struct {
	Recommendation string   `json:"recommendation"`
	Reasons        []string `json:"reasons"`
}

// GenerateVerdict determines if the model's high-confidence picks are usable.
// High-confidence accuracy must reach the threshold the picks claim and the
// calibration table must agree; a shortfall larger than the calibration
// tolerance rejects outright.
func GenerateVerdict(m Metrics, cal calibration.Report) Verdict {
	v := Verdict{}

	if m.HighConfidenceAccuracy == nil || m.HighConfidencePicks < cal.MinSamples {
		v.Recommendation = RecommendationNeedsReview
		v.Reasons = append(v.Reasons, fmt.Sprintf("only %d high-confidence picks, need %d", m.HighConfidencePicks, cal.MinSamples))
		return v
	}

	hc := *m.HighConfidenceAccuracy
	target := m.HighConfidenceThreshold
	switch {
	case hc >= target && cal.WellCalibrated:
		v.Recommendation = RecommendationAccept
		v.Reasons = append(v.Reasons, fmt.Sprintf("high-confidence accuracy %.3f meets %.2f", hc, target))
		v.Reasons = append(v.Reasons, "every definitive bucket is calibrated")
	case hc < target-cal.Tolerance:
		v.Recommendation = RecommendationReject
		v.Reasons = append(v.Reasons, fmt.Sprintf("high-confidence accuracy %.3f is more than %.2f below %.2f", hc, cal.Tolerance, target))
	default:
		v.Recommendation = RecommendationNeedsReview
		if hc < target {
			v.Reasons = append(v.Reasons, fmt.Sprintf("high-confidence accuracy %.3f below %.2f", hc, target))
		}
		if !cal.WellCalibrated {
			v.Reasons = append(v.Reasons, "calibration gaps exceed tolerance")
		}
	}

	if m.PicksPerDay.Days > 0 && m.PicksPerDay.InBandFraction < 0.5 {
		v.Reasons = append(v.Reasons, fmt.Sprintf("only %.0f%% of days within %d-%d picks",
			m.PicksPerDay.InBandFraction*100, m.PicksPerDay.BandMin, m.PicksPerDay.BandMax))
	}
	return v
}

// GenerateRecommendation combines the pooled verdict with walk-forward
// consistency, the fraction of windows whose high-confidence accuracy met
// the threshold.
func GenerateRecommendation(pooled Verdict, consistency float64) string {
	switch {
	case pooled.Recommendation == RecommendationReject || consistency < 0.4:
		return RecommendationReject
	case pooled.Recommendation == RecommendationAccept && consistency >= 0.6:
		return RecommendationAccept
	default:
		return RecommendationNeedsReview
	}
}
