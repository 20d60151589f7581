package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/pra-edge/internal/calibration"
	"github.com/yourusername/pra-edge/internal/metrics"
)

// WalkForwardWindow represents one walk-forward window
type WalkForwardWindow struct {
	WindowID int       `json:"window_id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Result   *Result   `json:"result"`
}

// WalkForwardResult pools consecutive windows over the configured range.
type WalkForwardResult struct {
	RunID            uuid.UUID           `json:"run_id"`
	ModelVersion     string              `json:"model_version"`
	StartDate        time.Time           `json:"start_date"`
	EndDate          time.Time           `json:"end_date"`
	CompletedAt      time.Time           `json:"completed_at"`
	Windows          []WalkForwardWindow `json:"windows"`
	Calibration      calibration.Report  `json:"calibration"`
	Accuracy         *float64            `json:"accuracy"`
	HCAccuracy       *float64            `json:"high_confidence_accuracy"`
	ConsistencyScore float64             `json:"consistency_score"`
	AccuracyStdDev   float64             `json:"accuracy_std_dev"`
	Verdict          Verdict             `json:"verdict"`
	Recommendation   string              `json:"recommendation"`
}

// SplitWindows cuts [start, end] into consecutive windows of windowDays days.
// The final window is truncated at end.
func SplitWindows(start, end time.Time, windowDays int) [][2]time.Time {
	if windowDays <= 0 {
		return [][2]time.Time{{dayStart(start), dayStart(end)}}
	}
	var windows [][2]time.Time
	for cur := dayStart(start); !cur.After(dayStart(end)); cur = cur.AddDate(0, 0, windowDays) {
		last := cur.AddDate(0, 0, windowDays-1)
		if last.After(dayStart(end)) {
			last = dayStart(end)
		}
		windows = append(windows, [2]time.Time{cur, last})
	}
	return windows
}

// RunWindows runs the engine once per window and pools the results.
func RunWindows(ctx context.Context, engine *Engine, windowDays int) (*WalkForwardResult, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	started := time.Now()

	pooled, err := calibration.New(engine.calibration)
	if err != nil {
		return nil, err
	}

	out := &WalkForwardResult{
		RunID:        uuid.New(),
		ModelVersion: engine.scorer.Version(),
		StartDate:    engine.config.StartDate,
		EndDate:      engine.config.EndDate,
	}
	acc := newAccumulator(engine.config)
	for i, w := range SplitWindows(engine.config.StartDate, engine.config.EndDate, windowDays) {
		res, err := engine.WithRange(w[0], w[1]).Run(ctx)
		if err != nil {
			metrics.RecordBacktestRun("walk_forward", "error", time.Since(started))
			return nil, fmt.Errorf("window %d: %w", i+1, err)
		}
		if err := pooled.Merge(res.calibrator); err != nil {
			return nil, fmt.Errorf("window %d: %w", i+1, err)
		}
		acc.absorb(res)
		out.Windows = append(out.Windows, WalkForwardWindow{WindowID: i + 1, Start: w[0], End: w[1], Result: res})
	}

	out.Calibration = pooled.Report()
	m, _ := acc.finish(out.Calibration.Brier, out.Calibration.LogLoss)
	out.Accuracy = m.Accuracy
	out.HCAccuracy = m.HighConfidenceAccuracy
	out.ConsistencyScore = CalculateConsistency(out.Windows)
	out.AccuracyStdDev = accuracyStdDev(out.Windows)
	out.Verdict = GenerateVerdict(m, out.Calibration)
	out.Recommendation = GenerateRecommendation(out.Verdict, out.ConsistencyScore)
	out.CompletedAt = time.Now().UTC()

	metrics.RecordBacktestRun("walk_forward", "success", time.Since(started))
	return out, nil
}

// absorb folds a finished window's days into the pooled tally.
func (a *accumulator) absorb(r *Result) {
	for _, d := range r.Daily {
		a.metrics.Tuples += d.Tuples
		a.metrics.Resolved += d.Resolved
		a.metrics.Wins += d.Wins
		a.metrics.Skipped += d.Skipped
		a.metrics.HighConfidencePicks += d.HighConfidence
		a.metrics.HighConfidenceWins += d.HighConfidenceWins
		a.days = append(a.days, d)
	}
	for reason, n := range r.Metrics.SkippedByReason {
		a.metrics.SkippedByReason[reason] += n
	}
	for _, s := range r.Metrics.BySeason {
		cur, ok := a.seasons[s.Season]
		if !ok {
			cur = &SeasonMetrics{Season: s.Season}
			a.seasons[s.Season] = cur
		}
		cur.Resolved += s.Resolved
		cur.Wins += s.Wins
		cur.HighConfidencePicks += s.HighConfidencePicks
		cur.HighConfidenceWins += s.HighConfidenceWins
	}
}

// CalculateConsistency is the fraction of windows with high-confidence picks
// whose high-confidence accuracy met the threshold.
func CalculateConsistency(windows []WalkForwardWindow) float64 {
	scored, passing := 0, 0
	for _, w := range windows {
		m := w.Result.Metrics
		if m.HighConfidenceAccuracy == nil {
			continue
		}
		scored++
		if *m.HighConfidenceAccuracy >= m.HighConfidenceThreshold {
			passing++
		}
	}
	if scored == 0 {
		return 0
	}
	return float64(passing) / float64(scored)
}

func accuracyStdDev(windows []WalkForwardWindow) float64 {
	var xs []float64
	for _, w := range windows {
		if a := w.Result.Metrics.Accuracy; a != nil {
			xs = append(xs, *a)
		}
	}
	if len(xs) < 2 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	ss := 0.0
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
