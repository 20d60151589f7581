package backtest

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// PicksPerDay summarizes high-confidence pick volume across simulated days.
type PicksPerDay struct {
	Days           int     `json:"days"`
	Min            int     `json:"min"`
	Max            int     `json:"max"`
	Mean           float64 `json:"mean"`
	BandMin        int     `json:"band_min"`
	BandMax        int     `json:"band_max"`
	InBandFraction float64 `json:"in_band_fraction"`
}

// SeasonMetrics is the per-season breakdown.
type SeasonMetrics struct {
	Season                 string   `json:"season"`
	Resolved               int      `json:"resolved"`
	Wins                   int      `json:"wins"`
	Accuracy               *float64 `json:"accuracy"`
	HighConfidencePicks    int      `json:"high_confidence_picks"`
	HighConfidenceWins     int      `json:"high_confidence_wins"`
	HighConfidenceAccuracy *float64 `json:"high_confidence_accuracy"`
}

// DayResult is the per-date tally recorded after each date barrier.
type DayResult struct {
	Date               string `json:"date"`
	Tuples             int    `json:"tuples"`
	Resolved           int    `json:"resolved"`
	Wins               int    `json:"wins"`
	Skipped            int    `json:"skipped"`
	HighConfidence     int    `json:"high_confidence"`
	HighConfidenceWins int    `json:"high_confidence_wins"`
}

// Metrics represents backtest performance metrics. Accuracy fields are nil
// when their denominator is zero; skipped tuples never count.
type Metrics struct {
	Tuples                  int             `json:"tuples"`
	Resolved                int             `json:"resolved"`
	Wins                    int             `json:"wins"`
	Losses                  int             `json:"losses"`
	Accuracy                *float64        `json:"accuracy"`
	HighConfidenceThreshold float64         `json:"high_confidence_threshold"`
	HighConfidencePicks     int             `json:"high_confidence_picks"`
	HighConfidenceWins      int             `json:"high_confidence_wins"`
	HighConfidenceAccuracy  *float64        `json:"high_confidence_accuracy"`
	PicksPerDay             PicksPerDay     `json:"picks_per_day"`
	Skipped                 int             `json:"skipped"`
	SkippedByReason         map[string]int  `json:"skipped_by_reason"`
	Brier                   *float64        `json:"brier"`
	LogLoss                 *float64        `json:"log_loss"`
	BySeason                []SeasonMetrics `json:"by_season"`
}

// Record returns the W-L string.
func (m Metrics) Record() string {
	return fmt.Sprintf("%d-%d", m.Wins, m.Losses)
}

// accumulator folds tuple results in date order. It is not safe for
// concurrent use; the engine feeds it after each barrier.
type accumulator struct {
	threshold float64
	bandMin   int
	bandMax   int

	metrics Metrics
	days    []DayResult
	seasons map[string]*SeasonMetrics
}

func newAccumulator(cfg BacktestConfig) *accumulator {
	reasons := make(map[string]int, len(SkipReasons))
	for _, r := range SkipReasons {
		reasons[string(r)] = 0
	}
	return &accumulator{
		threshold: cfg.HighConfidence,
		bandMin:   cfg.PicksMin,
		bandMax:   cfg.PicksMax,
		metrics: Metrics{
			HighConfidenceThreshold: cfg.HighConfidence,
			SkippedByReason:         reasons,
		},
		seasons: make(map[string]*SeasonMetrics),
	}
}

func (a *accumulator) addDay(day time.Time, results []*TupleResult) DayResult {
	d := DayResult{Date: day.Format("2006-01-02"), Tuples: len(results)}
	for _, r := range results {
		a.metrics.Tuples++
		switch r.State {
		case StateSkipped:
			d.Skipped++
			a.metrics.Skipped++
			a.metrics.SkippedByReason[string(r.Reason)]++
		case StateResolved:
			d.Resolved++
			correct := r.Prediction.IsCorrect()
			hc := r.Prediction.MeetsThreshold(a.threshold)
			if correct {
				d.Wins++
			}
			if hc {
				d.HighConfidence++
				if correct {
					d.HighConfidenceWins++
				}
			}
			a.addSeason(SeasonFor(r.Tuple.Day), correct, hc)
		}
	}

	a.metrics.Resolved += d.Resolved
	a.metrics.Wins += d.Wins
	a.metrics.HighConfidencePicks += d.HighConfidence
	a.metrics.HighConfidenceWins += d.HighConfidenceWins
	a.days = append(a.days, d)
	return d
}

func (a *accumulator) addSeason(season string, correct, hc bool) {
	s, ok := a.seasons[season]
	if !ok {
		s = &SeasonMetrics{Season: season}
		a.seasons[season] = s
	}
	s.Resolved++
	if correct {
		s.Wins++
	}
	if hc {
		s.HighConfidencePicks++
		if correct {
			s.HighConfidenceWins++
		}
	}
}

func (a *accumulator) finish(brier, logLoss *float64) (Metrics, []DayResult) {
	m := a.metrics
	m.Losses = m.Resolved - m.Wins
	m.Accuracy = ratio(m.Wins, m.Resolved)
	m.HighConfidenceAccuracy = ratio(m.HighConfidenceWins, m.HighConfidencePicks)
	m.Brier = brier
	m.LogLoss = logLoss
	m.PicksPerDay = picksPerDay(a.days, a.bandMin, a.bandMax)

	m.BySeason = make([]SeasonMetrics, 0, len(a.seasons))
	for _, s := range a.seasons {
		s.Accuracy = ratio(s.Wins, s.Resolved)
		s.HighConfidenceAccuracy = ratio(s.HighConfidenceWins, s.HighConfidencePicks)
		m.BySeason = append(m.BySeason, *s)
	}
	sort.Slice(m.BySeason, func(i, j int) bool { return m.BySeason[i].Season < m.BySeason[j].Season })
	return m, a.days
}

func picksPerDay(days []DayResult, bandMin, bandMax int) PicksPerDay {
	p := PicksPerDay{Days: len(days), BandMin: bandMin, BandMax: bandMax}
	if len(days) == 0 {
		return p
	}

	p.Min = math.MaxInt
	total, inBand := 0, 0
	for _, d := range days {
		n := d.HighConfidence
		total += n
		if n < p.Min {
			p.Min = n
		}
		if n > p.Max {
			p.Max = n
		}
		if n >= bandMin && n <= bandMax {
			inBand++
		}
	}
	p.Mean = float64(total) / float64(len(days))
	p.InBandFraction = float64(inBand) / float64(len(days))
	return p
}

// SeasonFor labels the NBA season containing t. Seasons start in October,
// so 2024-11-02 and 2025-03-01 are both "2024-25".
func SeasonFor(t time.Time) string {
	y := t.UTC().Year()
	if t.UTC().Month() < time.October {
		y--
	}
	return fmt.Sprintf("%d-%02d", y, (y+1)%100)
}

func ratio(num, den int) *float64 {
	if den == 0 {
		return nil
	}
	r := float64(num) / float64(den)
	return &r
}
