package calibration

import "math"

// BucketReport is one row of the calibration table. WinRate and Gap are nil
// for an empty bucket so "no data" never reads as "always wrong".
type BucketReport struct {
	Lower          float64  `json:"lower"`
	Upper          float64  `json:"upper"`
	Count          int      `json:"count"`
	Wins           int      `json:"wins"`
	WinRate        *float64 `json:"win_rate"`
	Midpoint       float64  `json:"midpoint"`
	MeanConfidence *float64 `json:"mean_confidence"`
	Gap            *float64 `json:"gap"`
	Definitive     bool     `json:"definitive"`
	Calibrated     bool     `json:"calibrated"`
}

// Report is the full calibration summary.
type Report struct {
	Buckets        []BucketReport `json:"buckets"`
	Total          int            `json:"total"`
	Wins           int            `json:"wins"`
	Brier          *float64       `json:"brier"`
	LogLoss        *float64       `json:"log_loss"`
	ECE            *float64       `json:"ece"`
	WellCalibrated bool           `json:"well_calibrated"`
	Tolerance      float64        `json:"tolerance"`
	MinSamples     int            `json:"min_samples"`
}

// Report builds the ordered bucket table.
func (c *Calibrator) Report() Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := Report{
		Buckets:    make([]BucketReport, len(c.buckets)),
		Tolerance:  c.cfg.Tolerance,
		MinSamples: c.cfg.MinSamples,
	}

	definitive, calibrated := 0, 0
	var ece float64
	for i, b := range c.buckets {
		lower, upper := c.bounds[i], c.bounds[i+1]
		br := BucketReport{
			Lower:    lower,
			Upper:    upper,
			Count:    b.count,
			Wins:     b.wins,
			Midpoint: (lower + upper) / 2,
		}
		if b.count > 0 {
			rate := float64(b.wins) / float64(b.count)
			gap := math.Abs(rate - br.Midpoint)
			meanConf := b.confSum / float64(b.count)
			br.WinRate = &rate
			br.Gap = &gap
			br.MeanConfidence = &meanConf
			ece += float64(b.count) * math.Abs(rate-meanConf)
		}
		br.Definitive = b.count >= c.cfg.MinSamples
		br.Calibrated = br.Definitive && *br.Gap < c.cfg.Tolerance
		if br.Definitive {
			definitive++
			if br.Calibrated {
				calibrated++
			}
		}

		r.Buckets[i] = br
		r.Total += b.count
		r.Wins += b.wins
	}

	if r.Total > 0 {
		n := float64(r.Total)
		brier := c.brierSum / n
		logLoss := c.logLossSum / n
		ece /= n
		r.Brier = &brier
		r.LogLoss = &logLoss
		r.ECE = &ece
	}
	r.WellCalibrated = definitive > 0 && definitive == calibrated
	return r
}

// Bucket returns the row containing confidence, if any.
func (r Report) Bucket(confidence float64) (BucketReport, bool) {
	for i, b := range r.Buckets {
		last := i == len(r.Buckets)-1
		if confidence >= b.Lower && (confidence < b.Upper || (last && confidence <= b.Upper)) {
			return b, true
		}
	}
	return BucketReport{}, false
}

// Accuracy is wins over total, nil when nothing was recorded.
func (r Report) Accuracy() *float64 {
	if r.Total == 0 {
		return nil
	}
	a := float64(r.Wins) / float64(r.Total)
	return &a
}
