package backtest

import (
	"fmt"
	"time"

	"github.com/yourusername/pra-edge/internal/config"
)

// Defaults applied when the corresponding config field is zero.
const (
	DefaultWorkers        = 4
	DefaultHighConfidence = 0.90
	DefaultPicksMin       = 3
	DefaultPicksMax       = 8
)

// BacktestConfig extends core config with backtest-specific settings
type BacktestConfig struct {
	// StartDate and EndDate are inclusive UTC days.
	StartDate          time.Time
	EndDate            time.Time
	Workers            int
	HighConfidence     float64
	PicksMin           int
	PicksMax           int
	Bookmaker          string
	PersistPredictions bool
	WindowDays         int
}

// FromConfig converts app config to backtest config
func FromConfig(cfg *config.BacktestConfig) (BacktestConfig, error) {
	if cfg == nil {
		return BacktestConfig{}, fmt.Errorf("backtest config is required")
	}
	start, end, err := cfg.BacktestRange()
	if err != nil {
		return BacktestConfig{}, err
	}

	bt := BacktestConfig{
		StartDate:          start,
		EndDate:            end,
		Workers:            cfg.Workers,
		HighConfidence:     cfg.HighConfidence,
		PicksMin:           cfg.PicksMin,
		PicksMax:           cfg.PicksMax,
		Bookmaker:          cfg.Bookmaker,
		PersistPredictions: cfg.PersistPredictions,
		WindowDays:         cfg.WindowDays,
	}
	bt = bt.withDefaults()
	return bt, bt.Validate()
}

func (b BacktestConfig) withDefaults() BacktestConfig {
	if b.Workers <= 0 {
		b.Workers = DefaultWorkers
	}
	if b.HighConfidence <= 0 {
		b.HighConfidence = DefaultHighConfidence
	}
	if b.PicksMin == 0 && b.PicksMax == 0 {
		b.PicksMin, b.PicksMax = DefaultPicksMin, DefaultPicksMax
	}
	b.StartDate = dayStart(b.StartDate)
	b.EndDate = dayStart(b.EndDate)
	return b
}

// Validate validates backtest config parameters
func (b BacktestConfig) Validate() error {
	if b.StartDate.IsZero() || b.EndDate.IsZero() {
		return fmt.Errorf("start and end dates are required")
	}
	if b.StartDate.After(b.EndDate) {
		return fmt.Errorf("start date must not be after end date")
	}
	if b.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if b.HighConfidence < 0.5 || b.HighConfidence > 1 {
		return fmt.Errorf("high confidence threshold must be in [0.5,1], got %v", b.HighConfidence)
	}
	if b.PicksMin < 0 || b.PicksMax < b.PicksMin {
		return fmt.Errorf("picks band [%d,%d] is invalid", b.PicksMin, b.PicksMax)
	}
	if b.WindowDays < 0 {
		return fmt.Errorf("window days cannot be negative")
	}
	return nil
}

// rangeEnd is the exclusive upper bound of the simulated range.
func (b BacktestConfig) rangeEnd() time.Time {
	return b.EndDate.AddDate(0, 0, 1)
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
