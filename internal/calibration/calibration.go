// Package calibration buckets resolved predictions by stated confidence and
// compares each bucket's realized win rate against the confidence it claimed.
//
// A Calibrator holds counts only, so replaying the same predictions in any
// order, or merging partial calibrators, yields the same bucket report.
package calibration

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/yourusername/pra-edge/internal/config"
	"github.com/yourusername/pra-edge/internal/models"
)

const (
	DefaultStart      = 0.50
	DefaultWidth      = 0.02
	DefaultTolerance  = 0.05
	DefaultMinSamples = 20

	logLossEpsilon = 1e-15
)

var (
	// ErrConfidenceOutOfRange is returned for a confidence below the first bucket
	ErrConfidenceOutOfRange = errors.New("confidence below first bucket")

	// ErrConfigMismatch is returned when merging calibrators with different buckets
	ErrConfigMismatch = errors.New("calibrator configs differ")
)

// Config fixes the bucket layout and the calibration test.
type Config struct {
	Start      float64 `json:"start"`
	Width      float64 `json:"width"`
	Tolerance  float64 `json:"tolerance"`
	MinSamples int     `json:"min_samples"`
}

// DefaultConfig returns 0.02-wide buckets from 0.50.
func DefaultConfig() Config {
	return Config{
		Start:      DefaultStart,
		Width:      DefaultWidth,
		Tolerance:  DefaultTolerance,
		MinSamples: DefaultMinSamples,
	}
}

// ConfigFrom maps application config, falling back to defaults for zero fields.
func ConfigFrom(cfg config.CalibrationConfig) Config {
	c := DefaultConfig()
	if cfg.BucketStart > 0 {
		c.Start = cfg.BucketStart
	}
	if cfg.BucketWidth > 0 {
		c.Width = cfg.BucketWidth
	}
	if cfg.Tolerance > 0 {
		c.Tolerance = cfg.Tolerance
	}
	if cfg.MinSamples > 0 {
		c.MinSamples = cfg.MinSamples
	}
	return c
}

type bucket struct {
	count   int
	wins    int
	confSum float64
}

// Calibrator accumulates resolved predictions. Safe for concurrent use.
type Calibrator struct {
	cfg    Config
	start  decimal.Decimal
	width  decimal.Decimal
	bounds []float64

	mu         sync.Mutex
	buckets    []bucket
	brierSum   float64
	logLossSum float64
}

// New lays out buckets [start, start+width), ... with the last bucket closed at 1.0.
func New(cfg Config) (*Calibrator, error) {
	if cfg.Start < 0 || cfg.Start >= 1 {
		return nil, fmt.Errorf("bucket start must be in [0,1), got %v", cfg.Start)
	}
	if cfg.Width <= 0 || cfg.Width > 1-cfg.Start {
		return nil, fmt.Errorf("bucket width must be in (0,%v], got %v", 1-cfg.Start, cfg.Width)
	}
	if cfg.MinSamples <= 0 {
		return nil, fmt.Errorf("min samples must be positive, got %d", cfg.MinSamples)
	}

	start := decimal.NewFromFloat(cfg.Start)
	width := decimal.NewFromFloat(cfg.Width)
	one := decimal.NewFromInt(1)
	n := int(one.Sub(start).Div(width).Ceil().IntPart())

	bounds := make([]float64, n+1)
	for i := 0; i < n; i++ {
		bounds[i] = start.Add(width.Mul(decimal.NewFromInt(int64(i)))).InexactFloat64()
	}
	bounds[n] = 1

	return &Calibrator{
		cfg:     cfg,
		start:   start,
		width:   width,
		bounds:  bounds,
		buckets: make([]bucket, n),
	}, nil
}

// Config returns the bucket layout.
func (c *Calibrator) Config() Config { return c.cfg }

// BucketIndex returns the bucket holding confidence. The arithmetic is
// decimal so boundary values such as 0.92 never fall into the bucket below.
func (c *Calibrator) BucketIndex(confidence float64) (int, error) {
	if math.IsNaN(confidence) || confidence > 1 {
		return 0, fmt.Errorf("%w: confidence %v", models.ErrInvalidProbability, confidence)
	}
	conf := decimal.NewFromFloat(confidence)
	if conf.LessThan(c.start) {
		return 0, fmt.Errorf("%w: %v < %v", ErrConfidenceOutOfRange, confidence, c.cfg.Start)
	}
	i := int(conf.Sub(c.start).Div(c.width).Floor().IntPart())
	if i >= len(c.buckets) {
		i = len(c.buckets) - 1
	}
	return i, nil
}

// Record adds a resolved prediction.
func (c *Calibrator) Record(p *models.Prediction) error {
	if p == nil || !p.IsResolved() || p.Correct == nil || p.ActualLabel == nil {
		return models.ErrUnresolved
	}
	i, err := c.BucketIndex(p.Confidence)
	if err != nil {
		return err
	}

	y := 0.0
	if *p.ActualLabel == models.LabelOver {
		y = 1
	}
	prob := math.Min(math.Max(p.Probability, logLossEpsilon), 1-logLossEpsilon)

	c.mu.Lock()
	defer c.mu.Unlock()

	b := &c.buckets[i]
	b.count++
	b.confSum += p.Confidence
	if *p.Correct {
		b.wins++
	}
	c.brierSum += (p.Probability - y) * (p.Probability - y)
	c.logLossSum += -(y*math.Log(prob) + (1-y)*math.Log(1-prob))
	return nil
}

// Replay records every prediction, stopping at the first error.
func (c *Calibrator) Replay(preds []*models.Prediction) error {
	for i, p := range preds {
		if err := c.Record(p); err != nil {
			return fmt.Errorf("failed to record prediction %d: %w", i, err)
		}
	}
	return nil
}

// Merge adds other's counts into c.
func (c *Calibrator) Merge(other *Calibrator) error {
	if other == nil {
		return nil
	}
	if c.cfg != other.cfg {
		return ErrConfigMismatch
	}

	other.mu.Lock()
	buckets := make([]bucket, len(other.buckets))
	copy(buckets, other.buckets)
	brier, logLoss := other.brierSum, other.logLossSum
	other.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, b := range buckets {
		c.buckets[i].count += b.count
		c.buckets[i].wins += b.wins
		c.buckets[i].confSum += b.confSum
	}
	c.brierSum += brier
	c.logLossSum += logLoss
	return nil
}

// Count returns the number of recorded predictions.
func (c *Calibrator) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, b := range c.buckets {
		n += b.count
	}
	return n
}
