package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/pra-edge/internal/calibration"
	"github.com/yourusername/pra-edge/internal/config"
	"github.com/yourusername/pra-edge/internal/features"
	"github.com/yourusername/pra-edge/internal/ledger"
	"github.com/yourusername/pra-edge/internal/logger"
	"github.com/yourusername/pra-edge/internal/metrics"
	"github.com/yourusername/pra-edge/internal/models"
	"github.com/yourusername/pra-edge/internal/repository"
	"github.com/yourusername/pra-edge/internal/scoring"
)

// Result is the outcome of one simulation run.
type Result struct {
	RunID        uuid.UUID          `json:"run_id"`
	ModelVersion string             `json:"model_version"`
	StartDate    time.Time          `json:"start_date"`
	EndDate      time.Time          `json:"end_date"`
	StartedAt    time.Time          `json:"started_at"`
	CompletedAt  time.Time          `json:"completed_at"`
	Metrics      Metrics            `json:"metrics"`
	Calibration  calibration.Report `json:"calibration"`
	Daily        []DayResult        `json:"daily"`
	Verdict      Verdict            `json:"verdict"`

	Predictions []*models.Prediction `json:"-"`
	calibrator  *calibration.Calibrator
}

// Option configures an Engine.
type Option func(*Engine)

// WithFeatureBuilder overrides the default feature builder.
func WithFeatureBuilder(b *features.Builder) Option {
	return func(e *Engine) { e.builder = b }
}

// WithPredictionStore persists resolved predictions when PersistPredictions is set.
func WithPredictionStore(repo repository.PredictionRepository) Option {
	return func(e *Engine) { e.predictions = repo }
}

// Engine orchestrates backtesting runs over a read-only ledger.
type Engine struct {
	config      BacktestConfig
	ledger      *ledger.Ledger
	scorer      scoring.Scorer
	calibration calibration.Config
	builder     *features.Builder
	predictions repository.PredictionRepository
	logger      *logger.BacktestLogger
}

// NewEngine creates a new backtesting engine
func NewEngine(cfg BacktestConfig, led *ledger.Ledger, scorer scoring.Scorer, calCfg calibration.Config, log *logrus.Logger, opts ...Option) (*Engine, error) {
	if led == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if scorer == nil {
		return nil, fmt.Errorf("scorer is required")
	}
	if log == nil {
		log = logrus.New()
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backtest config: %w", err)
	}
	if _, err := calibration.New(calCfg); err != nil {
		return nil, fmt.Errorf("invalid calibration config: %w", err)
	}

	e := &Engine{
		config:      cfg,
		ledger:      led,
		scorer:      scorer,
		calibration: calCfg,
		builder:     features.NewBuilder(config.FeatureConfig{}),
		logger:      logger.NewBacktestLogger(log),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.config.PersistPredictions && e.predictions == nil {
		return nil, fmt.Errorf("persist_predictions requires a prediction store")
	}
	return e, nil
}

// Config returns the backtest configuration
func (e *Engine) Config() BacktestConfig {
	return e.config
}

// WithRange returns a copy of the engine restricted to [start, end].
func (e *Engine) WithRange(start, end time.Time) *Engine {
	c := *e
	c.config.StartDate = dayStart(start)
	c.config.EndDate = dayStart(end)
	return &c
}

// Tuples returns the simulated picks ordered by day then selection. For each
// (player, event, bookmaker) the decision line is the last observation
// fetched before tip-off; selections without a settled outcome are dropped.
// A tuple's day is the local game date of its tip-off, matching how box
// scores are dated.
func (e *Engine) Tuples() (tuples []Tuple, unsettled int) {
	start, end := e.config.StartDate, e.config.rangeEnd()

	latest := make(map[string]models.PropLine)
	for _, l := range e.ledger.Lines() {
		if l.Market != models.MarketPRA {
			continue
		}
		if e.config.Bookmaker != "" && !strings.EqualFold(l.Bookmaker, e.config.Bookmaker) {
			continue
		}
		if day := l.GameDay(); day.Before(start) || !day.Before(end) {
			continue
		}
		if !l.FetchedAt.Before(l.ScheduledAt) {
			continue
		}
		if cur, ok := latest[l.SelectionKey()]; !ok || l.FetchedAt.After(cur.FetchedAt) {
			latest[l.SelectionKey()] = l
		}
	}

	for _, l := range latest {
		outcome, ok := e.ledger.Outcome(l.Key, l.EventID)
		if !ok {
			unsettled++
			continue
		}
		tuples = append(tuples, Tuple{Day: l.GameDay(), Line: l, Outcome: outcome})
	}

	sort.Slice(tuples, func(i, j int) bool {
		if !tuples[i].Day.Equal(tuples[j].Day) {
			return tuples[i].Day.Before(tuples[j].Day)
		}
		return tuples[i].Line.SelectionKey() < tuples[j].Line.SelectionKey()
	})
	return tuples, unsettled
}

type tupleDay struct {
	day    time.Time
	tuples []Tuple
}

func groupByDay(tuples []Tuple) []tupleDay {
	var days []tupleDay
	for _, t := range tuples {
		if n := len(days); n > 0 && days[n-1].day.Equal(t.Day) {
			days[n-1].tuples = append(days[n-1].tuples, t)
			continue
		}
		days = append(days, tupleDay{day: t.Day, tuples: []Tuple{t}})
	}
	return days
}

// Run simulates every date in order. Within a date tuples are evaluated in
// parallel against a snapshot cut at the start of that date; the next date
// begins only after all of them finish. Cancellation discards partial results.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	started := time.Now()
	runID := uuid.New()
	version := e.scorer.Version()

	cal, err := calibration.New(e.calibration)
	if err != nil {
		return nil, err
	}

	tuples, unsettled := e.Tuples()
	days := groupByDay(tuples)
	e.logger.LogRunStarted(runID.String(), e.config.StartDate, e.config.EndDate, len(tuples), version)
	if unsettled > 0 {
		e.logger.WithField("unsettled", unsettled).Info("Selections without outcomes excluded")
	}

	acc := newAccumulator(e.config)
	var preds []*models.Prediction

	for _, d := range days {
		if err := ctx.Err(); err != nil {
			return nil, e.cancelled(started, err)
		}

		results := e.processDay(ctx, e.ledger.Snapshot(d.day), d)
		if err := ctx.Err(); err != nil {
			return nil, e.cancelled(started, err)
		}

		for _, r := range results {
			switch r.State {
			case StateResolved:
				if err := cal.Record(r.Prediction); err != nil {
					return nil, fmt.Errorf("failed to record prediction: %w", err)
				}
				preds = append(preds, r.Prediction)
				metrics.RecordBacktestTuple(string(StateResolved), "")
			case StateSkipped:
				e.logger.LogTupleSkipped(r.Tuple.Line.Key.String(), r.Tuple.Line.EventID, string(r.Reason), r.Err)
				metrics.RecordBacktestTuple(string(StateSkipped), string(r.Reason))
			default:
				return nil, fmt.Errorf("tuple %s left in state %s", r.Tuple.Line.SelectionKey(), r.State)
			}
		}
		day := acc.addDay(d.day, results)
		e.logger.LogDayCompleted(d.day, day.Resolved, day.Skipped, day.HighConfidence)
	}

	if e.config.PersistPredictions && len(preds) > 0 {
		if err := e.predictions.CreateBatch(ctx, preds); err != nil {
			metrics.RecordBacktestRun("historical", "error", time.Since(started))
			return nil, fmt.Errorf("failed to persist predictions: %w", err)
		}
	}

	report := cal.Report()
	m, daily := acc.finish(report.Brier, report.LogLoss)
	result := &Result{
		RunID:        runID,
		ModelVersion: version,
		StartDate:    e.config.StartDate,
		EndDate:      e.config.EndDate,
		StartedAt:    started.UTC(),
		CompletedAt:  time.Now().UTC(),
		Metrics:      m,
		Calibration:  report,
		Daily:        daily,
		Predictions:  preds,
		calibrator:   cal,
	}
	result.Verdict = GenerateVerdict(result.Metrics, result.Calibration)

	duration := time.Since(started)
	metrics.RecordBacktestRun("historical", "success", duration)
	metrics.UpdateBacktestAccuracy(version, deref(m.Accuracy), deref(m.HighConfidenceAccuracy), deref(report.ECE))
	e.logger.LogRunCompleted(runID.String(), deref(m.Accuracy), deref(m.HighConfidenceAccuracy), m.Resolved, m.Skipped, duration)

	return result, nil
}

func (e *Engine) cancelled(started time.Time, err error) error {
	metrics.RecordBacktestRun("historical", "cancelled", time.Since(started))
	e.logger.WithError(err).Warn("Backtest cancelled; partial results discarded")
	return err
}

// processDay fans the day's tuples out over at most Workers goroutines and
// waits for all of them. Results keep the input order.
func (e *Engine) processDay(ctx context.Context, snap *ledger.Snapshot, d tupleDay) []*TupleResult {
	results := make([]*TupleResult, len(d.tuples))
	sem := make(chan struct{}, e.config.Workers)
	var wg sync.WaitGroup

	for i, t := range d.tuples {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, t Tuple) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = e.evaluate(ctx, snap, t)
		}(i, t)
	}
	wg.Wait()
	return results
}

func (e *Engine) evaluate(ctx context.Context, snap *ledger.Snapshot, t Tuple) *TupleResult {
	r := newTupleResult(t)

	fv, err := e.builder.Build(t.Line.Key, t.Day, snap, t.Line)
	if err != nil {
		if errors.Is(err, models.ErrInsufficientData) {
			r.skip(SkipInsufficientData, err)
		} else {
			r.skip(SkipFeatureFailed, err)
		}
		return r
	}
	r.Features = fv
	if !e.advance(r, StateFeaturized) {
		return r
	}

	p, err := e.scorer.Score(ctx, fv)
	if err != nil {
		if errors.Is(err, models.ErrInvalidProbability) {
			r.skip(SkipInvalidProbability, err)
		} else {
			r.skip(SkipScoringFailed, err)
		}
		return r
	}
	if err := scoring.CheckProbability(p); err != nil {
		r.skip(SkipInvalidProbability, err)
		return r
	}

	pred, err := models.NewPrediction(t.Line.Key, t.Line.EventID, t.Line.Line, t.Day, p, e.scorer.Version())
	if err != nil {
		r.skip(SkipInvalidProbability, err)
		return r
	}
	pred.Bookmaker = t.Line.Bookmaker
	r.Prediction = pred
	if !e.advance(r, StateScored) {
		return r
	}

	if err := pred.Resolve(t.Outcome, t.Outcome.SettledAt); err != nil {
		r.skip(SkipResolveFailed, err)
		return r
	}
	e.advance(r, StateResolved)
	return r
}

// advance logs a rejected transition at warn. The tuple keeps its state and
// Run fails on it rather than counting it.
func (e *Engine) advance(r *TupleResult, next TupleState) bool {
	if err := r.advance(next); err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"selection": r.Tuple.Line.SelectionKey(),
			"state":     r.State,
		}).Warn("Tuple state transition rejected")
		return false
	}
	return true
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
