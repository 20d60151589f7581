package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/pra-edge/internal/config"
	"github.com/yourusername/pra-edge/internal/features"
	"github.com/yourusername/pra-edge/internal/ledger"
	"github.com/yourusername/pra-edge/internal/lines"
	"github.com/yourusername/pra-edge/internal/metrics"
	"github.com/yourusername/pra-edge/internal/models"
	"github.com/yourusername/pra-edge/internal/repository"
	"github.com/yourusername/pra-edge/internal/scoring"
)

// PredictSummary reports one live prediction pass.
type PredictSummary struct {
	AsOf           time.Time            `json:"as_of"`
	Candidates     int                  `json:"candidates"`
	Scored         int                  `json:"scored"`
	BelowThreshold int                  `json:"below_threshold"`
	Duplicates     int                  `json:"duplicates"`
	Skipped        map[string]int       `json:"skipped"`
	Predictions    []*models.Prediction `json:"predictions"`
}

// ResolveSummary reports one resolution pass.
type ResolveSummary struct {
	Resolved int `json:"resolved"`
	Correct  int `json:"correct"`
	Pending  int `json:"pending"`
	Conflict int `json:"conflict"`
}

// DailyRecord is the win/loss line for one prediction day.
type DailyRecord struct {
	Date   string  `json:"date"`
	Wins   int     `json:"wins"`
	Losses int     `json:"losses"`
	WinPct float64 `json:"win_pct"`
}

// Predictor scores upcoming lines and later settles them against outcomes.
type Predictor struct {
	repos   *repository.Repositories
	builder *features.Builder
	scorer  scoring.Scorer
	cfg     config.PredictConfig
	logger  *logrus.Entry
	now     func() time.Time
}

// NewPredictor creates a new live predictor
func NewPredictor(repos *repository.Repositories, builder *features.Builder, scorer scoring.Scorer, cfg config.PredictConfig, logger *logrus.Logger) *Predictor {
	return &Predictor{
		repos:   repos,
		builder: builder,
		scorer:  scorer,
		cfg:     cfg,
		logger:  logger.WithField("component", "predictor"),
		now:     time.Now,
	}
}

// Predict scores every line scheduled within the horizon and stores the
// picks whose confidence clears the threshold as open predictions.
func (p *Predictor) Predict(ctx context.Context) (*PredictSummary, error) {
	now := p.now().UTC()
	summary := &PredictSummary{AsOf: now, Skipped: make(map[string]int)}

	led, err := ledger.Load(ctx, p.repos)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	snap := led.Snapshot(now)

	upcoming, err := p.repos.PropLine.ListScheduledBetween(ctx, now, now.Add(time.Duration(p.cfg.HorizonHours)*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming lines: %w", err)
	}
	candidates := latestLines(upcoming, now)
	summary.Candidates = len(candidates)

	open, err := p.repos.Prediction.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open predictions: %w", err)
	}
	existing := make(map[string]bool, len(open))
	for _, pred := range open {
		existing[pred.Key.String()+"|"+pred.EventID+"|"+pred.Bookmaker] = true
	}

	for _, line := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if existing[line.SelectionKey()] {
			summary.Duplicates++
			continue
		}

		// games dated on or after the event's local date never feed its features
		fv, err := p.builder.Build(line.Key, line.GameDay(), snap, *line)
		if err != nil {
			reason := "feature_failed"
			if errors.Is(err, models.ErrInsufficientData) {
				reason = "insufficient_data"
			}
			summary.Skipped[reason]++
			p.logger.WithError(err).WithField("key", line.Key.String()).Debug("Skipping line")
			continue
		}

		prob, err := p.scorer.Score(ctx, fv)
		if err != nil {
			reason := "scoring_failed"
			if errors.Is(err, models.ErrInvalidProbability) {
				reason = "invalid_probability"
			}
			summary.Skipped[reason]++
			p.logger.WithError(err).WithField("key", line.Key.String()).Warn("Scoring failed")
			continue
		}
		summary.Scored++

		pred, err := models.NewPrediction(line.Key, line.EventID, line.Line, now, prob, p.scorer.Version())
		if err != nil {
			summary.Skipped["invalid_probability"]++
			continue
		}
		if !pred.MeetsThreshold(p.cfg.MinConfidence) {
			summary.BelowThreshold++
			continue
		}
		pred.Bookmaker = line.Bookmaker

		if rec, err := lines.Minimum(fv, line.Line); err == nil {
			alt := rec.Line
			pred.AlternateLine = &alt
		}
		summary.Predictions = append(summary.Predictions, pred)
	}

	if len(summary.Predictions) > 0 {
		if err := p.repos.Prediction.CreateBatch(ctx, summary.Predictions); err != nil {
			return nil, fmt.Errorf("failed to store predictions: %w", err)
		}
	}
	for _, pred := range summary.Predictions {
		metrics.RecordPredictionCreated(string(pred.Label))
	}
	metrics.UpdateOpenPredictions(len(open) + len(summary.Predictions))

	p.logger.WithFields(logrus.Fields{
		"candidates":      summary.Candidates,
		"scored":          summary.Scored,
		"created":         len(summary.Predictions),
		"below_threshold": summary.BelowThreshold,
		"model_version":   p.scorer.Version(),
	}).Info("Prediction pass completed")

	return summary, nil
}

// Resolve settles every open prediction whose outcome has arrived.
func (p *Predictor) Resolve(ctx context.Context) (*ResolveSummary, error) {
	open, err := p.repos.Prediction.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open predictions: %w", err)
	}

	summary := &ResolveSummary{}
	now := p.now().UTC()
	for _, pred := range open {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		outcome, err := p.repos.Outcome.Get(ctx, pred.Key, pred.EventID)
		if errors.Is(err, models.ErrNotFound) {
			summary.Pending++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get outcome for %s/%s: %w", pred.Key, pred.EventID, err)
		}

		if err := pred.Resolve(*outcome, now); err != nil {
			return nil, fmt.Errorf("failed to resolve prediction %s: %w", pred.ID, err)
		}
		if err := p.repos.Prediction.Resolve(ctx, pred); err != nil {
			if errors.Is(err, models.ErrAlreadyResolved) {
				summary.Conflict++
				continue
			}
			return nil, fmt.Errorf("failed to store resolution for %s: %w", pred.ID, err)
		}

		summary.Resolved++
		if pred.IsCorrect() {
			summary.Correct++
		}
		metrics.RecordPredictionResolved(pred.IsCorrect())
	}
	metrics.UpdateOpenPredictions(summary.Pending)

	p.logger.WithFields(logrus.Fields{
		"resolved": summary.Resolved,
		"correct":  summary.Correct,
		"pending":  summary.Pending,
	}).Info("Resolution pass completed")

	return summary, nil
}

// Results returns the win/loss record per prediction day in [start, end).
func (p *Predictor) Results(ctx context.Context, start, end time.Time) ([]DailyRecord, error) {
	resolved, err := p.repos.Prediction.ListResolved(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list resolved predictions: %w", err)
	}

	byDate := make(map[string]*DailyRecord)
	for _, pred := range resolved {
		date := pred.AsOf.UTC().Format("2006-01-02")
		rec, ok := byDate[date]
		if !ok {
			rec = &DailyRecord{Date: date}
			byDate[date] = rec
		}
		if pred.IsCorrect() {
			rec.Wins++
		} else {
			rec.Losses++
		}
	}

	records := make([]DailyRecord, 0, len(byDate))
	for _, rec := range byDate {
		rec.WinPct = float64(rec.Wins) / float64(rec.Wins+rec.Losses)
		records = append(records, *rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date < records[j].Date })
	return records, nil
}

// latestLines keeps the most recent observation per selection fetched by asOf.
func latestLines(observed []*models.PropLine, asOf time.Time) []*models.PropLine {
	latest := make(map[string]*models.PropLine)
	for _, l := range observed {
		if l.FetchedAt.After(asOf) {
			continue
		}
		if cur, ok := latest[l.SelectionKey()]; !ok || l.FetchedAt.After(cur.FetchedAt) {
			latest[l.SelectionKey()] = l
		}
	}

	out := make([]*models.PropLine, 0, len(latest))
	for _, l := range latest {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ScheduledAt.Before(out[j].ScheduledAt)
		}
		return out[i].SelectionKey() < out[j].SelectionKey()
	})
	return out
}
