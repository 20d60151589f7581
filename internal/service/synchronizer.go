package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/pra-edge/internal/checkpoint"
	"github.com/yourusername/pra-edge/internal/datasource"
	"github.com/yourusername/pra-edge/internal/logger"
	"github.com/yourusername/pra-edge/internal/metrics"
	"github.com/yourusername/pra-edge/internal/models"
	"github.com/yourusername/pra-edge/internal/repository"
)

// Granularity values for checkpoint tracking.
const (
	GranularitySource = "source"
	GranularityEntity = "entity"
)

// KindCounts holds merge outcomes for one record kind.
type KindCounts struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Invalid  int `json:"invalid"`
}

// MergeResult summarizes one sync call.
type MergeResult struct {
	Source    string                 `json:"source"`
	Inserted  int                    `json:"inserted"`
	Updated   int                    `json:"updated"`
	Skipped   int                    `json:"skipped"`
	Invalid   int                    `json:"invalid"`
	Watermark time.Time              `json:"watermark"`
	Advanced  bool                   `json:"advanced"`
	ByKind    map[string]*KindCounts `json:"by_kind"`
	Duration  time.Duration          `json:"duration"`
}

func newMergeResult(source string) *MergeResult {
	return &MergeResult{
		Source: source,
		ByKind: map[string]*KindCounts{
			KindGame:    {},
			KindLine:    {},
			KindOutcome: {},
		},
	}
}

func (r *MergeResult) count(kind string, w repository.WriteResult) {
	c := r.ByKind[kind]
	switch w {
	case repository.WriteInserted:
		c.Inserted++
		r.Inserted++
	case repository.WriteUpdated:
		c.Updated++
		r.Updated++
	default:
		c.Skipped++
		r.Skipped++
	}
}

func (r *MergeResult) invalid(kind string) {
	r.ByKind[kind].Invalid++
	r.Invalid++
}

// Synchronizer merges source batches into the ledger and advances checkpoints.
// Calls for different sources run in parallel; a second call for a source
// that is already syncing is rejected rather than queued.
type Synchronizer struct {
	repos       *repository.Repositories
	store       checkpoint.Store
	validator   *RecordValidator
	granularity string
	logger      *logger.SyncLogger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSynchronizer creates a new synchronizer
func NewSynchronizer(repos *repository.Repositories, store checkpoint.Store, granularity string, log *logrus.Logger) *Synchronizer {
	if granularity == "" {
		granularity = GranularitySource
	}
	return &Synchronizer{
		repos:       repos,
		store:       store,
		validator:   NewRecordValidator(),
		granularity: granularity,
		logger:      logger.NewSyncLogger(log),
		locks:       make(map[string]*sync.Mutex),
	}
}

func (s *Synchronizer) sourceLock(source string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[source]
	if !ok {
		l = &sync.Mutex{}
		s.locks[source] = l
	}
	return l
}

// Pull fetches everything newer than the source watermark and syncs it.
func (s *Synchronizer) Pull(ctx context.Context, src datasource.Source) (*MergeResult, error) {
	since, _, err := s.store.Watermark(ctx, src.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to read watermark for %s: %w", src.Name(), err)
	}

	batch, err := src.Fetch(ctx, since)
	if err != nil {
		metrics.RecordSyncRun(src.Name(), "fetch_error", 0)
		return nil, fmt.Errorf("failed to fetch %s: %w", src.Name(), err)
	}
	return s.Sync(ctx, src.Name(), batch)
}

// PullAll pulls every source in turn. A failing source does not stop the
// others; the joined error lists each failure.
func (s *Synchronizer) PullAll(ctx context.Context, sources []datasource.Source) ([]*MergeResult, error) {
	var (
		results []*MergeResult
		errs    []error
	)
	for _, src := range sources {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		res, err := s.Pull(ctx, src)
		if err != nil {
			s.logger.WithError(err).WithField("source", src.Name()).Error("Source sync failed")
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// Sync validates and merges batch for source, then moves the source
// watermark to the latest valid timestamp if that is newer than the stored one.
func (s *Synchronizer) Sync(ctx context.Context, source string, batch models.Batch) (*MergeResult, error) {
	lock := s.sourceLock(source)
	if !lock.TryLock() {
		metrics.RecordSyncRun(source, "rejected", 0)
		return nil, &models.ConcurrentSyncError{Source: source}
	}
	defer lock.Unlock()

	start := time.Now()
	s.logger.LogSyncStarted(source, batch.Len())

	result := newMergeResult(source)
	games, lines, outcomes := s.validate(source, batch, result)
	batchMax, entityMax := watermarks(games, lines, outcomes)

	err := s.repos.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		for _, g := range games {
			w, err := s.repos.PlayerGame.Upsert(ctx, g)
			if err != nil {
				return fmt.Errorf("failed to upsert game %s: %w", g.RecordKey(), err)
			}
			result.count(KindGame, w)
		}
		for _, l := range lines {
			w, err := s.repos.PropLine.Append(ctx, l)
			if err != nil {
				return fmt.Errorf("failed to append line %s: %w", l.RecordKey(), err)
			}
			result.count(KindLine, w)
		}
		for _, o := range outcomes {
			w, err := s.repos.Outcome.Insert(ctx, o)
			if err != nil {
				return fmt.Errorf("failed to insert outcome %s: %w", o.RecordKey(), err)
			}
			result.count(KindOutcome, w)
		}
		return nil
	})
	if err != nil {
		metrics.RecordSyncRun(source, "error", time.Since(start))
		return nil, fmt.Errorf("sync %s: %w", source, err)
	}

	// Checkpoints move only after the merge committed, so a crash in between
	// re-delivers records that merge idempotently.
	if err := s.advance(ctx, source, batchMax, entityMax, result); err != nil {
		metrics.RecordSyncRun(source, "error", time.Since(start))
		return nil, err
	}

	result.Duration = time.Since(start)
	for kind, c := range result.ByKind {
		metrics.RecordSyncRecords(source, kind, "inserted", c.Inserted)
		metrics.RecordSyncRecords(source, kind, "updated", c.Updated)
		metrics.RecordSyncRecords(source, kind, "skipped", c.Skipped)
		metrics.RecordSyncRecords(source, kind, "invalid", c.Invalid)
	}
	metrics.RecordSyncRun(source, "success", result.Duration)
	if !result.Watermark.IsZero() {
		metrics.UpdateSyncWatermark(source, result.Watermark)
	}
	s.logger.LogSyncCompleted(source, result.Inserted, result.Updated, result.Skipped, result.Invalid,
		result.Watermark, result.Advanced, result.Duration)

	return result, nil
}

func (s *Synchronizer) validate(source string, batch models.Batch, result *MergeResult) ([]*models.PlayerGame, []*models.PropLine, []*models.Outcome) {
	games := make([]*models.PlayerGame, 0, len(batch.Games))
	for i := range batch.Games {
		g := batch.Games[i]
		g.Key = models.NewIdentityKey(g.Key.Name, g.Key.Team)
		if err := s.validator.ValidateGame(source, &g); err != nil {
			s.logger.LogRejectedRecord(source, KindGame, g.RecordKey(), err)
			result.invalid(KindGame)
			continue
		}
		games = append(games, &g)
	}

	lines := make([]*models.PropLine, 0, len(batch.Lines))
	for i := range batch.Lines {
		l := batch.Lines[i]
		l.Key = models.NewIdentityKey(l.Key.Name, l.Key.Team)
		if err := s.validator.ValidateLine(source, &l); err != nil {
			s.logger.LogRejectedRecord(source, KindLine, l.RecordKey(), err)
			result.invalid(KindLine)
			continue
		}
		lines = append(lines, &l)
	}

	outcomes := make([]*models.Outcome, 0, len(batch.Outcomes))
	for i := range batch.Outcomes {
		o := batch.Outcomes[i]
		o.Key = models.NewIdentityKey(o.Key.Name, o.Key.Team)
		if err := s.validator.ValidateOutcome(source, &o); err != nil {
			s.logger.LogRejectedRecord(source, KindOutcome, o.RecordKey(), err)
			result.invalid(KindOutcome)
			continue
		}
		outcomes = append(outcomes, &o)
	}

	return games, lines, outcomes
}

// watermarks returns the latest record timestamp overall and per player.
// Timestamps are truncated to microseconds to match stored precision.
func watermarks(games []*models.PlayerGame, lines []*models.PropLine, outcomes []*models.Outcome) (time.Time, map[models.IdentityKey]time.Time) {
	var latest time.Time
	perKey := make(map[models.IdentityKey]time.Time)
	observe := func(key models.IdentityKey, ts time.Time) {
		ts = ts.UTC().Truncate(time.Microsecond)
		if ts.After(latest) {
			latest = ts
		}
		if ts.After(perKey[key]) {
			perKey[key] = ts
		}
	}

	for _, g := range games {
		observe(g.Key, g.ObservedAt)
	}
	for _, l := range lines {
		observe(l.Key, l.FetchedAt)
	}
	for _, o := range outcomes {
		observe(o.Key, o.SettledAt)
	}
	return latest, perKey
}

func (s *Synchronizer) advance(ctx context.Context, source string, batchMax time.Time, entityMax map[models.IdentityKey]time.Time, result *MergeResult) error {
	current, ok, err := s.store.Watermark(ctx, source)
	if err != nil {
		return fmt.Errorf("failed to read watermark for %s: %w", source, err)
	}
	result.Watermark = current

	switch {
	case batchMax.IsZero():
		s.logger.LogWatermarkUnchanged(source, batchMax, current)
	case ok && !batchMax.After(current):
		s.logger.LogWatermarkUnchanged(source, batchMax, current)
	default:
		if err := s.store.Advance(ctx, source, batchMax); err != nil {
			return fmt.Errorf("failed to advance watermark for %s: %w", source, err)
		}
		result.Watermark = batchMax
		result.Advanced = true
	}

	if s.granularity != GranularityEntity {
		return nil
	}

	keys := make([]models.IdentityKey, 0, len(entityMax))
	for k := range entityMax {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	for _, key := range keys {
		wm := entityMax[key]
		cur, ok, err := s.store.EntityWatermark(ctx, source, key)
		if err != nil {
			return fmt.Errorf("failed to read watermark for %s/%s: %w", source, key, err)
		}
		if ok && !wm.After(cur) {
			continue
		}
		if err := s.store.AdvanceEntity(ctx, source, key, wm); err != nil {
			return fmt.Errorf("failed to advance watermark for %s/%s: %w", source, key, err)
		}
	}
	return nil
}
