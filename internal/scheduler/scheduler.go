// Package scheduler runs incremental source pulls on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/pra-edge/internal/config"
	"github.com/yourusername/pra-edge/internal/datasource"
	"github.com/yourusername/pra-edge/internal/metrics"
	"github.com/yourusername/pra-edge/internal/models"
	"github.com/yourusername/pra-edge/internal/service"
)

// DefaultJobTimeout bounds one scheduled pull.
const DefaultJobTimeout = 30 * time.Minute

// Puller runs one incremental sync for a source.
type Puller interface {
	Pull(ctx context.Context, src datasource.Source) (*service.MergeResult, error)
}

// Scheduler manages scheduled sync jobs
type Scheduler struct {
	cron            *cron.Cron
	puller          Puller
	logger          *logrus.Entry
	mu              sync.RWMutex
	isRunning       bool
	jobIDs          map[string]cron.EntryID
	jobTimeout      time.Duration
	gracefulTimeout time.Duration
}

// NewScheduler creates a new scheduler. Overlapping runs of the same job
// are skipped rather than queued.
func NewScheduler(puller Puller, logger *logrus.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(logger.WithField("component", "cron"))
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		puller:          puller,
		logger:          logger.WithField("component", "scheduler"),
		jobIDs:          make(map[string]cron.EntryID),
		jobTimeout:      DefaultJobTimeout,
		gracefulTimeout: 30 * time.Second,
	}
}

// ScheduleSource adds a pull of src on the given cron expression
// ("*/15 * * * *", "@every 10m", ...).
func (s *Scheduler) ScheduleSource(schedule string, src datasource.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}
	if _, ok := s.jobIDs[src.Name()]; ok {
		return fmt.Errorf("source %s is already scheduled", src.Name())
	}

	entryID, err := s.cron.AddFunc(schedule, func() { s.RunOnce(context.Background(), src) })
	if err != nil {
		return fmt.Errorf("failed to add job for %s: %w", src.Name(), err)
	}

	s.jobIDs[src.Name()] = entryID
	s.logger.WithFields(logrus.Fields{"source": src.Name(), "schedule": schedule}).Info("Scheduled sync job")
	return nil
}

// ScheduleSources schedules every enabled source that has a schedule.
// Sources are matched to their config by name.
func (s *Scheduler) ScheduleSources(cfgs []config.SourceConfig, sources []datasource.Source) (int, error) {
	byName := make(map[string]datasource.Source, len(sources))
	for _, src := range sources {
		byName[src.Name()] = src
	}

	scheduled := 0
	for _, cfg := range cfgs {
		if !cfg.Enabled || cfg.Schedule == "" {
			continue
		}
		src, ok := byName[cfg.Name]
		if !ok {
			return scheduled, fmt.Errorf("no source built for %s", cfg.Name)
		}
		if err := s.ScheduleSource(cfg.Schedule, src); err != nil {
			return scheduled, err
		}
		scheduled++
	}
	return scheduled, nil
}

// RunOnce performs one pull with the job timeout. It is what each cron
// entry calls and is exported for manual triggers.
func (s *Scheduler) RunOnce(ctx context.Context, src datasource.Source) {
	ctx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()

	job := "sync:" + src.Name()
	log := s.logger.WithField("source", src.Name())

	res, err := s.puller.Pull(ctx, src)
	switch {
	case errors.Is(err, models.ErrConcurrentSync):
		metrics.RecordSchedulerJob(job, "skipped")
		log.Warn("Sync already in progress, skipping scheduled run")
	case err != nil:
		metrics.RecordSchedulerJob(job, "error")
		log.WithError(err).Error("Scheduled sync failed")
	default:
		metrics.RecordSchedulerJob(job, "success")
		log.WithFields(logrus.Fields{
			"inserted": res.Inserted,
			"updated":  res.Updated,
			"skipped":  res.Skipped,
			"invalid":  res.Invalid,
		}).Info("Scheduled sync completed")
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")
	return nil
}

// Stop waits for running jobs up to the graceful timeout.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}
	s.isRunning = false

	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-time.After(s.gracefulTimeout):
		return fmt.Errorf("scheduler jobs still running after %s", s.gracefulTimeout)
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns the next run time of the named source's job. It is
// unknown until the scheduler starts.
func (s *Scheduler) NextRun(source string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.jobIDs[source]
	if !ok {
		return time.Time{}, false
	}
	entry := s.cron.Entry(id)
	return entry.Next, entry.Valid() && !entry.Next.IsZero()
}

// Jobs returns the scheduled source names in order.
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.jobIDs))
	for name := range s.jobIDs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RemoveJob unschedules a source
func (s *Scheduler) RemoveJob(source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot remove job while scheduler is running")
	}
	id, ok := s.jobIDs[source]
	if !ok {
		return fmt.Errorf("source %s is not scheduled", source)
	}
	s.cron.Remove(id)
	delete(s.jobIDs, source)
	s.logger.WithField("source", source).Info("Removed job")
	return nil
}
