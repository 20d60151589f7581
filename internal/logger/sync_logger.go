package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// SyncLogger provides dedicated logging for ledger synchronization.
type SyncLogger struct {
	*logrus.Entry
}

// NewSyncLogger creates a new sync logger.
func NewSyncLogger(baseLogger *logrus.Logger) *SyncLogger {
	return &SyncLogger{
		Entry: baseLogger.WithField("component", "sync"),
	}
}

// LogSyncStarted logs the start of a sync call.
func (sl *SyncLogger) LogSyncStarted(source string, records int) {
	sl.WithFields(logrus.Fields{
		"source":  source,
		"records": records,
	}).Info("Sync started")
}

// LogRejectedRecord logs a record skipped for data quality.
func (sl *SyncLogger) LogRejectedRecord(source, kind, record string, err error) {
	sl.WithFields(logrus.Fields{
		"source": source,
		"kind":   kind,
		"record": record,
	}).WithError(err).Warn("Skipping invalid record")
}

// LogSyncCompleted logs merge counts and the watermark decision.
func (sl *SyncLogger) LogSyncCompleted(source string, inserted, updated, skipped, invalid int, watermark time.Time, advanced bool, duration time.Duration) {
	sl.WithFields(logrus.Fields{
		"source":    source,
		"inserted":  inserted,
		"updated":   updated,
		"skipped":   skipped,
		"invalid":   invalid,
		"watermark": watermark.UTC().Format(time.RFC3339),
		"advanced":  advanced,
		"duration":  duration.String(),
	}).Info("Sync completed")
}

// LogWatermarkUnchanged logs a batch that did not move the checkpoint.
func (sl *SyncLogger) LogWatermarkUnchanged(source string, batchMax, current time.Time) {
	sl.WithFields(logrus.Fields{
		"source":    source,
		"batch_max": batchMax.UTC().Format(time.RFC3339),
		"current":   current.UTC().Format(time.RFC3339),
	}).Debug("Watermark not advanced")
}
