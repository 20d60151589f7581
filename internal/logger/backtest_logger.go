package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// BacktestLogger provides dedicated logging for walk-forward simulations.
type BacktestLogger struct {
	*logrus.Entry
}

// NewBacktestLogger creates a new backtest logger.
func NewBacktestLogger(baseLogger *logrus.Logger) *BacktestLogger {
	return &BacktestLogger{
		Entry: baseLogger.WithField("component", "backtest"),
	}
}

// LogRunStarted logs a simulation start.
func (bl *BacktestLogger) LogRunStarted(runID string, start, end time.Time, tuples int, modelVersion string) {
	bl.WithFields(logrus.Fields{
		"run_id":        runID,
		"start":         start.Format("2006-01-02"),
		"end":           end.Format("2006-01-02"),
		"tuples":        tuples,
		"model_version": modelVersion,
	}).Info("Starting backtest run")
}

// LogDayCompleted logs per-date progress after the date barrier.
func (bl *BacktestLogger) LogDayCompleted(day time.Time, resolved, skipped, highConfidence int) {
	bl.WithFields(logrus.Fields{
		"day":             day.Format("2006-01-02"),
		"resolved":        resolved,
		"skipped":         skipped,
		"high_confidence": highConfidence,
	}).Debug("Backtest day completed")
}

// LogTupleSkipped logs a tuple that could not be scored.
func (bl *BacktestLogger) LogTupleSkipped(key, eventID, reason string, err error) {
	bl.WithFields(logrus.Fields{
		"key":      key,
		"event_id": eventID,
		"reason":   reason,
	}).WithError(err).Debug("Tuple skipped")
}

// LogRunCompleted logs the headline metrics.
func (bl *BacktestLogger) LogRunCompleted(runID string, accuracy, highConfidenceAccuracy float64, resolved, skipped int, duration time.Duration) {
	bl.WithFields(logrus.Fields{
		"run_id":                   runID,
		"accuracy":                 accuracy,
		"high_confidence_accuracy": highConfidenceAccuracy,
		"resolved":                 resolved,
		"skipped":                  skipped,
		"duration":                 duration.String(),
	}).Info("Backtest run completed")
}
