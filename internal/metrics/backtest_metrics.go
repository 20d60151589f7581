// Package metrics defines backtesting-specific metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Backtest counter vectors
var (
	BacktestRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backtest_runs_total",
		Help:      "Total number of backtest runs by method and status",
	}, []string{"method", "status"})
	BacktestTuplesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backtest_tuples_total",
		Help:      "Backtest tuples by terminal state and skip reason",
	}, []string{"state", "reason"})
	ReportArtifactsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "report_artifacts_total",
		Help:      "Report artifacts written by format and status",
	}, []string{"format", "status"})
)

// Backtest histogram vectors
var (
	BacktestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backtest_duration_seconds",
		Help:      "Duration of backtest runs in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
	})
)

// Backtest gauge vectors
var (
	BacktestAccuracy = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "backtest_accuracy",
		Help:      "Accuracy of the latest backtest run by model version and scope (all, high_confidence)",
	}, []string{"model_version", "scope"})
	BacktestCalibrationError = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "backtest_expected_calibration_error",
		Help:      "Expected calibration error of the latest backtest run by model version",
	}, []string{"model_version"})
)

// RecordBacktestRun records a backtest run event.
// method should be one of: "walk_forward", "windowed"
// status should be one of: "success", "failure", "cancelled"
func RecordBacktestRun(method, status string, duration time.Duration) {
	BacktestRunsTotal.WithLabelValues(method, status).Inc()
	BacktestDuration.Observe(duration.Seconds())
}

// RecordBacktestTuple records a tuple reaching a terminal state. reason is
// empty for resolved tuples.
func RecordBacktestTuple(state, reason string) {
	BacktestTuplesTotal.WithLabelValues(state, reason).Inc()
}

// UpdateBacktestAccuracy publishes the accuracy figures of a finished run.
func UpdateBacktestAccuracy(modelVersion string, overall, highConfidence, ece float64) {
	BacktestAccuracy.WithLabelValues(modelVersion, "all").Set(overall)
	BacktestAccuracy.WithLabelValues(modelVersion, "high_confidence").Set(highConfidence)
	BacktestCalibrationError.WithLabelValues(modelVersion).Set(ece)
}

// RecordReportArtifact records a report write attempt.
func RecordReportArtifact(format, status string) {
	ReportArtifactsTotal.WithLabelValues(format, status).Inc()
}
