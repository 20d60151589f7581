// Package metrics provides the centralized Prometheus metrics registry for pra-edge.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pra_edge"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Scoring and prediction metrics
var (
	ScoresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scores_total",
		Help:      "Total number of feature vectors scored by model version and cache hit",
	}, []string{"model_version", "cache_hit"})
	ScoreErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "score_errors_total",
		Help:      "Total number of scoring failures by model version",
	}, []string{"model_version"})
	PredictionsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "predictions_created_total",
		Help:      "Total number of live predictions stored by label",
	}, []string{"label"})
	PredictionsResolvedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "predictions_resolved_total",
		Help:      "Total number of live predictions resolved by correctness",
	}, []string{"correct"})
	CircuitBreakerTripsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "circuit_breaker_trips_total",
		Help:      "Total number of HTTP circuit breaker trips by client",
	}, []string{"client"})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_client_requests_total",
		Help:      "Outbound HTTP requests by client and status class",
	}, []string{"client", "status"})
	SchedulerJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduler_jobs_total",
		Help:      "Scheduled job executions by job and status",
	}, []string{"job", "status"})
)

var (
	ScoreCacheHitRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "score_cache_hit_ratio",
		Help:      "Hit ratio of the score cache",
	})
	OpenPredictions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "open_predictions",
		Help:      "Number of live predictions awaiting an outcome",
	})
)

var (
	ScoreLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "score_latency_seconds",
		Help:      "Latency of uncached scoring calls in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"model_version"})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(ScoresTotal)
		registry.MustRegister(ScoreErrorsTotal)
		registry.MustRegister(PredictionsCreatedTotal)
		registry.MustRegister(PredictionsResolvedTotal)
		registry.MustRegister(CircuitBreakerTripsTotal)
		registry.MustRegister(HTTPRequestsTotal)
		registry.MustRegister(SchedulerJobsTotal)
		registry.MustRegister(ScoreCacheHitRatio)
		registry.MustRegister(OpenPredictions)
		registry.MustRegister(ScoreLatency)

		// Register sync metrics
		registry.MustRegister(SyncRecordsTotal)
		registry.MustRegister(SyncRunsTotal)
		registry.MustRegister(SyncDuration)
		registry.MustRegister(SyncWatermark)

		// Register backtest metrics
		registry.MustRegister(BacktestRunsTotal)
		registry.MustRegister(BacktestTuplesTotal)
		registry.MustRegister(BacktestDuration)
		registry.MustRegister(BacktestAccuracy)
		registry.MustRegister(BacktestCalibrationError)
		registry.MustRegister(ReportArtifactsTotal)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordScore records one scoring call.
func RecordScore(modelVersion string, cacheHit bool, duration time.Duration) {
	hit := "false"
	if cacheHit {
		hit = "true"
	} else {
		ScoreLatency.WithLabelValues(modelVersion).Observe(duration.Seconds())
	}
	ScoresTotal.WithLabelValues(modelVersion, hit).Inc()
}

// RecordScoreError records a failed scoring call.
func RecordScoreError(modelVersion string) {
	ScoreErrorsTotal.WithLabelValues(modelVersion).Inc()
}

// UpdateScoreCacheHitRatio updates the score cache gauge.
func UpdateScoreCacheHitRatio(ratio float64) {
	ScoreCacheHitRatio.Set(ratio)
}

// RecordPredictionCreated records a stored live prediction.
func RecordPredictionCreated(label string) {
	PredictionsCreatedTotal.WithLabelValues(label).Inc()
}

// RecordPredictionResolved records a resolved live prediction.
func RecordPredictionResolved(correct bool) {
	c := "false"
	if correct {
		c = "true"
	}
	PredictionsResolvedTotal.WithLabelValues(c).Inc()
}

// UpdateOpenPredictions updates the open predictions gauge.
func UpdateOpenPredictions(count int) {
	OpenPredictions.Set(float64(count))
}

// RecordCircuitBreakerTrip records a circuit breaker trip event.
func RecordCircuitBreakerTrip(client string) {
	CircuitBreakerTripsTotal.WithLabelValues(client).Inc()
}

// RecordHTTPRequest records an outbound request; status is e.g. "2xx" or "error".
func RecordHTTPRequest(client, status string) {
	HTTPRequestsTotal.WithLabelValues(client, status).Inc()
}

// RecordSchedulerJob records a scheduled job execution.
func RecordSchedulerJob(job, status string) {
	SchedulerJobsTotal.WithLabelValues(job, status).Inc()
}
