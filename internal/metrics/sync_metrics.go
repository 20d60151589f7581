package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SyncRecordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sync_records_total",
		Help:      "Records processed by the synchronizer by source, kind and result",
	}, []string{"source", "kind", "result"})
	SyncRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sync_runs_total",
		Help:      "Sync runs by source and status",
	}, []string{"source", "status"})
)

var (
	SyncDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sync_duration_seconds",
		Help:      "Duration of sync runs in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	}, []string{"source"})
)

var (
	SyncWatermark = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sync_watermark_timestamp_seconds",
		Help:      "Current source watermark as a unix timestamp",
	}, []string{"source"})
)

// RecordSyncRecords adds n records of kind with the given result
// (inserted, updated, skipped, invalid).
func RecordSyncRecords(source, kind, result string, n int) {
	if n <= 0 {
		return
	}
	SyncRecordsTotal.WithLabelValues(source, kind, result).Add(float64(n))
}

// RecordSyncRun records a sync run.
// status should be one of: "success", "error", "fetch_error", "rejected"
func RecordSyncRun(source, status string, duration time.Duration) {
	SyncRunsTotal.WithLabelValues(source, status).Inc()
	SyncDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// UpdateSyncWatermark updates the watermark gauge for a source.
func UpdateSyncWatermark(source string, wm time.Time) {
	SyncWatermark.WithLabelValues(source).Set(float64(wm.Unix()))
}
