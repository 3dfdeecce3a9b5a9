// Package metrics holds the prometheus instruments of the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync Operation Metrics
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "attendance_sync_duration_seconds",
			Help:    "Duration of device sync runs in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30, 60},
		},
		[]string{"mode"},
	)

	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_sync_runs_total",
			Help: "Total number of device sync runs by outcome",
		},
		[]string{"mode", "outcome"},
	)

	SyncPunches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_sync_punches_total",
			Help: "Punches seen during sync by result",
		},
		[]string{"result"}, // "inserted", "duplicate", "invalid"
	)

	SyncLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "attendance_sync_last_success_timestamp",
			Help: "Unix timestamp of the last successful sync per device",
		},
		[]string{"device"},
	)

	// Device Metrics
	DeviceBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "attendance_device_breaker_state",
			Help: "Circuit breaker state per device (0=closed, 1=half-open, 2=open)",
		},
		[]string{"device"},
	)

	DeviceBreakerRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_device_breaker_rejections_total",
			Help: "Device calls rejected by an open circuit breaker",
		},
		[]string{"device"},
	)

	DeviceBindRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attendance_device_bind_retries_total",
			Help: "Local port collisions retried while opening a device session",
		},
	)

	// Metrics Engine
	LeaderboardDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "attendance_leaderboard_duration_seconds",
			Help:    "Duration of leaderboard and report computations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// RecordSync records one finished sync run.
func RecordSync(mode, device string, duration time.Duration, inserted, duplicates, invalid int, err error) {
	SyncDuration.WithLabelValues(mode).Observe(duration.Seconds())
	if err != nil {
		SyncRuns.WithLabelValues(mode, "failure").Inc()
		return
	}
	SyncRuns.WithLabelValues(mode, "success").Inc()
	SyncPunches.WithLabelValues("inserted").Add(float64(inserted))
	SyncPunches.WithLabelValues("duplicate").Add(float64(duplicates))
	SyncPunches.WithLabelValues("invalid").Add(float64(invalid))
	SyncLastSuccess.WithLabelValues(device).Set(float64(time.Now().Unix()))
}
