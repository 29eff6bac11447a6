package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	clockAttemptCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "timeclock_service",
		Subsystem: "clock",
		Name:      "attempts_total",
		Help:      "Clock-in/out attempts grouped by operation and business outcome.",
	}, []string{"operation", "outcome"})

	shiftPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "timeclock_service",
		Subsystem: "persistence",
		Name:      "last_shift_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent shift write to Postgres.",
	})

	shiftSyncedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "timeclock_service",
		Subsystem: "persistence",
		Name:      "last_shift_synced_timestamp_seconds",
		Help:      "Unix timestamp of the most recent shift transitioned to synced.",
	})

	rejectionDistanceHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "timeclock_service",
		Subsystem: "clock",
		Name:      "rejection_distance_meters",
		Help:      "How far outside the perimeter rejected clock-ins were.",
		Buckets:   prometheus.ExponentialBuckets(10, 2, 12),
	})
)

func init() {
	prometheus.MustRegister(clockAttemptCounter, shiftPersistGauge, shiftSyncedGauge, rejectionDistanceHistogram)
}

// RecordClockAttempt counts one clock operation by outcome.
func RecordClockAttempt(operation, outcome string) {
	clockAttemptCounter.WithLabelValues(operation, outcome).Inc()
}

// RecordRejectionDistance observes the distance of an outside-perimeter rejection.
func RecordRejectionDistance(meters float64) {
	if meters <= 0 {
		return
	}
	rejectionDistanceHistogram.Observe(meters)
}

// RecordShiftPersisted updates the persistence watermark gauge.
func RecordShiftPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	shiftPersistGauge.Set(float64(ts.Unix()))
}

// RecordShiftSynced updates the synced watermark gauge.
func RecordShiftSynced(ts time.Time) {
	if ts.IsZero() {
		return
	}
	shiftSyncedGauge.Set(float64(ts.Unix()))
}
