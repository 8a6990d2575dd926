package rotation

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rotationsTotal       prometheus.Counter
	rotationSkipsTotal   *prometheus.CounterVec
	deletionsTotal       prometheus.Counter
	deletionRetriesTotal prometheus.Counter
	notifyFailuresTotal  prometheus.Counter
	scheduleWriteFailed  prometheus.Counter

	metricsOnce       sync.Once
	metricsRegistered bool
)

// Skip reasons for the rotation skip counter.
const (
	SkipReasonNoKeys  = "no_keys"
	SkipReasonTwoKeys = "two_keys"
	SkipReasonNotDue  = "not_due"
)

// InitMetrics registers the Prometheus metrics. Call once at startup when
// metrics are enabled; all increment helpers are safe without it.
func InitMetrics() {
	metricsOnce.Do(func() {
		rotationsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "keyrotator_rotations_total",
			Help: "Total number of access keys rotated",
		})
		rotationSkipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keyrotator_rotation_skips_total",
			Help: "Total number of principals skipped during rotation, by reason",
		}, []string{"reason"})
		deletionsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "keyrotator_deletions_total",
			Help: "Total number of superseded access keys deleted",
		})
		deletionRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "keyrotator_deletion_retries_total",
			Help: "Total number of deletion attempts re-armed after failure",
		})
		notifyFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "keyrotator_notification_failures_total",
			Help: "Total number of notices that failed to send",
		})
		scheduleWriteFailed = promauto.NewCounter(prometheus.CounterOpts{
			Name: "keyrotator_schedule_write_failures_total",
			Help: "Total number of schedule-store writes that failed, leaving a rotated key with no scheduled deletion",
		})
		metricsRegistered = true
	})
}

func incRotations() {
	if metricsRegistered {
		rotationsTotal.Inc()
	}
}

func incSkips(reason string) {
	if metricsRegistered {
		rotationSkipsTotal.WithLabelValues(reason).Inc()
	}
}

func incDeletions() {
	if metricsRegistered {
		deletionsTotal.Inc()
	}
}

func incDeletionRetries() {
	if metricsRegistered {
		deletionRetriesTotal.Inc()
	}
}

func incNotifyFailures() {
	if metricsRegistered {
		notifyFailuresTotal.Inc()
	}
}

func incScheduleWriteFailures() {
	if metricsRegistered {
		scheduleWriteFailed.Inc()
	}
}
