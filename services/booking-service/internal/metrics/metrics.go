package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "slotledger"

var (
	once sync.Once

	bookingsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_created_total",
			Help:      "Bookings created, by offering type.",
		},
		[]string{"offering_type"},
	)

	bookingConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_conflicts_total",
			Help:      "Booking attempts rejected because the slot was already taken.",
		},
	)

	statusChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_status_changes_total",
			Help:      "Booking status transitions, by target status.",
		},
		[]string{"status"},
	)

	notificationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Confirmation emails that could not be delivered.",
		},
	)

	reconcileRepairs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_repairs_total",
			Help:      "Ledger inconsistencies handled by the reconciliation sweep, by kind.",
		},
		[]string{"kind"},
	)

	resolveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "availability_resolve_seconds",
			Help:      "Time spent resolving available slots for one date.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register registers metrics with the default registry (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingsCreated,
			bookingConflicts,
			statusChanges,
			notificationFailures,
			reconcileRepairs,
			resolveDuration,
		)
	})
}

func IncBookingCreated(offeringType string) {
	bookingsCreated.WithLabelValues(offeringType).Inc()
}

func IncBookingConflict() {
	bookingConflicts.Inc()
}

func IncStatusChange(status string) {
	statusChanges.WithLabelValues(status).Inc()
}

func IncNotificationFailure() {
	notificationFailures.Inc()
}

func AddReconcileRepairs(kind string, n int) {
	if n > 0 {
		reconcileRepairs.WithLabelValues(kind).Add(float64(n))
	}
}

func ObserveResolve(seconds float64) {
	resolveDuration.Observe(seconds)
}
