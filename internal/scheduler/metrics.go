package scheduler

import "github.com/prometheus/client_golang/prometheus"

// Delivery outcomes used as the "outcome" label.
const (
	outcomeSent    = "sent"
	outcomeFailed  = "failed"
	outcomeTimeout = "timeout"
)

// Removal reasons used as the "reason" label.
const (
	reasonOneShot      = "one_shot"
	reasonInvalidRecur = "invalid_recur"
)

var (
	// deliveries counts delivery attempts by outcome (sent|failed|timeout).
	deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_deliveries_total",
			Help: "Reminder delivery attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// reschedules counts recurring reminders advanced to their next due time.
	reschedules = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reminder_reschedules_total",
			Help: "Recurring reminders advanced to their next occurrence.",
		},
	)

	// removals counts reminders deleted by the dispatcher by reason.
	removals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_removals_total",
			Help: "Reminders removed after delivery by reason.",
		},
		[]string{"reason"},
	)

	// tickDuration records how long one dispatcher tick took.
	tickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reminder_tick_duration_seconds",
			Help:    "Duration of dispatcher ticks in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// dueBatch records how many reminders were due per tick.
	dueBatch = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reminder_due_batch_size",
			Help:    "Number of due reminders fetched per tick.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		},
	)
)

func init() {
	prometheus.MustRegister(deliveries, reschedules, removals, tickDuration, dueBatch)
}
