package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec

	// Task queue metrics
	TasksProcessed *prometheus.CounterVec
	TaskRetries    *prometheus.CounterVec
	TaskLatency    *prometheus.HistogramVec
	TasksDead      prometheus.Counter
	QueueDepth     prometheus.Gauge

	// Reminder sweep metrics
	ReminderCandidates prometheus.Counter
	RemindersSent      prometheus.Counter
	RemindersFailed    prometheus.Counter

	// Messaging metrics
	MessagesSent         prometheus.Counter
	MessagesFailed       prometheus.Counter
	LinkVisits           prometheus.Counter
	MessagesOpened       prometheus.Counter
	NotificationsCreated *prometheus.CounterVec

	// Billing metrics
	CompaniesDeactivated prometheus.Counter
	PaymentsCaptured     *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics on reg.
// A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		TasksProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "processed_total",
			Help:      "Total number of task jobs processed",
		}, []string{"action", "status"}),
		TaskRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "retry_attempts_total",
			Help:      "Total number of task retries",
		}, []string{"action"}),
		TaskLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "duration_seconds",
			Help:      "Time spent running task jobs",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"action"}),
		TasksDead: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "dead_letter_total",
			Help:      "Jobs moved to the dead-letter list",
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "queue_depth",
			Help:      "Jobs waiting in the task queue",
		}),

		ReminderCandidates: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "candidates_total",
			Help:      "Events examined by reminder sweeps",
		}),
		RemindersSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "sent_total",
			Help:      "Event reminders delivered",
		}),
		RemindersFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "failed_total",
			Help:      "Event reminders that failed to deliver",
		}),

		MessagesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "sent_total",
			Help:      "Outbound messages delivered",
		}),
		MessagesFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "failed_total",
			Help:      "Outbound messages that failed to deliver",
		}),
		LinkVisits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "link_visits_total",
			Help:      "Tracked link redirects",
		}),
		MessagesOpened: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "opened_total",
			Help:      "Messages marked read by the tracking pixel",
		}),
		NotificationsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_created_total",
			Help:      "Notifications recorded",
		}, []string{"level"}),

		CompaniesDeactivated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "companies_deactivated_total",
			Help:      "Companies deactivated for unpaid invoices",
		}),
		PaymentsCaptured: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "payments_total",
			Help:      "Payment attempts by outcome",
		}, []string{"status"}),
	}
}

// NewNop returns metrics registered on a throwaway registry, for tests and tools.
func NewNop() *Metrics {
	return NewMetrics(prometheus.NewRegistry(), "crm")
}
