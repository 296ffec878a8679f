package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for webhook and task observability.
type Metrics struct {
	// Webhooks
	WebhookReceived *prometheus.CounterVec
	WebhookIgnored  *prometheus.CounterVec
	WebhookRejected *prometheus.CounterVec
	WebhookLatency  prometheus.Histogram

	// Asynchronous tasks
	TaskStarted   *prometheus.CounterVec
	TaskSucceeded *prometheus.CounterVec
	TaskRetried   *prometheus.CounterVec
	TaskExhausted *prometheus.CounterVec
	TaskDuration  *prometheus.HistogramVec

	// Auth
	Logins         *prometheus.CounterVec
	TokenRefreshes *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on the default registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith registers against an explicit registry. Tests pass a
// fresh registry so repeated construction does not collide.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "subgate"
	}
	factory := promauto.With(reg)

	return &Metrics{
		WebhookReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_received_total",
				Help:      "Total webhook events received and dispatched",
			},
			[]string{"event_type"},
		),
		WebhookIgnored: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_ignored_total",
				Help:      "Total webhook events with unrecognized types",
			},
			[]string{"event_type"},
		),
		WebhookRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_rejected_total",
				Help:      "Total webhook requests rejected before dispatch",
			},
			[]string{"reason"}, // reason: missing_signature, bad_signature, malformed
		),
		WebhookLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "webhook_duration_seconds",
				Help:      "Webhook receive-to-ack latency",
				Buckets:   prometheus.DefBuckets,
			},
		),
		TaskStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_started_total",
				Help:      "Total task executions started",
			},
			[]string{"task"},
		),
		TaskSucceeded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_succeeded_total",
				Help:      "Total task executions that completed",
			},
			[]string{"task"},
		),
		TaskRetried: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_retried_total",
				Help:      "Total task attempts that failed and were retried",
			},
			[]string{"task"},
		),
		TaskExhausted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_exhausted_total",
				Help:      "Total tasks that failed permanently after all retries",
			},
			[]string{"task"},
		),
		TaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Task execution time including retries",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"task"},
		),
		Logins: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logins_total",
				Help:      "Total login attempts",
			},
			[]string{"outcome"}, // outcome: success, not_found, error
		),
		TokenRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refreshes_total",
				Help:      "Total refresh-token rotations",
			},
			[]string{"outcome"}, // outcome: success, invalid, error
		),
	}
}
