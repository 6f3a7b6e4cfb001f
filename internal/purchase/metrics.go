package purchase

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricCheckoutInitiated  = "checkout_initiated_total"
	MetricWebhookEvents      = "webhook_events_total"
	MetricReconciliations    = "purchase_reconciliations_total"
	MetricGatewayDuration    = "gateway_request_duration_seconds"
)

// Metrics contains Prometheus metrics for the payment flow.
// All operations are thread-safe.
type Metrics struct {
	checkoutInitiated prometheus.Counter
	webhookEvents     *prometheus.CounterVec
	reconciliations   *prometheus.CounterVec
	gatewayDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		checkoutInitiated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricCheckoutInitiated,
				Help: "Total number of checkout initiations that created a pending purchase",
			},
		),
		webhookEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricWebhookEvents,
				Help: "Total number of gateway webhook deliveries by result",
			},
			[]string{"result"},
		),
		reconciliations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricReconciliations,
				Help: "Total number of ledger reconciliation attempts by outcome",
			},
			[]string{"outcome"},
		),
		gatewayDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricGatewayDuration,
				Help:    "Duration of outbound payment gateway calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "status"},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.checkoutInitiated,
		m.webhookEvents,
		m.reconciliations,
		m.gatewayDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncCheckoutInitiated increments the checkout initiation counter.
func (m *Metrics) IncCheckoutInitiated() {
	m.checkoutInitiated.Inc()
}

// IncWebhookEvent increments the webhook delivery counter for a result
// (handled, ignored, invalid_signature, bad_payload).
func (m *Metrics) IncWebhookEvent(result string) {
	m.webhookEvents.WithLabelValues(result).Inc()
}

// IncReconciliation increments the reconciliation counter for an outcome.
func (m *Metrics) IncReconciliation(outcome string) {
	m.reconciliations.WithLabelValues(outcome).Inc()
}

// ObserveGatewayCall records the duration of an outbound gateway call.
func (m *Metrics) ObserveGatewayCall(operation, status string, seconds float64) {
	m.gatewayDuration.WithLabelValues(operation, status).Observe(seconds)
}
