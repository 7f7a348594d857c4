package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcomes recorded for weekly notifications.
const (
	OutcomeTriggered = "triggered"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// PaymentMetrics counts weekly notifications, webhook events and processor calls.
// A nil *PaymentMetrics is valid and records nothing.
type PaymentMetrics struct {
	notifications *prometheus.CounterVec
	webhooks      *prometheus.CounterVec
	processor     *prometheus.CounterVec
}

func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "weekly_notifications_total",
		Help:      "Weekly debit notifications by outcome.",
	}, []string{"source", "outcome"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_total",
		Help:      "Processor webhook events by kind and result.",
	}, []string{"kind", "result"})
	processor := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "processor_requests_total",
		Help:      "Outbound payment processor calls by operation and result.",
	}, []string{"operation", "result"})
	reg.MustRegister(notifications, webhooks, processor)
	return &PaymentMetrics{notifications: notifications, webhooks: webhooks, processor: processor}
}

// IncNotification records one weekly notification attempt; source is "scheduler" or "manual".
func (m *PaymentMetrics) IncNotification(source, outcome string) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.WithLabelValues(normalizeLabel(source), normalizeLabel(outcome)).Inc()
}

func (m *PaymentMetrics) IncWebhook(kind, result string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(kind), normalizeLabel(result)).Inc()
}

func (m *PaymentMetrics) IncProcessorCall(operation string, err error) {
	if m == nil || m.processor == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.processor.WithLabelValues(normalizeLabel(operation), result).Inc()
}
