package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records payment, webhook, and order-watch outcomes.
type CheckoutMetrics struct {
	intents      *prometheus.CounterVec
	confirms     *prometheus.CounterVec
	webhooks     *prometheus.CounterVec
	watchPolls   prometheus.Counter
	watchResults *prometheus.CounterVec
	confirmTime  prometheus.Histogram
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	intents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_intents_total",
		Help: "Payment intents created, by result.",
	}, []string{"result"})
	confirms := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_confirms_total",
		Help: "Payment confirmations, by outcome.",
	}, []string{"outcome"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Processor webhook events handled, by type and result.",
	}, []string{"type", "result"})
	watchPolls := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "order_watch_polls_total",
		Help: "Order confirmation poll attempts.",
	})
	watchResults := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_watch_results_total",
		Help: "Order confirmation watch outcomes.",
	}, []string{"result"})
	confirmTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_confirm_duration_seconds",
		Help:    "Duration of payment confirmation calls in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(intents, confirms, webhooks, watchPolls, watchResults, confirmTime)
	return &CheckoutMetrics{
		intents:      intents,
		confirms:     confirms,
		webhooks:     webhooks,
		watchPolls:   watchPolls,
		watchResults: watchResults,
		confirmTime:  confirmTime,
	}
}

// IncIntent increments the intent counter for the given result.
func (m *CheckoutMetrics) IncIntent(result string) {
	if m == nil || m.intents == nil {
		return
	}
	m.intents.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncConfirm increments the confirmation counter for the given outcome.
func (m *CheckoutMetrics) IncConfirm(outcome string) {
	if m == nil || m.confirms == nil {
		return
	}
	m.confirms.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncWebhook increments the webhook counter for the given type/result.
func (m *CheckoutMetrics) IncWebhook(eventType, result string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}

// IncWatchPoll counts one order-watch poll attempt.
func (m *CheckoutMetrics) IncWatchPoll() {
	if m == nil || m.watchPolls == nil {
		return
	}
	m.watchPolls.Inc()
}

// IncWatchResult counts a terminal order-watch outcome.
func (m *CheckoutMetrics) IncWatchResult(result string) {
	if m == nil || m.watchResults == nil {
		return
	}
	m.watchResults.WithLabelValues(normalizeLabel(result)).Inc()
}

// ObserveConfirmDuration records how long a confirmation call took.
func (m *CheckoutMetrics) ObserveConfirmDuration(duration time.Duration) {
	if m == nil || m.confirmTime == nil {
		return
	}
	m.confirmTime.Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
