package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cartline"

// CheckoutMetrics records the cart and order confirmation pipeline.
type CheckoutMetrics struct {
	transitions   *prometheus.CounterVec
	confirmed     *prometheus.CounterVec
	notifyFailure *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	cartMutations *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_state_transitions_total",
		Help:      "Order confirmation workflow state transitions.",
	}, []string{"state"})
	confirmed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_confirmed_total",
		Help:      "Orders returned by confirmation, split by created and replayed.",
	}, []string{"outcome"})
	notifyFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_failures_total",
		Help:      "Notification sends that failed during confirmation.",
	}, []string{"kind"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "checkout_confirm_duration_seconds",
		Help:      "Duration of order confirmation in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})
	cartMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cart_mutations_total",
		Help:      "Persisted cart mutations by operation.",
	}, []string{"op"})
	reg.MustRegister(transitions, confirmed, notifyFailure, duration, cartMutations)
	return &CheckoutMetrics{
		transitions:   transitions,
		confirmed:     confirmed,
		notifyFailure: notifyFailure,
		duration:      duration,
		cartMutations: cartMutations,
	}
}

// ObserveState counts entry into a workflow state.
func (c *CheckoutMetrics) ObserveState(state string) {
	if c == nil || c.transitions == nil {
		return
	}
	c.transitions.WithLabelValues(normalizeLabel(state)).Inc()
}

// IncConfirmed counts a confirmed order. replayed marks an idempotent replay.
func (c *CheckoutMetrics) IncConfirmed(replayed bool) {
	if c == nil || c.confirmed == nil {
		return
	}
	outcome := "created"
	if replayed {
		outcome = "replayed"
	}
	c.confirmed.WithLabelValues(outcome).Inc()
}

// IncNotificationFailure counts a failed send of the given kind.
func (c *CheckoutMetrics) IncNotificationFailure(kind string) {
	if c == nil || c.notifyFailure == nil {
		return
	}
	c.notifyFailure.WithLabelValues(normalizeLabel(kind)).Inc()
}

// ObserveConfirmDuration records how long a confirmation took.
func (c *CheckoutMetrics) ObserveConfirmDuration(success bool, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	c.duration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// IncCartMutation counts a persisted cart write.
func (c *CheckoutMetrics) IncCartMutation(op string) {
	if c == nil || c.cartMutations == nil {
		return
	}
	c.cartMutations.WithLabelValues(normalizeLabel(op)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
