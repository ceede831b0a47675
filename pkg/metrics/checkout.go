package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records placement and reconciliation outcomes.
type CheckoutMetrics struct {
	placementDuration *prometheus.HistogramVec
	placements        *prometheus.CounterVec
	reconciliations   *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	placementDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_placement_duration_seconds",
		Help:    "Duration of order placement in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
	placements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_placements_total",
		Help: "Placement attempts by payment method and outcome.",
	}, []string{"method", "outcome"})
	reconciliations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_reconciliations_total",
		Help: "Reconciler sweep outcomes for payment intents.",
	}, []string{"outcome"})
	reg.MustRegister(placementDuration, placements, reconciliations)
	return &CheckoutMetrics{
		placementDuration: placementDuration,
		placements:        placements,
		reconciliations:   reconciliations,
	}
}

// ObservePlacement records the duration for a placement by payment method.
func (c *CheckoutMetrics) ObservePlacement(method string, duration time.Duration) {
	if c == nil || c.placementDuration == nil {
		return
	}
	c.placementDuration.WithLabelValues(normalizeLabel(method)).Observe(duration.Seconds())
}

// IncPlacement increments the placement counter for a method/outcome pair.
func (c *CheckoutMetrics) IncPlacement(method, outcome string) {
	if c == nil || c.placements == nil {
		return
	}
	c.placements.WithLabelValues(normalizeLabel(method), normalizeLabel(outcome)).Inc()
}

// IncReconciliation increments the reconciler counter for an outcome.
func (c *CheckoutMetrics) IncReconciliation(outcome string) {
	if c == nil || c.reconciliations == nil {
		return
	}
	c.reconciliations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return strings.ReplaceAll(value, " ", "_")
}
