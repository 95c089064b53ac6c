package metrics

import (
	"github.com/exlearn/billing-service/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Purchase outcomes recorded per category.
const (
	OutcomeCompleted = "completed"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// PurchaseMetrics records purchase pipeline outcomes.
type PurchaseMetrics interface {
	IncPurchase(category, outcome string)
	// IncPersistFailure counts the debited-but-not-persisted condition.
	// It is a separate series so reconciliation alerts can key on it
	// instead of on generic rejections.
	IncPersistFailure(category string)
	ObserveDebitedAmount(category string, amount float64)
}

type purchaseMetrics struct {
	log             *logger.Logger
	purchases       *prometheus.CounterVec
	persistFailures *prometheus.CounterVec
	debitedAmounts  *prometheus.HistogramVec
}

// NewPurchaseMetrics registers the purchase metric series.
func NewPurchaseMetrics(registry *prometheus.Registry, log *logger.Logger) PurchaseMetrics {
	purchases := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchases_total",
			Help: "The total number of purchase attempts by category and outcome",
		},
		[]string{"category", "outcome"},
	)

	persistFailures := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_persist_failures_total",
			Help: "Purchases where credits were debited but the order write failed",
		},
		[]string{"category"},
	)

	debitedAmounts := promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "purchase_debited_credits",
			Help:    "Distribution of debited credit amounts",
			Buckets: prometheus.ExponentialBuckets(1, 4, 6), // 1, 4, 16, 64, 256, 1024
		},
		[]string{"category"},
	)

	return &purchaseMetrics{
		log:             log,
		purchases:       purchases,
		persistFailures: persistFailures,
		debitedAmounts:  debitedAmounts,
	}
}

// IncPurchase increments the purchase counter
func (m *purchaseMetrics) IncPurchase(category, outcome string) {
	m.purchases.WithLabelValues(category, outcome).Inc()
}

// IncPersistFailure increments the reconciliation counter
func (m *purchaseMetrics) IncPersistFailure(category string) {
	m.persistFailures.WithLabelValues(category).Inc()
}

// ObserveDebitedAmount records a debited credit amount
func (m *purchaseMetrics) ObserveDebitedAmount(category string, amount float64) {
	m.debitedAmounts.WithLabelValues(category).Observe(amount)
}

// NoOpPurchaseMetrics discards all observations; used when no registry
// is wired, and as a test default.
type NoOpPurchaseMetrics struct{}

func (NoOpPurchaseMetrics) IncPurchase(string, string)           {}
func (NoOpPurchaseMetrics) IncPersistFailure(string)             {}
func (NoOpPurchaseMetrics) ObserveDebitedAmount(string, float64) {}
