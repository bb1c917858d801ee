package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// CheckoutMetrics records carrier quote and voucher validation activity.
type CheckoutMetrics struct {
	quoteDuration *prometheus.HistogramVec
	quoteFailures *prometheus.CounterVec
	revocations   *prometheus.CounterVec
	staleQuotes   prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	quoteDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "carrier_quote_duration_seconds",
		Help:    "Duration of per-store carrier fee quotes in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	quoteFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "carrier_quote_failures_total",
		Help: "Per-store shipping quote failures by kind.",
	}, []string{"kind"})
	revocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "voucher_revocations_total",
		Help: "Applied vouchers revoked during validation, by reason.",
	}, []string{"reason"})
	staleQuotes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shipping_quote_stale_results_total",
		Help: "Shipping quote batches discarded because a newer quote started.",
	})
	reg.MustRegister(quoteDuration, quoteFailures, revocations, staleQuotes)
	return &CheckoutMetrics{
		quoteDuration: quoteDuration,
		quoteFailures: quoteFailures,
		revocations:   revocations,
		staleQuotes:   staleQuotes,
	}
}

// ObserveQuote records the duration of one carrier call.
func (m *CheckoutMetrics) ObserveQuote(outcome string, duration time.Duration) {
	if m == nil || m.quoteDuration == nil {
		return
	}
	m.quoteDuration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncQuoteFailure counts a per-store quote error of the given kind.
func (m *CheckoutMetrics) IncQuoteFailure(kind string) {
	if m == nil || m.quoteFailures == nil {
		return
	}
	m.quoteFailures.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncRevocation counts an automatic voucher revocation.
func (m *CheckoutMetrics) IncRevocation(reason string) {
	if m == nil || m.revocations == nil {
		return
	}
	m.revocations.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncStaleQuote counts a discarded quote batch.
func (m *CheckoutMetrics) IncStaleQuote() {
	if m == nil || m.staleQuotes == nil {
		return
	}
	m.staleQuotes.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
