package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	InvoicesCreated prometheus.Counter
	PaymentsApplied prometheus.Counter
	ClaimsSubmitted prometheus.Counter
	ClaimFailures   prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		InvoicesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "healthfinance_billing_invoices_created_total",
			Help: "Total number of invoices created",
		}),
		PaymentsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "healthfinance_billing_payments_applied_total",
			Help: "Total number of payments applied to invoices",
		}),
		ClaimsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "healthfinance_billing_claims_submitted_total",
			Help: "Total number of insurance claims auto-submitted",
		}),
		// Claim submission is best effort; failures only show up here and in
		// the logs.
		ClaimFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "healthfinance_billing_claim_failures_total",
			Help: "Total number of insurance claim submissions that failed",
		}),
	}
}

func (m *Metrics) IncInvoicesCreated() {
	m.InvoicesCreated.Inc()
}

func (m *Metrics) IncPaymentsApplied() {
	m.PaymentsApplied.Inc()
}

func (m *Metrics) IncClaimsSubmitted() {
	m.ClaimsSubmitted.Inc()
}

func (m *Metrics) IncClaimFailures() {
	m.ClaimFailures.Inc()
}
