// Package metrics holds Prometheus instrumentation for the expense domain.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds expense lifecycle counters and timings.
type Metrics struct {
	Submitted        prometheus.Counter
	Approved         prometheus.Counter
	Rejected         prometheus.Counter
	Overridden       prometheus.Counter
	ZeroApprover     prometheus.Counter
	DecisionDuration prometheus.Histogram
}

// New creates and registers all expense metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		Submitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "expensio_expenses_submitted_total",
			Help: "Total number of expenses submitted",
		}),
		Approved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "expensio_expenses_approved_total",
			Help: "Total number of expenses reaching approved status",
		}),
		Rejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "expensio_expenses_rejected_total",
			Help: "Total number of expenses reaching rejected status",
		}),
		Overridden: promauto.NewCounter(prometheus.CounterOpts{
			Name: "expensio_expenses_overridden_total",
			Help: "Total number of administrative overrides applied",
		}),
		ZeroApprover: promauto.NewCounter(prometheus.CounterOpts{
			Name: "expensio_expenses_zero_approver_total",
			Help: "Total number of submissions whose policy resolved to zero approvers",
		}),
		DecisionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "expensio_expense_decision_duration_seconds",
			Help:    "Wall time from submission to terminal status",
			Buckets: prometheus.ExponentialBuckets(60, 4, 10),
		}),
	}
}
