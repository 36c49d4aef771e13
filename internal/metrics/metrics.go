package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "financing_decisions_total",
			Help: "Total number of financing decisions by product and status",
		},
		[]string{"product_type", "status"},
	)

	LedgerCreditsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "financing_ledger_credits_total",
			Help: "Total number of approval credits posted to the ledger",
		},
	)

	LedgerCreditRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "financing_ledger_credit_retries_total",
			Help: "Total number of reconciler retries of pending ledger credits",
		},
	)

	ScoringFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "financing_scoring_failures_total",
			Help: "Total number of scoring source failures or timeouts",
		},
	)

	ScoringDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "financing_scoring_duration_seconds",
			Help: "Duration of scoring source calls in seconds",
		},
	)

	RepaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "financing_repayments_total",
			Help: "Total number of repayment attempts by outcome",
		},
		[]string{"outcome"},
	)
)
