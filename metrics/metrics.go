// Package metrics holds the Prometheus collectors of the loan service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LoanActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "equipment_loan_actions_total",
		Help: "Loan actions by action and outcome (ok, validation, conflict, concurrency, error).",
	},
		[]string{"action", "outcome"},
	)

	ConcurrencyConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "equipment_loan_concurrency_conflicts_total",
		Help: "Writes rejected because the stored loan version had moved on.",
	})

	DerivationWarningsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "equipment_loan_derivation_warnings_total",
		Help: "Tolerated bad input found while deriving status, due date or fine.",
	},
		[]string{"code"},
	)

	FineRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "equipment_loan_fine_runs_total",
		Help: "Fine recomputation runs by result.",
	},
		[]string{"result"},
	)

	FineLoansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "equipment_loan_fine_loans_total",
		Help: "Loans visited by the fine recomputation by result (updated, skipped, failed).",
	},
		[]string{"result"},
	)

	FineRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "equipment_loan_fine_run_duration_seconds",
		Help:    "Wall time of one fine recomputation run.",
		Buckets: prometheus.DefBuckets,
	})
)
