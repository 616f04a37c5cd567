package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WorkflowsTotal counts workflow runs by workflow name and terminal outcome
	WorkflowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bond_workflows_total",
			Help: "Total number of orchestrated bond workflow runs",
		},
		[]string{"workflow", "outcome"},
	)

	// WorkflowDuration tracks end-to-end workflow duration
	WorkflowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bond_workflow_duration_seconds",
			Help:    "Workflow duration in seconds",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 180, 300},
		},
		[]string{"workflow"},
	)

	// TransactionsSent counts ledger transactions by method and status
	TransactionsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bond_transactions_sent_total",
			Help: "Total number of ledger transactions submitted",
		},
		[]string{"method", "status"},
	)

	// GasUsed tracks gas consumed by confirmed transactions
	GasUsed = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bond_gas_used",
			Help:    "Gas used by confirmed ledger transactions",
			Buckets: []float64{50000, 200000, 500000, 1000000, 4000000, 16000000},
		},
		[]string{"method"},
	)

	// ClaimAttempts tracks how many claim transactions a redemption needed
	ClaimAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bond_redeem_claim_attempts",
			Help:    "Number of claim attempts per redemption",
			Buckets: []float64{1, 2, 3, 5, 10, 20, 30},
		},
	)

	// CoprocessorRequests counts encrypt/decrypt calls by operation and status
	CoprocessorRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bond_coprocessor_requests_total",
			Help: "Total number of coprocessor encrypt/decrypt requests",
		},
		[]string{"operation", "status"},
	)

	// RefreshDuration tracks read-model refresh duration
	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bond_summary_refresh_duration_seconds",
			Help:    "Duration of full bond summary refreshes",
			Buckets: prometheus.DefBuckets,
		},
	)

	// SnapshotBonds tracks the size of the published read-model snapshot
	SnapshotBonds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bond_snapshot_bonds",
			Help: "Number of bonds in the last published summary snapshot",
		},
	)
)
