package execution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OpportunitiesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_execution_opportunities_received_total",
		Help: "Total number of opportunities handed to the executor.",
	})

	OpportunitiesExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kalshi_arb_execution_opportunities_executed_total",
		Help: "Opportunities that reached FILLED, by signal.",
	}, []string{"signal"})

	OpportunitiesSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kalshi_arb_execution_opportunities_skipped_total",
		Help: "Opportunities the executor declined to trade, by reason.",
	}, []string{"reason"})

	ExecutionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kalshi_arb_execution_duration_seconds",
		Help:    "Duration of one opportunity execution attempt.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 35, 60},
	})

	ExecutionErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_execution_errors_total",
		Help: "Total number of execution errors.",
	})

	ExecutionErrorsByType = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kalshi_arb_execution_errors_by_type_total",
		Help: "Execution errors classified by kind.",
	}, []string{"error_type"})

	LegFillResultTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kalshi_arb_execution_leg_fill_result_total",
		Help: "Per-leg fill outcome (filled, timeout, canceled), by leg index.",
	}, []string{"leg", "result"})

	FillWaitDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kalshi_arb_execution_fill_wait_duration_seconds",
		Help:    "Time spent polling for a single leg's fill.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 15, 20, 30},
	})

	ResidualsAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_execution_residuals_accepted_total",
		Help: "Two-leg trades where leg 1 filled but leg 2 did not, leaving a directional residual.",
	})
)
