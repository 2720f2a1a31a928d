package detector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DetectionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kalshi_arb_detector_cycle_duration_seconds",
		Help:    "Time spent evaluating every active relationship in one detection cycle.",
		Buckets: prometheus.DefBuckets,
	})

	OpportunitiesDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_opportunities_detected_total",
		Help: "Opportunities that passed the profitability gate and the minimum score threshold.",
	})

	OpportunitiesRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kalshi_arb_opportunities_rejected_total",
		Help: "Candidate opportunities rejected, by reason.",
	}, []string{"reason"})

	OpportunityScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kalshi_arb_opportunity_score",
		Help:    "Score distribution of detected opportunities.",
		Buckets: []float64{0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1},
	})
)
