package ingestion

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MarketsIngestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_ingestion_markets_total",
		Help: "Total number of market rows upserted by ingestion.",
	})

	EventsIngestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_ingestion_events_total",
		Help: "Total number of event rows upserted by ingestion.",
	})

	IngestDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kalshi_arb_ingestion_cycle_duration_seconds",
		Help:    "Duration of one full markets+events ingestion cycle.",
		Buckets: prometheus.DefBuckets,
	})

	IngestErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_ingestion_errors_total",
		Help: "Total number of failed ingestion cycles.",
	})
)
