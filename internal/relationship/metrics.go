package relationship

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DiscoveryDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kalshi_arb_relationship_discovery_duration_seconds",
		Help:    "Duration of one relationship-discovery scheduling pass, by pass name.",
		Buckets: prometheus.DefBuckets,
	}, []string{"pass"})

	RelationshipsDiscoveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kalshi_arb_relationships_discovered_total",
		Help: "Relationships discovered or re-validated, by variant.",
	}, []string{"variant"})

	OracleErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_relationship_oracle_errors_total",
		Help: "Oracle calls that failed or returned unparseable output.",
	})
)
