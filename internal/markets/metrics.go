package markets

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OracleCacheHitsTotal counts oracle-batch cache hits (an identical
	// batch of tickers was re-submitted within the TTL window).
	OracleCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_oracle_cache_hits_total",
		Help: "Total number of relationship-oracle batch cache hits",
	})

	// OracleCacheMissesTotal counts oracle-batch cache misses.
	OracleCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_oracle_cache_misses_total",
		Help: "Total number of relationship-oracle batch cache misses",
	})

	// TickerCacheHitsTotal counts ticker-metadata cache hits.
	TickerCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_ticker_cache_hits_total",
		Help: "Total number of ticker metadata cache hits",
	})

	// TickerCacheMissesTotal counts ticker-metadata cache misses.
	TickerCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kalshi_arb_ticker_cache_misses_total",
		Help: "Total number of ticker metadata cache misses",
	})
)
