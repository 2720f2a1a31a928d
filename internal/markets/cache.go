// Package markets provides two TTL cache-aside wrappers over
// pkg/cache.Cache (the teacher's Ristretto cache-aside idiom,
// internal/markets/cache.go, originally built for CLOB tick-size
// metadata lookups): a ticker->Market lookup cache for CLI/HTTP callers
// that don't need the detector's atomically-swapped hot-path snapshot
// (internal/marketcache.Cache), and an oracle-batch response cache that
// lets the relationship mapper skip re-querying the oracle for a batch
// of tickers it already has a fresh answer for (§4.3, §9 ambient stack).
package markets

import (
	"fmt"
	"time"

	"github.com/kalshi-arb/engine/pkg/cache"
	"github.com/kalshi-arb/engine/pkg/types"
)

// TickerCache is a TTL cache-aside lookup from ticker to the last Market
// record a caller fetched for it. Unlike internal/marketcache.Cache (a
// single atomically-swapped full-universe snapshot refreshed once per
// ingestion cycle), this is a narrow, per-entry TTL cache meant for
// CLI/HTTP request paths that look up one or a few tickers at a time and
// are content with a slightly stale answer between ingestion cycles.
type TickerCache struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewTickerCache constructs a TickerCache with the given TTL.
func NewTickerCache(c cache.Cache, ttl time.Duration) *TickerCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &TickerCache{cache: c, ttl: ttl}
}

// Get returns the cached Market for ticker, if present and unexpired.
func (tc *TickerCache) Get(ticker string) (types.Market, bool) {
	if tc.cache == nil {
		return types.Market{}, false
	}
	v, ok := tc.cache.Get(tickerCacheKey(ticker))
	if !ok {
		TickerCacheMissesTotal.Inc()
		return types.Market{}, false
	}
	m, ok := v.(types.Market)
	if !ok {
		return types.Market{}, false
	}
	TickerCacheHitsTotal.Inc()
	return m, true
}

// Put caches market under its ticker.
func (tc *TickerCache) Put(market types.Market) {
	if tc.cache == nil {
		return
	}
	tc.cache.Set(tickerCacheKey(market.Ticker), market, tc.ttl)
}

func tickerCacheKey(ticker string) string {
	return fmt.Sprintf("ticker:%s", ticker)
}
