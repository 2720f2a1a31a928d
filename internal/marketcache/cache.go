// Package marketcache holds the single in-memory snapshot of every open
// market, refreshed wholesale by ingestion and read by the relationship
// mapper and detector on every cycle (§5, §9). One writer publishes a
// complete replacement snapshot with a single atomic store; readers
// never observe a partial swap.
package marketcache

import (
	"sync/atomic"

	"github.com/kalshi-arb/engine/pkg/types"
)

// Cache is the atomically-swapped market snapshot. The zero value is not
// usable; construct with New.
type Cache struct {
	snapshot atomic.Pointer[snapshot]
}

type snapshot struct {
	byTicker map[string]*types.Market
}

// New constructs an empty Cache.
func New() *Cache {
	c := &Cache{}
	c.snapshot.Store(&snapshot{byTicker: map[string]*types.Market{}})
	return c
}

// Get returns the current snapshot's Market for ticker, if present. The
// returned pointer is safe to read without locking: the map it came from
// is never mutated after publication.
func (c *Cache) Get(ticker string) (*types.Market, bool) {
	snap := c.snapshot.Load()
	m, ok := snap.byTicker[ticker]
	return m, ok
}

// All returns every Market in the current snapshot. The slice is a fresh
// copy of pointers; mutating the slice does not affect the cache.
func (c *Cache) All() []*types.Market {
	snap := c.snapshot.Load()
	out := make([]*types.Market, 0, len(snap.byTicker))
	for _, m := range snap.byTicker {
		out = append(out, m)
	}
	return out
}

// Len reports the number of markets in the current snapshot.
func (c *Cache) Len() int {
	return len(c.snapshot.Load().byTicker)
}

// Swap builds a fresh snapshot from markets and atomically publishes it,
// replacing whatever the cache held before. Ingestion calls this once per
// poll cycle (§4.2) after a full fetch, not incrementally, so readers
// always see an internally-consistent cross-market view.
func (c *Cache) Swap(markets []types.Market) {
	byTicker := make(map[string]*types.Market, len(markets))
	for i := range markets {
		m := markets[i]
		byTicker[m.Ticker] = &m
	}
	c.snapshot.Store(&snapshot{byTicker: byTicker})
}
