package markets

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/kalshi-arb/engine/pkg/cache"
)

// OracleCache deduplicates relationship-oracle calls: if the mapper is
// asked to scan the same set of tickers under the same model within the
// TTL window, it reuses the prior raw response instead of spending
// another oracle call (§9 ambient stack; not mandated by spec.md, but
// the natural complement to the oracle already being the slowest, most
// expensive step in a discovery pass).
type OracleCache struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewOracleCache constructs an OracleCache with the given TTL.
func NewOracleCache(c cache.Cache, ttl time.Duration) *OracleCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &OracleCache{cache: c, ttl: ttl}
}

// BatchKey derives a stable cache key from a model name and the set of
// tickers in a batch, order-independent so two submissions of the same
// markets in a different slice order still hit the same entry.
func BatchKey(model string, tickers []string) string {
	sorted := append([]string(nil), tickers...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(model + "|" + strings.Join(sorted, ",")))
	return "oracle:" + hex.EncodeToString(sum[:])
}

// Get returns the cached raw oracle response for key, if present.
func (oc *OracleCache) Get(key string) ([]map[string]any, bool) {
	if oc.cache == nil {
		return nil, false
	}
	v, ok := oc.cache.Get(key)
	if !ok {
		OracleCacheMissesTotal.Inc()
		return nil, false
	}
	raw, ok := v.([]map[string]any)
	if !ok {
		return nil, false
	}
	OracleCacheHitsTotal.Inc()
	return raw, true
}

// Put caches a raw oracle response under key.
func (oc *OracleCache) Put(key string, raw []map[string]any) {
	if oc.cache == nil {
		return
	}
	oc.cache.Set(key, raw, oc.ttl)
}
