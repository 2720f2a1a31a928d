package markets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kalshi-arb/engine/pkg/cache"
	"github.com/kalshi-arb/engine/pkg/types"
)

func newTestCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
		Logger:      zap.NewNop(),
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestTickerCache_PutGet(t *testing.T) {
	tc := NewTickerCache(newTestCache(t), time.Minute)

	_, ok := tc.Get("SUB-1")
	assert.False(t, ok)

	tc.Put(types.Market{Ticker: "SUB-1", YesAsk: 0.5})
	// Ristretto's Set is eventually-consistent; give the buffer a beat.
	time.Sleep(10 * time.Millisecond)

	m, ok := tc.Get("SUB-1")
	assert.True(t, ok)
	assert.Equal(t, "SUB-1", m.Ticker)
}

func TestOracleCache_BatchKeyOrderIndependent(t *testing.T) {
	a := BatchKey("model-1", []string{"A", "B", "C"})
	b := BatchKey("model-1", []string{"C", "A", "B"})
	assert.Equal(t, a, b)

	c := BatchKey("model-2", []string{"A", "B", "C"})
	assert.NotEqual(t, a, c)
}

func TestOracleCache_PutGet(t *testing.T) {
	oc := NewOracleCache(newTestCache(t), time.Minute)
	key := BatchKey("model-1", []string{"A", "B"})

	_, ok := oc.Get(key)
	assert.False(t, ok)

	raw := []map[string]any{{"variant": "SUBSET"}}
	oc.Put(key, raw)
	time.Sleep(10 * time.Millisecond)

	cached, ok := oc.Get(key)
	require.True(t, ok)
	assert.Equal(t, raw, cached)
}
