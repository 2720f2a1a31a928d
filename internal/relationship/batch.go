package relationship

import (
	"github.com/kalshi-arb/engine/pkg/types"
)

// MaxMarketsPerBatch keeps each oracle call's context manageable.
const MaxMarketsPerBatch = 40

// batchByEvent groups markets by event ticker; only groups with 2+
// markets can contain an internal relationship.
func batchByEvent(markets []types.Market) [][]types.Market {
	groups := make(map[string][]types.Market)
	for _, m := range markets {
		key := m.EventTicker
		if key == "" {
			key = "__no_event__"
		}
		groups[key] = append(groups[key], m)
	}

	var batches [][]types.Market
	for _, g := range groups {
		if len(g) >= 2 {
			batches = append(batches, g)
		}
	}
	return batches
}

// batchByCategory groups markets by category, chunking large groups to
// MaxMarketsPerBatch.
func batchByCategory(markets []types.Market) [][]types.Market {
	groups := make(map[string][]types.Market)
	for _, m := range markets {
		key := m.Category
		if key == "" {
			key = "__no_category__"
		}
		groups[key] = append(groups[key], m)
	}

	var batches [][]types.Market
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		for i := 0; i < len(group); i += MaxMarketsPerBatch {
			end := i + MaxMarketsPerBatch
			if end > len(group) {
				end = len(group)
			}
			if chunk := group[i:end]; len(chunk) >= 2 {
				batches = append(batches, chunk)
			}
		}
	}
	return batches
}

// batchCrossCategory chunks every market into flat batches, ignoring
// event/category grouping entirely — the infrequent third pass.
func batchCrossCategory(markets []types.Market) [][]types.Market {
	var batches [][]types.Market
	for i := 0; i < len(markets); i += MaxMarketsPerBatch {
		end := i + MaxMarketsPerBatch
		if end > len(markets) {
			end = len(markets)
		}
		if chunk := markets[i:end]; len(chunk) >= 2 {
			batches = append(batches, chunk)
		}
	}
	return batches
}
