// Package testutil collects fixtures and in-memory fakes shared by the
// engine's package test suites (§9 ambient stack: test tooling follows
// the teacher's hand-rolled fixture + fake style rather than a mocking
// framework).
package testutil

import (
	"time"

	"github.com/kalshi-arb/engine/internal/detector"
	"github.com/kalshi-arb/engine/pkg/types"
)

// NewTestMarket builds an open binary market fixture with a tight,
// internally-consistent quote.
func NewTestMarket(ticker, eventTicker, category string) types.Market {
	now := time.Now()
	return types.Market{
		Ticker:       ticker,
		EventTicker:  eventTicker,
		Title:        "Test market " + ticker,
		Category:     category,
		Status:       types.MarketStatusOpen,
		YesAsk:       0.52,
		YesBid:       0.48,
		NoAsk:        0.52,
		NoBid:        0.48,
		Volume:       1000,
		OpenInterest: 500,
		CloseTime:    now.Add(30 * 24 * time.Hour),
		LastUpdated:  now,
	}
}

// NewTestEvent builds an Event fixture grouping the given market tickers.
func NewTestEvent(eventTicker, category string, marketTickers ...string) types.Event {
	return types.Event{
		EventTicker:   eventTicker,
		Title:         "Test event " + eventTicker,
		Category:      category,
		MarketTickers: marketTickers,
		LastUpdated:   time.Now(),
	}
}

// NewTestRelationship builds a Relationship fixture of the given variant
// over tickers.
func NewTestRelationship(id string, variant types.Variant, confidence float64, tickers ...string) *types.Relationship {
	now := time.Now()
	return &types.Relationship{
		ID:            id,
		Variant:       variant,
		Tickers:       tickers,
		Description:   "test relationship",
		Confidence:    confidence,
		CreatedAt:     now,
		LastValidated: now,
	}
}

// NewTestOpportunity builds an Opportunity fixture with a single
// buy/sell leg pair, ready for the executor's two-leg branch.
func NewTestOpportunity(relationshipID string) *detector.Opportunity {
	return detector.NewOpportunity(relationshipID, detector.SignalBuySupersetSellSubset, 0.1, 0.9, []detector.Leg{
		{Ticker: "SUPER-A", Action: "buy", TargetPrice: 0.40, Depth: 50},
		{Ticker: "SUB-A", Action: "sell", TargetPrice: 0.50, Depth: 50},
	})
}

// NewTestPartitionOpportunity builds a multi-leg PARTITION Opportunity
// fixture over the given tickers.
func NewTestPartitionOpportunity(relationshipID string, tickers ...string) *detector.Opportunity {
	legs := make([]detector.Leg, len(tickers))
	for i, t := range tickers {
		legs[i] = detector.Leg{Ticker: t, Action: "buy", TargetPrice: 0.30, Depth: 50}
	}
	return detector.NewOpportunity(relationshipID, detector.SignalBuyAllPartition, 0.1, 0.9, legs)
}

// NewTestTrade builds a pending Trade fixture for opportunityID.
func NewTestTrade(opportunityID, ticker string) *types.Trade {
	now := time.Now()
	return &types.Trade{
		ID:            "trade-" + ticker,
		OpportunityID: opportunityID,
		Ticker:        ticker,
		Side:          types.SideYes,
		Action:        types.ActionBuy,
		Price:         0.45,
		Count:         10,
		Status:        types.OrderStatusPending,
		PlacedAt:      now,
		UpdatedAt:     now,
	}
}
