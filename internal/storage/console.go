package storage

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kalshi-arb/engine/internal/detector"
	"github.com/kalshi-arb/engine/pkg/types"
)

// ConsoleStorage is an in-memory Storage with no database round trip. It
// prints a banner for each new relationship and opportunity and logs
// price snapshots and trade inserts; other mutations are silent. It exists for
// dry-run and local-debug runs (§9: a Postgres instance isn't required
// to try the engine end to end), not for production persistence.
type ConsoleStorage struct {
	logger *zap.Logger

	mu            sync.Mutex
	markets       map[string]types.Market
	events        map[string]types.Event
	relationships map[string]types.Relationship
	opportunities map[string]*detector.Opportunity
	trades        map[string]types.Trade
	portfolio     types.PortfolioState
}

// NewConsoleStorage creates a new console storage.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{
		logger:        logger,
		markets:       make(map[string]types.Market),
		events:        make(map[string]types.Event),
		relationships: make(map[string]types.Relationship),
		opportunities: make(map[string]*detector.Opportunity),
		trades:        make(map[string]types.Trade),
	}
}

func (c *ConsoleStorage) UpsertMarkets(ctx context.Context, markets []types.Market) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range markets {
		c.markets[m.Ticker] = m
	}
	return nil
}

func (c *ConsoleStorage) UpsertEvents(ctx context.Context, events []types.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range events {
		c.events[e.EventTicker] = e
	}
	return nil
}

func (c *ConsoleStorage) InsertPriceSnapshot(ctx context.Context, snap types.PriceSnapshot) error {
	c.logger.Debug("price-snapshot",
		zap.String("ticker", snap.MarketTicker),
		zap.Float64("yes_ask", snap.YesAsk),
		zap.Float64("yes_bid", snap.YesBid))
	return nil
}

func (c *ConsoleStorage) UpsertRelationship(ctx context.Context, rel *types.Relationship) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := rel.DedupKey()
	if existing, ok := c.relationships[key]; ok {
		existing.Confidence = rel.Confidence
		existing.Reasoning = rel.Reasoning
		existing.LastValidated = rel.LastValidated
		c.relationships[key] = existing
		return nil
	}
	c.relationships[key] = *rel
	fmt.Printf("[relationship] %s %s %v (confidence=%.2f)\n", rel.Variant, rel.Description, rel.Tickers, rel.Confidence)
	return nil
}

func (c *ConsoleStorage) ActiveRelationships(ctx context.Context) ([]types.Relationship, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []types.Relationship
	for _, r := range c.relationships {
		if c.hasOpenMarket(r.Tickers) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (c *ConsoleStorage) AllRelationships(ctx context.Context) ([]types.Relationship, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Relationship, 0, len(c.relationships))
	for _, r := range c.relationships {
		out = append(out, r)
	}
	return out, nil
}

func (c *ConsoleStorage) DeleteStaleRelationships(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key, r := range c.relationships {
		if !c.hasOpenMarket(r.Tickers) {
			delete(c.relationships, key)
			n++
		}
	}
	return n, nil
}

// hasOpenMarket must be called with c.mu held.
func (c *ConsoleStorage) hasOpenMarket(tickers []string) bool {
	for _, t := range tickers {
		if m, ok := c.markets[t]; ok && m.IsOpen() {
			return true
		}
	}
	return false
}

// CreateOpportunity pretty-prints a detected opportunity to console.
func (c *ConsoleStorage) CreateOpportunity(ctx context.Context, opp *detector.Opportunity) error {
	c.mu.Lock()
	c.opportunities[opp.ID] = opp
	c.mu.Unlock()

	fmt.Println("\n" + "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("ARBITRAGE OPPORTUNITY DETECTED\n")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("ID:         %s\n", opp.ID[:8])
	fmt.Printf("Signal:     %s\n", opp.Signal)
	fmt.Printf("Magnitude:  %.4f\n", opp.Magnitude)
	fmt.Printf("Confidence: %.2f\n", opp.Confidence)
	fmt.Printf("Score:      %.4f\n", opp.Score)
	fmt.Printf("Time:       %s\n", opp.DetectedAt.Format("2006-01-02 15:04:05"))
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("LEGS (%d)\n", len(opp.Legs))
	for _, leg := range opp.Legs {
		fmt.Printf("  %-4s %-16s @ %.4f (depth %.0f)\n", leg.Action, leg.Ticker, leg.TargetPrice, leg.Depth)
	}
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	return nil
}

func (c *ConsoleStorage) UpdateOpportunityStatus(ctx context.Context, id string, status detector.Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if opp, ok := c.opportunities[id]; ok {
		opp.Status = status
	}
	return nil
}

func (c *ConsoleStorage) InsertTrade(ctx context.Context, trade *types.Trade) error {
	c.mu.Lock()
	c.trades[trade.ID] = *trade
	c.mu.Unlock()
	c.logger.Info("trade-placed",
		zap.String("ticker", trade.Ticker),
		zap.String("action", string(trade.Action)),
		zap.String("side", string(trade.Side)),
		zap.Float64("price", trade.Price),
		zap.Int("count", trade.Count))
	return nil
}

func (c *ConsoleStorage) UpdateTrade(ctx context.Context, trade *types.Trade) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trades[trade.ID] = *trade
	return nil
}

func (c *ConsoleStorage) TradesForOpportunity(ctx context.Context, opportunityID string) ([]types.Trade, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []types.Trade
	for _, t := range c.trades {
		if t.OpportunityID == opportunityID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (c *ConsoleStorage) GetPortfolioState(ctx context.Context) (*types.PortfolioState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := c.portfolio
	return &state, nil
}

func (c *ConsoleStorage) SavePortfolioState(ctx context.Context, state *types.PortfolioState) error {
	c.mu.Lock()
	c.portfolio = *state
	c.mu.Unlock()
	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}
