package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/kalshi-arb/engine/internal/detector"
	"github.com/kalshi-arb/engine/pkg/types"
)

// MockExchangeClient is an in-memory fake covering every interface the
// engine's packages carve out of exchange.Client (ingestion, portfolio,
// execution), so one fake can back tests across packages without a live
// endpoint.
type MockExchangeClient struct {
	mu sync.Mutex

	Markets   []types.Market
	Events    []types.Event
	Balance   float64
	Positions []types.Position
	Fills     []types.Fill

	orders        map[string]types.OrderResponse
	orderIDSeq    int
	PlaceOrderErr error
	GetOrderErr   error
}

// NewMockExchangeClient constructs an empty MockExchangeClient.
func NewMockExchangeClient() *MockExchangeClient {
	return &MockExchangeClient{orders: make(map[string]types.OrderResponse)}
}

func (m *MockExchangeClient) GetMarkets(ctx context.Context, status, cursor string) (types.MarketPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return types.MarketPage{Markets: m.Markets}, nil
}

func (m *MockExchangeClient) GetEvents(ctx context.Context, status, cursor string) (types.EventPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return types.EventPage{Events: m.Events}, nil
}

func (m *MockExchangeClient) GetBalance(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Balance, nil
}

func (m *MockExchangeClient) GetPositions(ctx context.Context, cursor string) (types.PositionsResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return types.PositionsResponse{Positions: m.Positions}, nil
}

func (m *MockExchangeClient) PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PlaceOrderErr != nil {
		return types.OrderResponse{}, m.PlaceOrderErr
	}
	m.orderIDSeq++
	orderID := fmt.Sprintf("mock-order-%d", m.orderIDSeq)
	resp := types.OrderResponse{
		OrderID: orderID,
		Ticker:  req.Ticker,
		Status:  "resting",
		Action:  req.Action,
		Side:    req.Side,
		Count:   req.Count,
	}
	m.orders[orderID] = resp
	return resp, nil
}

func (m *MockExchangeClient) GetOrder(ctx context.Context, orderID string) (types.OrderResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetOrderErr != nil {
		return types.OrderResponse{}, m.GetOrderErr
	}
	resp, ok := m.orders[orderID]
	if !ok {
		return types.OrderResponse{}, fmt.Errorf("unknown order %s", orderID)
	}
	return resp, nil
}

func (m *MockExchangeClient) CancelOrder(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp, ok := m.orders[orderID]
	if !ok {
		return fmt.Errorf("unknown order %s", orderID)
	}
	resp.Status = "canceled"
	m.orders[orderID] = resp
	return nil
}

func (m *MockExchangeClient) GetFills(ctx context.Context, cursor string) (types.FillsResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return types.FillsResponse{Fills: m.Fills}, nil
}

// SetOrderFilled marks a previously placed order as fully or partially
// filled, for tests driving the executor's fill-poll loop.
func (m *MockExchangeClient) SetOrderFilled(orderID string, filledCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp, ok := m.orders[orderID]
	if !ok {
		return
	}
	resp.FilledCount = filledCount
	resp.Status = "executed"
	m.orders[orderID] = resp
}

// MockOracle is a scripted relationship.Oracle: each call to Complete
// returns the next response in Responses, looping on the last one once
// exhausted.
type MockOracle struct {
	mu        sync.Mutex
	Responses []string
	calls     int
	Err       error
}

func NewMockOracle(responses ...string) *MockOracle {
	return &MockOracle{Responses: responses}
}

func (o *MockOracle) Complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return "", o.Err
	}
	if len(o.Responses) == 0 {
		return "[]", nil
	}
	idx := o.calls
	if idx >= len(o.Responses) {
		idx = len(o.Responses) - 1
	}
	o.calls++
	return o.Responses[idx], nil
}

// MockStorage is a full in-memory implementation of storage.Storage
// (internal/storage.Storage), used wherever a package test needs a
// real-enough persistence layer without a database.
type MockStorage struct {
	mu sync.Mutex

	Markets        map[string]types.Market
	Events         map[string]types.Event
	Snapshots      []types.PriceSnapshot
	Relationships  map[string]types.Relationship
	Opportunities  map[string]*detector.Opportunity
	Trades         map[string]types.Trade
	PortfolioState *types.PortfolioState
}

func NewMockStorage() *MockStorage {
	return &MockStorage{
		Markets:       make(map[string]types.Market),
		Events:        make(map[string]types.Event),
		Relationships: make(map[string]types.Relationship),
		Opportunities: make(map[string]*detector.Opportunity),
		Trades:        make(map[string]types.Trade),
	}
}

func (s *MockStorage) UpsertMarkets(ctx context.Context, markets []types.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range markets {
		s.Markets[m.Ticker] = m
	}
	return nil
}

func (s *MockStorage) UpsertEvents(ctx context.Context, events []types.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		s.Events[e.EventTicker] = e
	}
	return nil
}

func (s *MockStorage) InsertPriceSnapshot(ctx context.Context, snap types.PriceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Snapshots = append(s.Snapshots, snap)
	return nil
}

func (s *MockStorage) UpsertRelationship(ctx context.Context, rel *types.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.Relationships {
		if existing.DedupKey() == rel.DedupKey() {
			rel.ID = id
			s.Relationships[id] = *rel
			return nil
		}
	}
	s.Relationships[rel.ID] = *rel
	return nil
}

func (s *MockStorage) ActiveRelationships(ctx context.Context) ([]types.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Relationship, 0, len(s.Relationships))
	for _, rel := range s.Relationships {
		for _, t := range rel.Tickers {
			if m, ok := s.Markets[t]; ok && m.IsOpen() {
				out = append(out, rel)
				break
			}
		}
	}
	return out, nil
}

func (s *MockStorage) AllRelationships(ctx context.Context) ([]types.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Relationship, 0, len(s.Relationships))
	for _, rel := range s.Relationships {
		out = append(out, rel)
	}
	return out, nil
}

func (s *MockStorage) DeleteStaleRelationships(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, rel := range s.Relationships {
		stale := true
		for _, t := range rel.Tickers {
			if m, ok := s.Markets[t]; ok && m.IsOpen() {
				stale = false
				break
			}
		}
		if stale {
			delete(s.Relationships, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MockStorage) CreateOpportunity(ctx context.Context, opp *detector.Opportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Opportunities[opp.ID] = opp
	return nil
}

func (s *MockStorage) UpdateOpportunityStatus(ctx context.Context, id string, status detector.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if opp, ok := s.Opportunities[id]; ok {
		opp.Status = status
	}
	return nil
}

func (s *MockStorage) InsertTrade(ctx context.Context, trade *types.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Trades[trade.ID] = *trade
	return nil
}

func (s *MockStorage) UpdateTrade(ctx context.Context, trade *types.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Trades[trade.ID] = *trade
	return nil
}

func (s *MockStorage) TradesForOpportunity(ctx context.Context, opportunityID string) ([]types.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Trade
	for _, t := range s.Trades {
		if t.OpportunityID == opportunityID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *MockStorage) GetPortfolioState(ctx context.Context) (*types.PortfolioState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PortfolioState == nil {
		return &types.PortfolioState{}, nil
	}
	cp := *s.PortfolioState
	return &cp, nil
}

func (s *MockStorage) SavePortfolioState(ctx context.Context, state *types.PortfolioState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *state
	s.PortfolioState = &cp
	return nil
}

func (s *MockStorage) Close() error { return nil }
