package execution

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kalshi-arb/engine/internal/detector"
	"github.com/kalshi-arb/engine/pkg/types"
)

type fakeExchange struct {
	mu        sync.Mutex
	placed    []types.OrderRequest
	cancelled []string
	placeErr  error
	fillsAt   map[string]int // ticker -> FilledCount returned by GetOrder
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{fillsAt: make(map[string]int)}
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.placeErr != nil {
		return types.OrderResponse{}, f.placeErr
	}
	f.placed = append(f.placed, req)
	return types.OrderResponse{
		OrderID: req.Ticker + "-order",
		Ticker:  req.Ticker,
		Status:  "resting",
		Action:  req.Action,
		Side:    req.Side,
		Count:   req.Count,
	}, nil
}

func (f *fakeExchange) GetOrder(ctx context.Context, orderID string) (types.OrderResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticker := orderID[:len(orderID)-len("-order")]
	filled := f.fillsAt[ticker]
	status := "resting"
	if filled > 0 {
		status = "executed"
	}
	return types.OrderResponse{OrderID: orderID, Ticker: ticker, Status: status, FilledCount: filled}, nil
}

func (f *fakeExchange) CancelOrder(ctx context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

type fakeStore struct {
	mu        sync.Mutex
	trades    map[string]*types.Trade
	oppStatus map[string]detector.Status
}

func newFakeStore() *fakeStore {
	return &fakeStore{trades: make(map[string]*types.Trade), oppStatus: make(map[string]detector.Status)}
}

func (f *fakeStore) InsertTrade(ctx context.Context, trade *types.Trade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *trade
	f.trades[trade.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateTrade(ctx context.Context, trade *types.Trade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *trade
	f.trades[trade.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateOpportunityStatus(ctx context.Context, id string, status detector.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.oppStatus[id] = status
	return nil
}

type fakeGuard struct {
	canTrade    bool
	size        int
	recordCalls int
}

func (f *fakeGuard) CanTrade() bool { return f.canTrade }

func (f *fakeGuard) CalculatePositionSize(opp *detector.Opportunity) int { return f.size }

func (f *fakeGuard) RecordFill(ctx context.Context, action types.Action, price float64, count int, fees float64) error {
	f.recordCalls++
	return nil
}

func twoLegOpportunity() *detector.Opportunity {
	return detector.NewOpportunity("rel1", detector.SignalBuySupersetSellSubset, 0.05, 0.9, []detector.Leg{
		{Ticker: "SUP", Action: "buy", TargetPrice: 0.50, Depth: 20},
		{Ticker: "SUB", Action: "sell", TargetPrice: 0.65, Depth: 20},
	})
}

func partitionOpportunity() *detector.Opportunity {
	return detector.NewOpportunity("rel2", detector.SignalBuyAllPartition, 0.05, 0.9, []detector.Leg{
		{Ticker: "A", Action: "buy", TargetPrice: 0.30, Depth: 20},
		{Ticker: "B", Action: "buy", TargetPrice: 0.30, Depth: 20},
		{Ticker: "C", Action: "buy", TargetPrice: 0.30, Depth: 20},
	})
}

func newTestExecutor(ex *fakeExchange, st *fakeStore, g *fakeGuard) *Executor {
	return New(Config{
		Exchange:        ex,
		Store:           st,
		Guard:           g,
		Logger:          zap.NewNop(),
		LegWaitTimeout:  80 * time.Millisecond,
		SettleWindow:    20 * time.Millisecond,
		FillPollInitial: 5 * time.Millisecond,
		FillPollMax:     10 * time.Millisecond,
		FillPollMult:    1.2,
	})
}

func TestExecute_RefusesWhenCannotTrade(t *testing.T) {
	ex, st, g := newFakeExchange(), newFakeStore(), &fakeGuard{canTrade: false, size: 10}
	exec := newTestExecutor(ex, st, g)

	filled, err := exec.Execute(context.Background(), twoLegOpportunity())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if filled {
		t.Fatal("expected refusal, got filled")
	}
	if len(ex.placed) != 0 {
		t.Fatal("expected no orders placed on refusal")
	}
	if len(st.oppStatus) != 0 {
		t.Fatal("expected no opportunity status transition on refusal")
	}
}

func TestExecute_RefusesWhenZeroSize(t *testing.T) {
	ex, st, g := newFakeExchange(), newFakeStore(), &fakeGuard{canTrade: true, size: 0}
	exec := newTestExecutor(ex, st, g)

	filled, err := exec.Execute(context.Background(), twoLegOpportunity())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if filled {
		t.Fatal("expected refusal, got filled")
	}
	if len(ex.placed) != 0 {
		t.Fatal("expected no orders placed on zero-size refusal")
	}
}

func TestExecute_TwoLeg_BothFill(t *testing.T) {
	ex, st, g := newFakeExchange(), newFakeStore(), &fakeGuard{canTrade: true, size: 10}
	ex.fillsAt["SUP"] = 10
	ex.fillsAt["SUB"] = 10
	exec := newTestExecutor(ex, st, g)

	opp := twoLegOpportunity()
	filled, err := exec.Execute(context.Background(), opp)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !filled {
		t.Fatal("expected both legs to fill")
	}
	if st.oppStatus[opp.ID] != detector.StatusFilled {
		t.Errorf("expected opportunity status FILLED, got %s", st.oppStatus[opp.ID])
	}
	if g.recordCalls != 2 {
		t.Errorf("expected 2 RecordFill calls, got %d", g.recordCalls)
	}
	if len(ex.placed) != 2 {
		t.Errorf("expected 2 orders placed, got %d", len(ex.placed))
	}
}

func TestExecute_TwoLeg_Leg1NeverFills(t *testing.T) {
	ex, st, g := newFakeExchange(), newFakeStore(), &fakeGuard{canTrade: true, size: 10}
	exec := newTestExecutor(ex, st, g)

	opp := twoLegOpportunity()
	filled, err := exec.Execute(context.Background(), opp)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if filled {
		t.Fatal("expected leg 1 timeout to fail the opportunity")
	}
	if st.oppStatus[opp.ID] != detector.StatusFailed {
		t.Errorf("expected opportunity status FAILED, got %s", st.oppStatus[opp.ID])
	}
	if len(ex.placed) != 1 {
		t.Errorf("expected only leg 1 placed, got %d orders", len(ex.placed))
	}
	if len(ex.cancelled) != 1 {
		t.Errorf("expected leg 1 cancelled, got %d cancellations", len(ex.cancelled))
	}
}

func TestExecute_TwoLeg_Leg2ResidualAccepted(t *testing.T) {
	ex, st, g := newFakeExchange(), newFakeStore(), &fakeGuard{canTrade: true, size: 10}
	ex.fillsAt["SUP"] = 10
	exec := newTestExecutor(ex, st, g)

	opp := twoLegOpportunity()
	filled, err := exec.Execute(context.Background(), opp)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if filled {
		t.Fatal("expected leg 2 timeout to still fail the opportunity")
	}
	if st.oppStatus[opp.ID] != detector.StatusFailed {
		t.Errorf("expected opportunity status FAILED, got %s", st.oppStatus[opp.ID])
	}
	if len(ex.placed) != 2 {
		t.Errorf("expected both legs placed, got %d", len(ex.placed))
	}
	// leg 1 is not cancelled (it filled); only leg 2 is.
	if len(ex.cancelled) != 1 || ex.cancelled[0] != "SUB-order" {
		t.Errorf("expected only leg 2 cancelled, got %v", ex.cancelled)
	}
	if g.recordCalls != 1 {
		t.Errorf("expected exactly 1 RecordFill call for the filled leg, got %d", g.recordCalls)
	}
}

func TestExecute_MultiLeg_AllFill(t *testing.T) {
	ex, st, g := newFakeExchange(), newFakeStore(), &fakeGuard{canTrade: true, size: 10}
	ex.fillsAt["A"] = 10
	ex.fillsAt["B"] = 10
	ex.fillsAt["C"] = 10
	exec := newTestExecutor(ex, st, g)

	opp := partitionOpportunity()
	filled, err := exec.Execute(context.Background(), opp)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !filled {
		t.Fatal("expected all three legs to fill")
	}
	if g.recordCalls != 3 {
		t.Errorf("expected 3 RecordFill calls, got %d", g.recordCalls)
	}
	if len(ex.cancelled) != 0 {
		t.Errorf("expected no cancellations when every leg fills, got %v", ex.cancelled)
	}
}

func TestExecute_MultiLeg_OneLegMissingCancelsUnfilled(t *testing.T) {
	ex, st, g := newFakeExchange(), newFakeStore(), &fakeGuard{canTrade: true, size: 10}
	ex.fillsAt["A"] = 10
	ex.fillsAt["B"] = 10
	// C never fills.
	exec := newTestExecutor(ex, st, g)

	opp := partitionOpportunity()
	filled, err := exec.Execute(context.Background(), opp)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if filled {
		t.Fatal("expected partial fill across legs to fail the whole partition trade")
	}
	if st.oppStatus[opp.ID] != detector.StatusFailed {
		t.Errorf("expected opportunity status FAILED, got %s", st.oppStatus[opp.ID])
	}
	// A and B filled (terminal), so only the unfilled leg C is cancelled.
	if len(ex.cancelled) != 1 || ex.cancelled[0] != "C-order" {
		t.Errorf("expected only the unfilled leg C cancelled, got %v", ex.cancelled)
	}
	if g.recordCalls != 0 {
		t.Errorf("expected no RecordFill calls on a failed partition trade, got %d", g.recordCalls)
	}
}

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }

func TestExecute_DryRun_SyntheticTradeIDs(t *testing.T) {
	ex, st, g := newFakeExchange(), newFakeStore(), &fakeGuard{canTrade: true, size: 10}
	clock := fixedClock{t: time.UnixMilli(1700000000000)}
	exec := New(Config{
		Exchange: ex, Store: st, Guard: g, Logger: zap.NewNop(),
		DryRun: true, Clock: clock,
	})

	opp := twoLegOpportunity()
	filled, err := exec.Execute(context.Background(), opp)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !filled {
		t.Fatal("expected dry-run execution to report filled")
	}
	if len(ex.placed) != 0 {
		t.Fatal("expected dry-run mode to never call the exchange")
	}
	for _, trade := range st.trades {
		if trade.Status != types.OrderStatusDryRun {
			t.Errorf("expected dry_run status, got %s", trade.Status)
		}
		want := "DRY-1700000000000"
		if trade.ExchangeOrder != want {
			t.Errorf("expected synthetic id %s, got %s", want, trade.ExchangeOrder)
		}
	}
}
