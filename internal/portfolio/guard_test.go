package portfolio

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kalshi-arb/engine/internal/detector"
	"github.com/kalshi-arb/engine/pkg/types"
)

type fakeExchange struct {
	balance   float64
	positions []types.Position
}

func (f *fakeExchange) GetBalance(ctx context.Context) (float64, error) {
	return f.balance, nil
}

func (f *fakeExchange) GetPositions(ctx context.Context, cursor string) (types.PositionsResponse, error) {
	return types.PositionsResponse{Positions: f.positions}, nil
}

type fakeStore struct {
	state *types.PortfolioState
}

func (f *fakeStore) GetPortfolioState(ctx context.Context) (*types.PortfolioState, error) {
	if f.state == nil {
		return nil, nil
	}
	cp := *f.state
	return &cp, nil
}

func (f *fakeStore) SavePortfolioState(ctx context.Context, state *types.PortfolioState) error {
	cp := *state
	f.state = &cp
	return nil
}

func newTestGuard(t *testing.T, balance float64) (*Guard, *fakeExchange, *fakeStore) {
	t.Helper()
	ex := &fakeExchange{balance: balance}
	st := &fakeStore{}
	g := New(Config{
		Exchange:             ex,
		Store:                st,
		Logger:               zap.NewNop(),
		MaxRiskPct:           0.02,
		MaxDailyLoss:         500,
		MaxOpenPositions:     5,
		MaxContractsPerTrade: 100,
	})
	return g, ex, st
}

func TestCanTrade_DefaultsToTrue(t *testing.T) {
	g, _, _ := newTestGuard(t, 10000)
	if err := g.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !g.CanTrade() {
		t.Fatal("expected CanTrade to be true with fresh state")
	}
}

func TestCanTrade_FalseWhenKillSwitchTripped(t *testing.T) {
	g, _, _ := newTestGuard(t, 10000)
	if err := g.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if err := g.TripKillSwitch(context.Background(), "test"); err != nil {
		t.Fatalf("TripKillSwitch: %v", err)
	}
	if g.CanTrade() {
		t.Fatal("expected CanTrade false after kill switch trip")
	}
}

func TestKillSwitch_OnlyClearedExplicitly(t *testing.T) {
	g, _, _ := newTestGuard(t, 10000)
	ctx := context.Background()
	if err := g.TripKillSwitch(ctx, "manual"); err != nil {
		t.Fatalf("TripKillSwitch: %v", err)
	}
	if err := g.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if g.CanTrade() {
		t.Fatal("a Sync must not clear a tripped kill switch on its own")
	}
	if err := g.DeactivateKillSwitch(ctx); err != nil {
		t.Fatalf("DeactivateKillSwitch: %v", err)
	}
	if !g.CanTrade() {
		t.Fatal("expected CanTrade true after explicit deactivation")
	}
}

func TestCanTrade_FalseAtDailyLossFloor(t *testing.T) {
	g, _, _ := newTestGuard(t, 10000)
	ctx := context.Background()
	if err := g.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if err := g.RecordFill(ctx, types.ActionBuy, 0, 0, 500); err != nil {
		t.Fatalf("RecordFill: %v", err)
	}
	if g.CanTrade() {
		t.Fatal("expected CanTrade false once daily_pnl <= -max_daily_loss")
	}
}

func TestCanTrade_FalseAtOpenPositionCap(t *testing.T) {
	g, ex, _ := newTestGuard(t, 10000)
	ex.positions = []types.Position{
		{Ticker: "A", Quantity: 1}, {Ticker: "B", Quantity: 1},
		{Ticker: "C", Quantity: 1}, {Ticker: "D", Quantity: 1},
		{Ticker: "E", Quantity: 1},
	}
	if err := g.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if g.CanTrade() {
		t.Fatal("expected CanTrade false at open_positions == max_open_positions")
	}
}

func TestCalculatePositionSize_AllThreeBoundsActive(t *testing.T) {
	g, _, _ := newTestGuard(t, 10000)
	if err := g.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	// risk bound: floor(10000*0.02/0.05) = 4000, but min depth and the
	// hard cap are both tighter.
	opp := &detector.Opportunity{
		Magnitude: 0.05,
		Legs: []detector.Leg{
			{Ticker: "A", Depth: 30},
			{Ticker: "B", Depth: 10},
		},
	}
	if got := g.CalculatePositionSize(opp); got != 10 {
		t.Errorf("expected min-leg-depth bound (10), got %d", got)
	}

	opp.Legs = []detector.Leg{{Ticker: "A", Depth: 9999}, {Ticker: "B", Depth: 9999}}
	if got := g.CalculatePositionSize(opp); got != 100 {
		t.Errorf("expected hard-cap bound (100), got %d", got)
	}
}

func TestCalculatePositionSize_ZeroMagnitudeOrNoLegs(t *testing.T) {
	g, _, _ := newTestGuard(t, 10000)
	if got := g.CalculatePositionSize(&detector.Opportunity{Magnitude: 0, Legs: []detector.Leg{{Depth: 10}}}); got != 0 {
		t.Errorf("expected 0 for zero magnitude, got %d", got)
	}
	if got := g.CalculatePositionSize(&detector.Opportunity{Magnitude: 0.1}); got != 0 {
		t.Errorf("expected 0 for no legs, got %d", got)
	}
}

func TestRecordFill_BuyAndSellSigns(t *testing.T) {
	g, _, _ := newTestGuard(t, 1000)
	ctx := context.Background()
	if err := g.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if err := g.RecordFill(ctx, types.ActionBuy, 0.5, 10, 0.2); err != nil {
		t.Fatalf("RecordFill buy: %v", err)
	}
	want := 1000.0 - (0.5*10 + 0.2)
	if got := g.State().Balance; got != want {
		t.Errorf("balance after buy = %v, want %v", got, want)
	}

	balanceAfterBuy := g.State().Balance
	if err := g.RecordFill(ctx, types.ActionSell, 0.6, 10, 0.2); err != nil {
		t.Fatalf("RecordFill sell: %v", err)
	}
	want = balanceAfterBuy + (0.6*10 - 0.2)
	if got := g.State().Balance; got != want {
		t.Errorf("balance after sell = %v, want %v", got, want)
	}
}

func TestRecordSettlement_AddsPayout(t *testing.T) {
	g, _, _ := newTestGuard(t, 1000)
	ctx := context.Background()
	if err := g.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if err := g.RecordSettlement(ctx, 25); err != nil {
		t.Fatalf("RecordSettlement: %v", err)
	}
	if got := g.State().Balance; got != 1025 {
		t.Errorf("balance = %v, want 1025", got)
	}
	if got := g.State().DailyPnL; got != 25 {
		t.Errorf("daily_pnl = %v, want 25", got)
	}
}

func TestSync_ResetsDailyPnLAtMidnightBoundary(t *testing.T) {
	g, _, st := newTestGuard(t, 1000)
	ctx := context.Background()

	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	st.state = &types.PortfolioState{Balance: 1000, DailyPnL: -200, LastUpdated: yesterday}

	if err := g.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if got := g.State().DailyPnL; got != 0 {
		t.Errorf("expected daily_pnl reset to 0 across UTC midnight, got %v", got)
	}
}

func TestSync_PreservesDailyPnLWithinSameDay(t *testing.T) {
	g, _, st := newTestGuard(t, 1000)
	ctx := context.Background()

	st.state = &types.PortfolioState{Balance: 1000, DailyPnL: -75, LastUpdated: time.Now().UTC()}

	if err := g.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if got := g.State().DailyPnL; got != -75 {
		t.Errorf("expected daily_pnl preserved within the same day, got %v", got)
	}
}
