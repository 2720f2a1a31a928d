// Package portfolio implements the authoritative risk gate and position
// sizer (§4.6). It is the single writer of types.PortfolioState and the
// only component allowed to trip or clear the kill switch.
package portfolio

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kalshi-arb/engine/internal/detector"
	"github.com/kalshi-arb/engine/internal/exchange"
	"github.com/kalshi-arb/engine/internal/storage"
	"github.com/kalshi-arb/engine/pkg/types"
)

// ExchangeClient is the subset of exchange.Client the guard depends on.
type ExchangeClient interface {
	GetBalance(ctx context.Context) (float64, error)
	GetPositions(ctx context.Context, cursor string) (types.PositionsResponse, error)
}

var _ ExchangeClient = (*exchange.Client)(nil)

// Store is the subset of storage.Storage the guard depends on.
type Store interface {
	GetPortfolioState(ctx context.Context) (*types.PortfolioState, error)
	SavePortfolioState(ctx context.Context, state *types.PortfolioState) error
}

var _ Store = storage.Storage(nil)

// Config holds portfolio guard configuration (spec §4.6, §6 trading
// section).
type Config struct {
	Exchange ExchangeClient
	Store    Store
	Logger   *zap.Logger

	// MaxRiskPct is the fraction of balance at stake per trade.
	MaxRiskPct float64
	// MaxDailyLoss is the positive dollar threshold; trading halts once
	// daily_pnl <= -MaxDailyLoss.
	MaxDailyLoss float64
	// MaxOpenPositions caps concurrent open positions.
	MaxOpenPositions int
	// MaxContractsPerTrade is the hard per-trade sizing ceiling.
	MaxContractsPerTrade int
}

// Guard is the portfolio risk gate and position sizer. All mutable state
// is protected by mu except killSwitch, which is also mirrored in an
// atomic.Bool so can_trade()'s hot-path read never blocks (the same
// lock-free-read idiom the circuit breaker used for the on-chain
// balance check).
type Guard struct {
	mu    sync.Mutex
	state types.PortfolioState

	killSwitch atomic.Bool

	exchange ExchangeClient
	store    Store
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Guard. Callers should call Sync once before trading
// begins to load persisted state and a fresh exchange snapshot.
func New(cfg Config) *Guard {
	return &Guard{
		exchange: cfg.Exchange,
		store:    cfg.Store,
		cfg:      cfg,
		logger:   cfg.Logger,
		state:    types.PortfolioState{LastUpdated: time.Now()},
	}
}

// Sync refreshes balance and open positions from the exchange, reloads
// the kill switch and daily_pnl from persistence, resets daily_pnl at
// the UTC midnight boundary, and persists the merged state (§4.6).
func (g *Guard) Sync(ctx context.Context) error {
	balance, err := g.exchange.GetBalance(ctx)
	if err != nil {
		return fmt.Errorf("sync: get balance: %w", err)
	}
	positions, err := g.exchange.GetPositions(ctx, "")
	if err != nil {
		return fmt.Errorf("sync: get positions: %w", err)
	}
	persisted, err := g.store.GetPortfolioState(ctx)
	if err != nil {
		return fmt.Errorf("sync: load persisted state: %w", err)
	}

	now := time.Now().UTC()

	g.mu.Lock()
	if persisted != nil {
		crossedMidnight := persisted.LastUpdated.UTC().Year() != now.Year() ||
			persisted.LastUpdated.UTC().YearDay() != now.YearDay()
		if crossedMidnight {
			g.state.DailyPnL = 0
			g.logger.Info("daily-pnl-reset", zap.Time("as-of", now))
		} else {
			g.state.DailyPnL = persisted.DailyPnL
		}
		g.killSwitch.Store(persisted.KillSwitch)
	}
	g.state.Balance = balance
	g.state.OpenPositions = countOpenPositions(positions.Positions)
	g.state.KillSwitch = g.killSwitch.Load()
	g.state.LastUpdated = now
	snapshot := g.state
	g.mu.Unlock()

	return g.persist(ctx, snapshot)
}

// CanTrade is the authoritative risk gate (§4.6): the conjunction of
// not-tripped, daily loss within bound, and open positions under cap.
// The kill-switch check is a lock-free atomic read so this never
// contends with a concurrent RecordFill.
func (g *Guard) CanTrade() bool {
	if g.killSwitch.Load() {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state.DailyPnL <= -g.cfg.MaxDailyLoss {
		return false
	}
	if g.state.OpenPositions >= g.cfg.MaxOpenPositions {
		return false
	}
	return true
}

// CalculatePositionSize implements the three-bound sizing formula
// (§4.6): max(0, min(floor(balance*max_risk_pct/magnitude), min_leg_depth,
// max_contracts_per_trade)).
func (g *Guard) CalculatePositionSize(opp *detector.Opportunity) int {
	if opp.Magnitude <= 0 || len(opp.Legs) == 0 {
		return 0
	}

	minDepth := opp.Legs[0].Depth
	for _, leg := range opp.Legs[1:] {
		if leg.Depth < minDepth {
			minDepth = leg.Depth
		}
	}

	g.mu.Lock()
	balance := g.state.Balance
	g.mu.Unlock()

	riskBound := math.Floor(balance * g.cfg.MaxRiskPct / opp.Magnitude)

	size := riskBound
	if minDepth < size {
		size = minDepth
	}
	if float64(g.cfg.MaxContractsPerTrade) < size {
		size = float64(g.cfg.MaxContractsPerTrade)
	}
	if size < 0 {
		size = 0
	}
	return int(size)
}

// RecordFill updates running balance and daily P&L for one leg fill
// (§4.6): buys subtract price*count+fees, sells add price*count-fees.
func (g *Guard) RecordFill(ctx context.Context, action types.Action, price float64, count int, fees float64) error {
	gross := price * float64(count)

	g.mu.Lock()
	var delta float64
	if action == types.ActionBuy {
		delta = -(gross + fees)
	} else {
		delta = gross - fees
	}
	g.state.Balance += delta
	g.state.DailyPnL += delta
	snapshot := g.state
	g.mu.Unlock()

	return g.persist(ctx, snapshot)
}

// RecordSettlement applies a contract settlement payout to balance and
// daily P&L.
func (g *Guard) RecordSettlement(ctx context.Context, payout float64) error {
	g.mu.Lock()
	g.state.Balance += payout
	g.state.DailyPnL += payout
	snapshot := g.state
	g.mu.Unlock()

	return g.persist(ctx, snapshot)
}

// IncrementOpenPositions adjusts the open-position count after a fill
// opens or closes a position.
func (g *Guard) IncrementOpenPositions(ctx context.Context, delta int) error {
	g.mu.Lock()
	g.state.OpenPositions += delta
	if g.state.OpenPositions < 0 {
		g.state.OpenPositions = 0
	}
	snapshot := g.state
	g.mu.Unlock()

	return g.persist(ctx, snapshot)
}

// TripKillSwitch sets the kill switch. It is idempotent and safe to call
// from any goroutine, including an automated monitor (see monitor.go) --
// but nothing may clear it except DeactivateKillSwitch (§4.6: "can only
// be cleared by an explicit deactivation operation").
func (g *Guard) TripKillSwitch(ctx context.Context, reason string) error {
	g.killSwitch.Store(true)
	g.logger.Warn("kill-switch-tripped", zap.String("reason", reason))
	KillSwitchTripsTotal.WithLabelValues(reason).Inc()

	g.mu.Lock()
	g.state.KillSwitch = true
	snapshot := g.state
	g.mu.Unlock()

	return g.persist(ctx, snapshot)
}

// DeactivateKillSwitch is the one explicit operation allowed to clear
// the kill switch.
func (g *Guard) DeactivateKillSwitch(ctx context.Context) error {
	g.killSwitch.Store(false)
	g.logger.Info("kill-switch-deactivated")

	g.mu.Lock()
	g.state.KillSwitch = false
	snapshot := g.state
	g.mu.Unlock()

	return g.persist(ctx, snapshot)
}

// State returns a copy of the current portfolio state.
func (g *Guard) State() types.PortfolioState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Guard) persist(ctx context.Context, snapshot types.PortfolioState) error {
	if err := g.store.SavePortfolioState(ctx, &snapshot); err != nil {
		return fmt.Errorf("persist portfolio state: %w", err)
	}
	PortfolioBalance.Set(snapshot.Balance)
	PortfolioDailyPnL.Set(snapshot.DailyPnL)
	PortfolioOpenPositions.Set(float64(snapshot.OpenPositions))
	if snapshot.KillSwitch {
		KillSwitchActive.Set(1)
	} else {
		KillSwitchActive.Set(0)
	}
	return nil
}

func countOpenPositions(positions []types.Position) int {
	n := 0
	for _, p := range positions {
		if p.Quantity != 0 {
			n++
		}
	}
	return n
}
