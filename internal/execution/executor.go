// Package execution moves a detected Opportunity through its state
// machine by placing and tracking the exchange orders its Legs
// describe (§4.5).
package execution

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kalshi-arb/engine/internal/detector"
	"github.com/kalshi-arb/engine/internal/exchange"
	"github.com/kalshi-arb/engine/internal/fees"
	"github.com/kalshi-arb/engine/internal/portfolio"
	"github.com/kalshi-arb/engine/internal/storage"
	"github.com/kalshi-arb/engine/pkg/types"
)

// ExchangeClient is the subset of exchange.Client the executor depends
// on.
type ExchangeClient interface {
	PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderResponse, error)
	GetOrder(ctx context.Context, orderID string) (types.OrderResponse, error)
	CancelOrder(ctx context.Context, orderID string) error
}

var _ ExchangeClient = (*exchange.Client)(nil)

// Store is the subset of storage.Storage the executor depends on.
type Store interface {
	InsertTrade(ctx context.Context, trade *types.Trade) error
	UpdateTrade(ctx context.Context, trade *types.Trade) error
	UpdateOpportunityStatus(ctx context.Context, id string, status detector.Status) error
}

var _ Store = storage.Storage(nil)

// Guard is the subset of portfolio.Guard the executor depends on.
type Guard interface {
	CanTrade() bool
	CalculatePositionSize(opp *detector.Opportunity) int
	RecordFill(ctx context.Context, action types.Action, price float64, count int, fees float64) error
}

var _ Guard = (*portfolio.Guard)(nil)

// Clock abstracts time.Now so dry-run order ids are deterministic in
// tests (a supplemented feature from the original bot's injected-clock
// test harness).
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Config holds executor configuration.
type Config struct {
	Exchange ExchangeClient
	Store    Store
	Guard    Guard
	Logger   *zap.Logger
	Clock    Clock

	// DryRun replaces every exchange call with a synthetic dry_run fill
	// (§4.5).
	DryRun bool

	// LegWaitTimeout bounds how long to wait for a single leg to fill.
	LegWaitTimeout time.Duration
	// SettleWindow is the multi-leg (PARTITION) settle pause before
	// polling every leg once.
	SettleWindow time.Duration
	// AggressionCents is how much more aggressive leg 2 of a two-leg
	// trade prices relative to its original target (§4.5: "1 cent").
	AggressionCents int
	// OrderExpiration is the belt-and-braces exchange-side order
	// expiration (§4.5: 30s).
	OrderExpiration time.Duration

	FillPollInitial time.Duration
	FillPollMax     time.Duration
	FillPollMult    float64
}

// Executor drives Opportunity.Status through
// DETECTED -> EXECUTING -> {FILLED | FAILED | EXPIRED}.
type Executor struct {
	exchange        ExchangeClient
	store           Store
	guard           Guard
	logger          *zap.Logger
	clock           Clock
	dryRun          bool
	legWaitTimeout  time.Duration
	settleWindow    time.Duration
	aggressionCents int
	orderExpiration time.Duration
	fills           *FillTracker
}

// New constructs an Executor.
func New(cfg Config) *Executor {
	clock := cfg.Clock
	if clock == nil {
		clock = systemClock{}
	}
	legWait := cfg.LegWaitTimeout
	if legWait <= 0 {
		legWait = 30 * time.Second
	}
	settle := cfg.SettleWindow
	if settle <= 0 {
		settle = 5 * time.Second
	}
	aggression := cfg.AggressionCents
	if aggression <= 0 {
		aggression = 1
	}
	expiration := cfg.OrderExpiration
	if expiration <= 0 {
		expiration = 30 * time.Second
	}

	return &Executor{
		exchange:        cfg.Exchange,
		store:           cfg.Store,
		guard:           cfg.Guard,
		logger:          cfg.Logger,
		clock:           clock,
		dryRun:          cfg.DryRun,
		legWaitTimeout:  legWait,
		settleWindow:    settle,
		aggressionCents: aggression,
		orderExpiration: expiration,
		fills: NewFillTracker(cfg.Exchange, cfg.Logger, FillTrackerConfig{
			InitialBackoff: cfg.FillPollInitial,
			MaxBackoff:     cfg.FillPollMax,
			BackoffMult:    cfg.FillPollMult,
		}),
	}
}

// Execute moves one Opportunity through the state machine and reports
// whether it ended FILLED. A (false, nil) return is a safety refusal or
// a documented, non-exceptional terminal failure; a non-nil error means
// persistence or the exchange itself misbehaved unexpectedly.
func (e *Executor) Execute(ctx context.Context, opp *detector.Opportunity) (bool, error) {
	start := time.Now()
	defer func() {
		ExecutionDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	OpportunitiesReceived.Inc()

	if !e.guard.CanTrade() {
		OpportunitiesSkippedTotal.WithLabelValues("cannot_trade").Inc()
		e.logger.Info("execution-refused-cannot-trade", zap.String("opportunity", opp.ID))
		return false, nil
	}

	count := e.guard.CalculatePositionSize(opp)
	if count <= 0 {
		OpportunitiesSkippedTotal.WithLabelValues("zero_size").Inc()
		e.logger.Info("execution-refused-zero-size", zap.String("opportunity", opp.ID))
		return false, nil
	}

	opp.Status = detector.StatusExecuting
	if err := e.store.UpdateOpportunityStatus(ctx, opp.ID, detector.StatusExecuting); err != nil {
		return false, fmt.Errorf("mark executing: %w", err)
	}

	var filled bool
	var err error
	switch opp.Signal {
	case detector.SignalBuyAllPartition, detector.SignalSellAllPartition:
		filled, err = e.executeMultiLeg(ctx, opp, count)
	default:
		filled, err = e.executeTwoLeg(ctx, opp, count)
	}

	finalStatus := detector.StatusFailed
	if filled {
		finalStatus = detector.StatusFilled
	}
	opp.Status = finalStatus
	if uerr := e.store.UpdateOpportunityStatus(ctx, opp.ID, finalStatus); uerr != nil {
		e.logger.Error("opportunity-status-persist-failed", zap.String("opportunity", opp.ID), zap.Error(uerr))
	}

	if filled {
		OpportunitiesExecuted.WithLabelValues(string(opp.Signal)).Inc()
	}
	if err != nil {
		ExecutionErrorsTotal.Inc()
	}

	return filled, err
}

// executeTwoLeg implements the SUBSET/THRESHOLD/IMPLICATION branch
// (§4.5): place leg 1, wait for a fill, place leg 2 more aggressively
// sized to whatever leg 1 actually filled, and accept a directional
// residual rather than chase with a compensating order.
func (e *Executor) executeTwoLeg(ctx context.Context, opp *detector.Opportunity, count int) (bool, error) {
	leg1, leg2 := opp.Legs[0], opp.Legs[1]

	trade1, err := e.placeLeg(ctx, opp.ID, leg1, count, leg1.TargetPrice)
	if err != nil {
		e.logger.Error("leg1-placement-failed", zap.String("opportunity", opp.ID), zap.Error(err))
		return false, nil
	}

	filled1 := trade1
	if trade1.Status != types.OrderStatusDryRun {
		resp, werr := e.fills.WaitForFill(ctx, trade1.ExchangeOrder, count, e.legWaitTimeout)
		if werr != nil {
			return false, werr
		}
		filled1 = e.reconcileTrade(ctx, trade1, resp)
	}

	if filled1.FilledCount == 0 {
		e.cancelIfResting(ctx, filled1)
		e.logger.Info("leg1-did-not-fill", zap.String("opportunity", opp.ID))
		return false, nil
	}

	if err := e.guard.RecordFill(ctx, leg1.Action, filled1.Price, filled1.FilledCount, fees.TakerFee(filled1.FilledCount, filled1.Price)); err != nil {
		e.logger.Error("record-fill-failed", zap.Error(err))
	}

	aggressivePrice := adjustPrice(leg2.TargetPrice, leg2.Action, e.aggressionCents)
	trade2, err := e.placeLeg(ctx, opp.ID, leg2, filled1.FilledCount, aggressivePrice)
	if err != nil {
		e.logger.Error("leg2-placement-failed", zap.String("opportunity", opp.ID), zap.Error(err))
		return false, nil
	}

	filled2 := trade2
	if trade2.Status != types.OrderStatusDryRun {
		resp, werr := e.fills.WaitForFill(ctx, trade2.ExchangeOrder, filled1.FilledCount, e.legWaitTimeout)
		if werr != nil {
			return false, werr
		}
		filled2 = e.reconcileTrade(ctx, trade2, resp)
	}

	if filled2.FilledCount < filled1.FilledCount {
		e.cancelIfResting(ctx, filled2)
		ResidualsAcceptedTotal.Inc()
		e.logger.Warn("leg2-partial-residual-accepted",
			zap.String("opportunity", opp.ID),
			zap.Int("leg1-filled", filled1.FilledCount),
			zap.Int("leg2-filled", filled2.FilledCount))
		if filled2.FilledCount > 0 {
			if err := e.guard.RecordFill(ctx, leg2.Action, filled2.Price, filled2.FilledCount, fees.TakerFee(filled2.FilledCount, filled2.Price)); err != nil {
				e.logger.Error("record-fill-failed", zap.Error(err))
			}
		}
		return false, nil
	}

	if err := e.guard.RecordFill(ctx, leg2.Action, filled2.Price, filled2.FilledCount, fees.TakerFee(filled2.FilledCount, filled2.Price)); err != nil {
		e.logger.Error("record-fill-failed", zap.Error(err))
	}
	return true, nil
}

// executeMultiLeg implements the PARTITION branch (§4.5): place every
// leg simultaneously, allow a short settle window, then poll once.
// Success only if every leg filled.
func (e *Executor) executeMultiLeg(ctx context.Context, opp *detector.Opportunity, count int) (bool, error) {
	trades := make([]*types.Trade, len(opp.Legs))
	for i, leg := range opp.Legs {
		trade, err := e.placeLeg(ctx, opp.ID, leg, count, leg.TargetPrice)
		if err != nil {
			e.logger.Error("multileg-placement-failed", zap.String("opportunity", opp.ID), zap.String("ticker", leg.Ticker), zap.Error(err))
			trades[i] = nil
			continue
		}
		trades[i] = trade
	}

	select {
	case <-time.After(e.settleWindow):
	case <-ctx.Done():
		return false, ctx.Err()
	}

	allFilled := true
	for i, trade := range trades {
		if trade == nil {
			allFilled = false
			continue
		}
		if trade.Status == types.OrderStatusDryRun {
			continue
		}
		resp, err := e.exchange.GetOrder(ctx, trade.ExchangeOrder)
		if err != nil {
			e.logger.Warn("multileg-status-query-failed", zap.String("order-id", trade.ExchangeOrder), zap.Error(err))
			allFilled = false
			continue
		}
		trades[i] = e.reconcileTrade(ctx, trade, resp)
		if trades[i].FilledCount < count {
			allFilled = false
		}
	}

	if !allFilled {
		for _, trade := range trades {
			if trade != nil {
				e.cancelIfResting(ctx, trade)
			}
		}
		e.logger.Warn("multileg-not-all-filled-cancelling", zap.String("opportunity", opp.ID))
		return false, nil
	}

	for i, trade := range trades {
		leg := opp.Legs[i]
		if err := e.guard.RecordFill(ctx, leg.Action, trade.Price, trade.FilledCount, fees.TakerFee(trade.FilledCount, trade.Price)); err != nil {
			e.logger.Error("record-fill-failed", zap.Error(err))
		}
	}
	return true, nil
}

// placeLeg writes a pending Trade row before calling the exchange (or,
// in dry-run mode, synthesizing one), per §4.5.
func (e *Executor) placeLeg(ctx context.Context, opportunityID string, leg detector.Leg, count int, price float64) (*types.Trade, error) {
	now := time.Now()
	trade := &types.Trade{
		ID:            uuid.New().String(),
		OpportunityID: opportunityID,
		Ticker:        leg.Ticker,
		Side:          types.SideYes,
		Action:        types.Action(leg.Action),
		Price:         price,
		Count:         count,
		Status:        types.OrderStatusPending,
		PlacedAt:      now,
		UpdatedAt:     now,
	}

	if e.dryRun {
		trade.ID = dryRunOrderID(e.clock.Now().UnixMilli())
		trade.ExchangeOrder = trade.ID
		trade.Status = types.OrderStatusDryRun
		trade.FilledCount = count
		if err := e.store.InsertTrade(ctx, trade); err != nil {
			return nil, fmt.Errorf("insert dry-run trade: %w", err)
		}
		return trade, nil
	}

	if err := e.store.InsertTrade(ctx, trade); err != nil {
		return nil, fmt.Errorf("insert trade: %w", err)
	}

	priceCents := int(math.Round(price * 100))
	yesPriceCents := types.CentsToYesPrice(types.SideYes, priceCents)
	expiration := now.Add(e.orderExpiration).Unix()
	req := types.OrderRequest{
		Ticker:        leg.Ticker,
		Action:        types.Action(leg.Action),
		Side:          types.SideYes,
		Type:          "limit",
		Count:         count,
		YesPriceCents: &yesPriceCents,
		ExpirationTS:  &expiration,
	}

	resp, err := e.exchange.PlaceOrder(ctx, req)
	if err != nil {
		trade.Status = types.OrderStatusCanceled
		trade.UpdatedAt = time.Now()
		if uerr := e.store.UpdateTrade(ctx, trade); uerr != nil {
			e.logger.Error("trade-update-after-place-failure-failed", zap.Error(uerr))
		}
		return nil, fmt.Errorf("place order: %w", err)
	}

	trade.ExchangeOrder = resp.OrderID
	trade.Status = types.OrderStatusResting
	trade.UpdatedAt = time.Now()
	if err := e.store.UpdateTrade(ctx, trade); err != nil {
		e.logger.Error("trade-update-after-place-failed", zap.Error(err))
	}
	return trade, nil
}

// reconcileTrade merges a fresh order status into the persisted Trade
// row.
func (e *Executor) reconcileTrade(ctx context.Context, trade *types.Trade, resp types.OrderResponse) *types.Trade {
	trade.FilledCount = resp.FilledCount
	if trade.FilledCount > 0 {
		trade.Fees = fees.TakerFee(trade.FilledCount, trade.Price)
	}
	trade.UpdatedAt = time.Now()
	switch resp.Status {
	case "executed":
		trade.Status = types.OrderStatusFilled
	case "canceled":
		trade.Status = types.OrderStatusCanceled
	default:
		trade.Status = types.OrderStatusResting
	}
	if err := e.store.UpdateTrade(ctx, trade); err != nil {
		e.logger.Error("trade-reconcile-persist-failed", zap.String("order-id", trade.ExchangeOrder), zap.Error(err))
	}
	return trade
}

// cancelIfResting cancels a trade's exchange order if it never reached
// a terminal state. A cancellation failure is logged but never retried
// (§4.5).
func (e *Executor) cancelIfResting(ctx context.Context, trade *types.Trade) {
	if trade == nil || trade.IsTerminal() {
		return
	}
	if err := e.exchange.CancelOrder(ctx, trade.ExchangeOrder); err != nil {
		e.logger.Warn("cancel-order-failed", zap.String("order-id", trade.ExchangeOrder), zap.Error(err))
	}
	trade.Status = types.OrderStatusCanceled
	trade.UpdatedAt = time.Now()
	if err := e.store.UpdateTrade(ctx, trade); err != nil {
		e.logger.Error("trade-update-after-cancel-failed", zap.Error(err))
	}
}

// adjustPrice nudges a leg's target price one cent more aggressive in
// its trade direction: a cent higher for a buy, a cent lower for a
// sell (§4.5).
func adjustPrice(target float64, action string, aggressionCents int) float64 {
	delta := float64(aggressionCents) / 100
	if action == string(types.ActionBuy) {
		return target + delta
	}
	return target - delta
}

// dryRunOrderID is exposed for tests asserting on the synthetic id
// shape without depending on wall-clock time.
func dryRunOrderID(ms int64) string {
	return "DRY-" + strconv.FormatInt(ms, 10)
}
