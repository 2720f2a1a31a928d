package portfolio

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Monitor watches account balance and trips the kill switch when it
// falls below a dynamically recalculated threshold. It is a one-way
// trip: unlike a hysteresis-based breaker that re-enables itself once
// balance recovers, the kill switch's persistent-until-explicit-clear
// invariant (§4.6) means this monitor may only ever call
// Guard.TripKillSwitch, never anything that clears it.
type Monitor struct {
	guard         *Guard
	checkInterval time.Duration
	tradeMultiplier float64
	minAbsolute     float64
	logger          *zap.Logger

	mu               sync.Mutex
	recentTrades     []float64
	disableThreshold float64
}

// MonitorConfig holds balance-monitor configuration.
type MonitorConfig struct {
	Guard           *Guard
	CheckInterval   time.Duration
	TradeMultiplier float64
	MinAbsolute     float64
	Logger          *zap.Logger
}

// NewMonitor constructs a Monitor.
func NewMonitor(cfg MonitorConfig) (*Monitor, error) {
	if cfg.Guard == nil {
		return nil, fmt.Errorf("guard cannot be nil")
	}
	if cfg.CheckInterval <= 0 {
		return nil, fmt.Errorf("check interval must be positive")
	}
	if cfg.TradeMultiplier <= 0 {
		return nil, fmt.Errorf("trade multiplier must be positive")
	}
	if cfg.MinAbsolute <= 0 {
		return nil, fmt.Errorf("min absolute must be positive")
	}
	return &Monitor{
		guard:           cfg.Guard,
		checkInterval:   cfg.CheckInterval,
		tradeMultiplier: cfg.TradeMultiplier,
		minAbsolute:     cfg.MinAbsolute,
		logger:          cfg.Logger,
		recentTrades:    make([]float64, 0, 20),
		disableThreshold: cfg.MinAbsolute,
	}, nil
}

// RecordTrade folds a completed trade's notional size into the rolling
// window used to recalculate the disable threshold. Call after every
// fill.
func (m *Monitor) RecordTrade(notional float64) {
	if notional <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.recentTrades = append(m.recentTrades, notional)
	if len(m.recentTrades) > 20 {
		m.recentTrades = m.recentTrades[1:]
	}

	sum := 0.0
	for _, size := range m.recentTrades {
		sum += size
	}
	avg := sum / float64(len(m.recentTrades))
	m.disableThreshold = math.Max(avg*m.tradeMultiplier, m.minAbsolute)
}

// Check syncs the guard and trips the kill switch if the refreshed
// balance has fallen below the current disable threshold. It never
// clears the kill switch.
func (m *Monitor) Check(ctx context.Context) error {
	if err := m.guard.Sync(ctx); err != nil {
		return fmt.Errorf("monitor sync: %w", err)
	}

	balance := m.guard.State().Balance

	m.mu.Lock()
	threshold := m.disableThreshold
	m.mu.Unlock()

	if balance < threshold {
		reason := fmt.Sprintf("balance %.2f below threshold %.2f", balance, threshold)
		if err := m.guard.TripKillSwitch(ctx, reason); err != nil {
			return fmt.Errorf("trip kill switch: %w", err)
		}
	}
	return nil
}

// Start runs Check on checkInterval until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.logger.Info("portfolio-monitor-started", zap.Duration("check-interval", m.checkInterval))

	if err := m.Check(ctx); err != nil {
		m.logger.Error("initial-balance-check-failed", zap.Error(err))
	}

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("portfolio-monitor-stopped")
			return
		case <-ticker.C:
			if err := m.Check(ctx); err != nil {
				m.logger.Error("balance-check-error", zap.Error(err))
			}
		}
	}
}
