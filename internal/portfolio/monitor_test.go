package portfolio

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestMonitor_TripsOnLowBalance(t *testing.T) {
	g, ex, _ := newTestGuard(t, 50)
	m, err := NewMonitor(MonitorConfig{
		Guard:           g,
		CheckInterval:   1,
		TradeMultiplier: 2,
		MinAbsolute:     100,
		Logger:          zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}

	ctx := context.Background()
	if err := m.Check(ctx); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if g.CanTrade() {
		t.Fatal("expected kill switch tripped when balance below min-absolute threshold")
	}

	// Even if balance later recovers, a monitor Check must never clear
	// the kill switch itself -- only an explicit deactivation can.
	ex.balance = 10000
	if err := m.Check(ctx); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if g.CanTrade() {
		t.Fatal("monitor must not auto re-enable trading")
	}
}

func TestMonitor_RecordTradeRaisesThreshold(t *testing.T) {
	g, _, _ := newTestGuard(t, 10000)
	m, err := NewMonitor(MonitorConfig{
		Guard:           g,
		CheckInterval:   1,
		TradeMultiplier: 2,
		MinAbsolute:     10,
		Logger:          zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}

	m.RecordTrade(500)
	m.RecordTrade(500)

	if got := m.disableThreshold; got != 1000 {
		t.Errorf("disableThreshold = %v, want 1000 (avg 500 * multiplier 2)", got)
	}
}
