package execution

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestWaitForFill_ReturnsImmediatelyWhenAlreadyFilled(t *testing.T) {
	ex := newFakeExchange()
	ex.fillsAt["A"] = 10
	ft := NewFillTracker(ex, zap.NewNop(), FillTrackerConfig{InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, BackoffMult: 1.5})

	start := time.Now()
	resp, err := ft.WaitForFill(context.Background(), "A-order", 10, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForFill: %v", err)
	}
	if resp.FilledCount != 10 {
		t.Errorf("expected FilledCount 10, got %d", resp.FilledCount)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Error("expected WaitForFill to return promptly once already filled")
	}
}

func TestWaitForFill_TimesOutWithLastKnownStatus(t *testing.T) {
	ex := newFakeExchange()
	ft := NewFillTracker(ex, zap.NewNop(), FillTrackerConfig{InitialBackoff: 5 * time.Millisecond, MaxBackoff: 10 * time.Millisecond, BackoffMult: 1.2})

	resp, err := ft.WaitForFill(context.Background(), "A-order", 10, 40*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForFill: %v", err)
	}
	if resp.FilledCount != 0 {
		t.Errorf("expected FilledCount 0 on timeout, got %d", resp.FilledCount)
	}
}

func TestWaitForFill_ContextCancelled(t *testing.T) {
	ex := newFakeExchange()
	ft := NewFillTracker(ex, zap.NewNop(), FillTrackerConfig{InitialBackoff: 20 * time.Millisecond, MaxBackoff: 50 * time.Millisecond, BackoffMult: 1.5})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ft.WaitForFill(ctx, "A-order", 10, time.Second)
	if err == nil {
		t.Fatal("expected context cancellation error")
	}
}
