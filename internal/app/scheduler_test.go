package app

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/kalshi-arb/engine/internal/detector"
)

func TestScheduler_RunsTaskOnFirstTick(t *testing.T) {
	s := newScheduler(zap.NewNop())

	var calls atomic.Int32
	s.every("tick", time.Second, func(ctx context.Context) {
		calls.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.run(ctx)
		close(done)
	}()

	// Let the scheduler's 1s ticker fire the task's initial due-check at
	// least once before cancelling.
	time.Sleep(1200 * time.Millisecond)
	cancel()
	<-done

	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestScheduler_ZeroIntervalIgnored(t *testing.T) {
	s := newScheduler(zap.NewNop())
	s.every("never", 0, func(ctx context.Context) { t.Fatal("should never run") })
	assert.Empty(t, s.tasks)
}

func TestOpportunityHolder_SetAndGet(t *testing.T) {
	h := newOpportunityHolder()
	assert.Empty(t, h.Opportunities())

	opp := detector.NewOpportunity("rel-1", detector.SignalBuyAllPartition, 0.1, 0.9, nil)
	h.set([]*detector.Opportunity{opp})

	got := h.Opportunities()
	assert.Len(t, got, 1)
	assert.Equal(t, opp.ID, got[0].ID)
}
