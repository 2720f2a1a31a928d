package execution

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kalshi-arb/engine/pkg/types"
)

// fillTolerance absorbs floating point drift when comparing FilledCount
// against Count (both are integers in Kalshi's contract model, but the
// comparison is kept symmetric with the teacher's float tolerance
// idiom).
const fillTolerance = 0

// FillTracker polls a single resting order with exponential backoff
// until it fills or a deadline elapses. Grounded on the teacher's
// multi-order VerifyFills, narrowed to the single-order shape the
// two-leg and multi-leg branches of Execute need (§4.5).
type FillTracker struct {
	exchange       ExchangeClient
	logger         *zap.Logger
	initialBackoff time.Duration
	maxBackoff     time.Duration
	backoffMult    float64
}

// FillTrackerConfig configures the backoff schedule.
type FillTrackerConfig struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffMult    float64
}

// NewFillTracker constructs a FillTracker.
func NewFillTracker(exchange ExchangeClient, logger *zap.Logger, cfg FillTrackerConfig) *FillTracker {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	if cfg.BackoffMult <= 1 {
		cfg.BackoffMult = 1.5
	}
	return &FillTracker{
		exchange:       exchange,
		logger:         logger,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		backoffMult:    cfg.BackoffMult,
	}
}

// WaitForFill polls orderID until its FilledCount reaches count, the
// deadline elapses, or ctx is cancelled, whichever comes first. It
// always returns the last-observed order, even on timeout, so the
// caller can act on a partial fill.
func (ft *FillTracker) WaitForFill(ctx context.Context, orderID string, count int, deadline time.Duration) (types.OrderResponse, error) {
	timeout := time.NewTimer(deadline)
	defer timeout.Stop()

	backoff := ft.initialBackoff
	var last types.OrderResponse

	for {
		resp, err := ft.exchange.GetOrder(ctx, orderID)
		if err != nil {
			ft.logger.Warn("order-status-query-failed", zap.String("order-id", orderID), zap.Error(err))
		} else {
			last = resp
			if resp.FilledCount >= count-fillTolerance {
				return last, nil
			}
		}

		select {
		case <-timeout.C:
			return last, nil
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * ft.backoffMult)
			if backoff > ft.maxBackoff {
				backoff = ft.maxBackoff
			}
		}
	}
}
