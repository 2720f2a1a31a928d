package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// scheduledTask is one entry in the orchestrator's timing wheel (§4.7):
// a named unit of work that fires no more often than every interval.
// The scheduler polls at 1-second resolution rather than driving one
// timer per task, so every task's cadence is expressed in the same
// table and logged uniformly.
type scheduledTask struct {
	name     string
	interval time.Duration
	next     time.Time
	fn       func(ctx context.Context)
}

// scheduler drives every periodic task off a single 1-second ticker
// (§4.7). Tasks never run concurrently with each other; a slow task
// delays the next tick's due-check but never overlaps its own next
// firing.
type scheduler struct {
	tasks  []*scheduledTask
	logger *zap.Logger
}

func newScheduler(logger *zap.Logger) *scheduler {
	return &scheduler{logger: logger}
}

// every registers fn to run at most once per interval, starting on the
// scheduler's first tick.
func (s *scheduler) every(name string, interval time.Duration, fn func(ctx context.Context)) {
	if interval <= 0 {
		return
	}
	s.tasks = append(s.tasks, &scheduledTask{name: name, interval: interval, fn: fn})
}

// run blocks, firing due tasks every second until ctx is cancelled.
func (s *scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	now := time.Now()
	for _, t := range s.tasks {
		t.next = now // fire every task once on startup
	}

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, t := range s.tasks {
				if now.Before(t.next) {
					continue
				}
				t.next = now.Add(t.interval)
				s.runTask(ctx, t)
			}
		}
	}
}

func (s *scheduler) runTask(ctx context.Context, t *scheduledTask) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled-task-panic", zap.String("task", t.name), zap.Any("recover", r))
		}
	}()
	t.fn(ctx)
	s.logger.Debug("scheduled-task-complete", zap.String("task", t.name), zap.Duration("duration", time.Since(start)))
}
