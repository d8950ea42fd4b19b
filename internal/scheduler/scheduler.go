package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimesweep/internal/sweep"
)

// Sweeper runs one full pass over the registry.
type Sweeper interface {
	RunSweep(ctx context.Context) sweep.Summary
}

type Scheduler struct {
	Logger   *zap.Logger
	Sweeper  Sweeper
	Interval time.Duration
}

func New(logger *zap.Logger, s Sweeper, interval time.Duration) *Scheduler {
	if interval < 0 {
		interval = 0
	}
	return &Scheduler{Logger: logger, Sweeper: s, Interval: interval}
}

// Run does an immediate sweep, then one per tick until ctx is cancelled.
// A tick that fires while a sweep is still running is skipped by the ticker,
// so sweeps never overlap.
func (s *Scheduler) Run(ctx context.Context) {
	if s.Interval == 0 {
		// disabled
		s.Logger.Info("scheduler_disabled")
		return
	}
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	s.Logger.Info("scheduler_started", zap.Duration("interval", s.Interval))
	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("scheduler_stopped")
			return
		case <-t.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	sum := s.Sweeper.RunSweep(ctx)
	s.Logger.Debug("scheduler_tick", zap.String("summary", sum.String()))
}
