package schedulerengine

import (
	"context"
	"time"

	"gitlab.com/autograder.net/internal/core/ports/primary"
	"gitlab.com/autograder.net/internal/core/services/schedule"
)

// SchedulerEngine runs the recovery sweep on a fixed interval
type SchedulerEngine struct {
	interval time.Duration
	recovery schedule.IRecoveryService
	logger   primary.Logger
}

func NewSchedulerEngine(
	interval time.Duration,
	recovery schedule.IRecoveryService,
	logger primary.Logger,
) *SchedulerEngine {
	return &SchedulerEngine{
		interval: interval,
		recovery: recovery,
		logger:   logger,
	}
}

// Run sweeps once right away, then on every tick until ctx is done
func (s *SchedulerEngine) Run(ctx context.Context) error {
	s.logger.Info("Recovery sweep started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Recovery sweep stopped")
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *SchedulerEngine) sweep(ctx context.Context) {
	if _, err := s.recovery.Sweep(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("Recovery sweep failed", "error", err)
	}
}
