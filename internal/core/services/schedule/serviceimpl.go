package schedule

import (
	"context"
	"fmt"
	"time"

	"gitlab.com/autograder.net/internal/config"
	"gitlab.com/autograder.net/internal/core/ports/primary"
	"gitlab.com/autograder.net/internal/core/ports/secondary"
)

var _ IRecoveryService = &RecoveryService{}

type RecoveryService struct {
	submissionRepo secondary.SubmissionRepository
	queue          secondary.SubmissionQueue
	sweepCfg       *config.SweepConfig
	logger         primary.Logger
	now            func() time.Time
}

func NewRecoveryService(
	submissionRepo secondary.SubmissionRepository,
	queue secondary.SubmissionQueue,
	sweepCfg *config.SweepConfig,
	logger primary.Logger,
) *RecoveryService {
	return &RecoveryService{
		submissionRepo: submissionRepo,
		queue:          queue,
		sweepCfg:       sweepCfg,
		logger:         logger,
		now:            time.Now,
	}
}

func (s *RecoveryService) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	cutoff := s.now().Add(-s.sweepCfg.StaleAfter)

	reset, err := s.submissionRepo.ResetStaleProcessing(ctx, cutoff, s.sweepCfg.BatchSize)
	if err != nil {
		s.logger.Error("Failed to reset stale submissions", "error", err)
		return result, fmt.Errorf("failed to reset stale submissions: %w", err)
	}
	result.Reset = len(reset)
	for _, id := range reset {
		s.logger.Warn("Submission stuck in processing, reset to new", "submissionId", id)
	}

	// reset rows are NEW again but carry a fresh updated_at, so they are not in this list
	stale, err := s.submissionRepo.TouchStaleNew(ctx, cutoff, s.sweepCfg.BatchSize)
	if err != nil {
		s.logger.Error("Failed to get stale new submissions", "error", err)
		return result, fmt.Errorf("failed to get stale new submissions: %w", err)
	}

	for _, id := range append(reset, stale...) {
		if err := s.queue.Enqueue(ctx, id); err != nil {
			s.logger.Error("Failed to re-enqueue submission", "submissionId", id, "error", err)
			return result, fmt.Errorf("failed to re-enqueue submission %d: %w", id, err)
		}
		result.Requeued++
	}

	if result.Reset > 0 || result.Requeued > 0 {
		s.logger.Info("Sweep finished", "reset", result.Reset, "requeued", result.Requeued)
	}
	return result, nil
}
