package notifier

import (
	"context"
	"fmt"
	"time"

	"gitlab.com/autograder.net/internal/core/ports/primary"
	"gitlab.com/autograder.net/internal/core/ports/secondary"
	"gitlab.com/autograder.net/internal/domain"
)

const broadcastTimeout = 5 * time.Second

var _ INotifierService = (*NotifierService)(nil)

type NotifierService struct {
	submissionRepo secondary.SubmissionRepository
	detailRepo     secondary.SubmissionDetailRepository
	broadcasters   []secondary.SnapshotBroadcaster
	logger         primary.Logger
}

func NewNotifierService(
	submissionRepo secondary.SubmissionRepository,
	detailRepo secondary.SubmissionDetailRepository,
	logger primary.Logger,
	broadcasters ...secondary.SnapshotBroadcaster,
) *NotifierService {
	return &NotifierService{
		submissionRepo: submissionRepo,
		detailRepo:     detailRepo,
		broadcasters:   broadcasters,
		logger:         logger,
	}
}

// AddBroadcaster registers another delivery channel. Not safe once publishing started.
func (s *NotifierService) AddBroadcaster(b secondary.SnapshotBroadcaster) {
	if b != nil {
		s.broadcasters = append(s.broadcasters, b)
	}
}

func (s *NotifierService) GetSnapshot(ctx context.Context, submissionID int64) (*domain.SubmissionSnapshot, error) {
	submission, err := s.submissionRepo.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	details, err := s.detailRepo.GetDetails(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get submission details: %w", err)
	}
	return &domain.SubmissionSnapshot{
		Submission: submission,
		Details:    details,
	}, nil
}

func (s *NotifierService) Broadcast(ctx context.Context, snapshot *domain.SubmissionSnapshot) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), broadcastTimeout)
	defer cancel()

	for _, b := range s.broadcasters {
		if err := b.Broadcast(ctx, snapshot); err != nil {
			s.logger.Warn("Failed to broadcast snapshot",
				"submissionId", snapshot.Submission.ID,
				"broadcaster", fmt.Sprintf("%T", b),
				"error", err)
		}
	}
}

func (s *NotifierService) RequestSnapshot(ctx context.Context, submissionID int64) (*domain.SubmissionSnapshot, error) {
	snapshot, err := s.GetSnapshot(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	s.Broadcast(ctx, snapshot)
	return snapshot, nil
}

func (s *NotifierService) PublishFinal(ctx context.Context, submissionID int64) {
	if snapshot := s.publish(ctx, submissionID); snapshot != nil {
		s.logger.Info("Published final result",
			"submissionId", submissionID,
			"correct", snapshot.Submission.CorrectTestCases,
			"total", snapshot.Submission.TotalTestCases)
	}
}

func (s *NotifierService) publish(ctx context.Context, submissionID int64) *domain.SubmissionSnapshot {
	if len(s.broadcasters) == 0 {
		return nil
	}
	snapshot, err := s.GetSnapshot(ctx, submissionID)
	if err != nil {
		s.logger.Warn("Failed to load snapshot for broadcast", "submissionId", submissionID, "error", err)
		return nil
	}
	s.Broadcast(ctx, snapshot)
	return snapshot
}
