package submission

import (
	"context"
	"fmt"
	"strings"

	"gitlab.com/autograder.net/internal/core/ports/primary"
	"gitlab.com/autograder.net/internal/core/ports/secondary"
	"gitlab.com/autograder.net/internal/core/services/notifier"
	"gitlab.com/autograder.net/internal/domain"
	"gitlab.com/autograder.net/internal/static/errs"
)

var _ ISubmissionService = (*SubmissionService)(nil)

type SubmissionService struct {
	submissionRepo secondary.SubmissionRepository
	detailRepo     secondary.SubmissionDetailRepository
	queue          secondary.SubmissionQueue
	runtimes       secondary.RuntimeCatalog
	notifier       notifier.INotifierService
	logger         primary.Logger
}

func NewSubmissionService(
	submissionRepo secondary.SubmissionRepository,
	detailRepo secondary.SubmissionDetailRepository,
	queue secondary.SubmissionQueue,
	runtimes secondary.RuntimeCatalog,
	notifierService notifier.INotifierService,
	logger primary.Logger,
) *SubmissionService {
	return &SubmissionService{
		submissionRepo: submissionRepo,
		detailRepo:     detailRepo,
		queue:          queue,
		runtimes:       runtimes,
		notifier:       notifierService,
		logger:         logger,
	}
}

func (s *SubmissionService) CreateSubmission(ctx context.Context, principal *domain.Principal, in CreateSubmissionInput) (*domain.Submission, error) {
	if !principal.Has(domain.PermissionCreateSubmission) {
		return nil, errs.ErrForbidden
	}
	if err := s.validate(ctx, in); err != nil {
		return nil, err
	}

	submission := domain.NewSubmission(in.ProblemID, principal.UserID, in.Language, in.Version, in.Filename, in.Code)
	if err := s.submissionRepo.CreateSubmission(ctx, submission); err != nil {
		s.logger.Error("Failed to create submission", "problemId", in.ProblemID, "userId", principal.UserID, "error", err)
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}

	// A submission that never reaches the queue is picked up by the sweep
	if err := s.queue.Enqueue(ctx, submission.ID); err != nil {
		s.logger.Warn("Failed to enqueue submission, leaving it to the sweep", "submissionId", submission.ID, "error", err)
	}

	s.logger.Info("Submission accepted",
		"submissionId", submission.ID,
		"problemId", submission.ProblemID,
		"userId", submission.UserID,
		"language", submission.Language)
	return submission, nil
}

func (s *SubmissionService) validate(ctx context.Context, in CreateSubmissionInput) error {
	switch {
	case in.ProblemID <= 0:
		return fmt.Errorf("%w: problemId is required", errs.ErrInvalidRequest)
	case strings.TrimSpace(in.Language) == "":
		return fmt.Errorf("%w: language is required", errs.ErrInvalidRequest)
	case strings.TrimSpace(in.Version) == "":
		return fmt.Errorf("%w: version is required", errs.ErrInvalidRequest)
	case strings.TrimSpace(in.Filename) == "":
		return fmt.Errorf("%w: filename is required", errs.ErrInvalidRequest)
	case in.Code == "":
		return fmt.Errorf("%w: code is required", errs.ErrInvalidRequest)
	}

	runtimes, err := s.runtimes.ListRuntimes(ctx)
	if err != nil {
		// the sandbox decides at grading time
		s.logger.Warn("Runtime catalog unavailable, accepting submission unchecked", "error", err)
		return nil
	}
	if !supports(runtimes, in.Language, in.Version) {
		return fmt.Errorf("%w: unsupported runtime %s %s", errs.ErrInvalidRequest, in.Language, in.Version)
	}
	return nil
}

func supports(runtimes []domain.Runtime, language, version string) bool {
	for _, r := range runtimes {
		if r.Version != version {
			continue
		}
		if r.Language == language {
			return true
		}
		for _, alias := range r.Aliases {
			if alias == language {
				return true
			}
		}
	}
	return false
}

func (s *SubmissionService) GetSnapshot(ctx context.Context, principal *domain.Principal, submissionID int64) (*domain.SubmissionSnapshot, error) {
	if _, err := s.authorize(ctx, principal, submissionID); err != nil {
		return nil, err
	}
	return s.notifier.GetSnapshot(ctx, submissionID)
}

func (s *SubmissionService) GetDetails(ctx context.Context, principal *domain.Principal, submissionID int64) ([]*domain.SubmissionDetail, error) {
	if _, err := s.authorize(ctx, principal, submissionID); err != nil {
		return nil, err
	}
	details, err := s.detailRepo.GetDetails(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get submission details: %w", err)
	}
	return details, nil
}

func (s *SubmissionService) ListSubmissions(ctx context.Context, principal *domain.Principal, in ListSubmissionsInput) ([]*domain.Submission, error) {
	filter := domain.SubmissionFilter{
		ProblemID: in.ProblemID,
		PageNo:    in.PageNo,
		PageSize:  in.PageSize,
	}
	switch {
	case in.Own:
		if !principal.Has(domain.PermissionViewOwnSubmission) && !principal.Has(domain.PermissionViewSubmission) {
			return nil, errs.ErrForbidden
		}
		userID := principal.UserID
		filter.UserID = &userID
	case !principal.Has(domain.PermissionViewSubmission):
		return nil, errs.ErrForbidden
	}

	submissions, err := s.submissionRepo.ListSubmissions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return submissions, nil
}

func (s *SubmissionService) RequestBroadcast(ctx context.Context, principal *domain.Principal, submissionID int64) error {
	if _, err := s.authorize(ctx, principal, submissionID); err != nil {
		return err
	}
	_, err := s.notifier.RequestSnapshot(ctx, submissionID)
	return err
}

func (s *SubmissionService) ListRuntimes(ctx context.Context) ([]domain.Runtime, error) {
	runtimes, err := s.runtimes.ListRuntimes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list runtimes: %w", err)
	}
	return runtimes, nil
}

func (s *SubmissionService) InvalidateRuntimes(ctx context.Context, principal *domain.Principal) error {
	if !principal.Has(domain.PermissionManageRuntimes) {
		return errs.ErrForbidden
	}
	s.runtimes.InvalidateRuntimes()
	s.logger.Info("Runtime cache invalidated", "userId", principal.UserID)
	return nil
}

// authorize loads the submission and checks the principal may see it.
// Submissions the caller may not see are reported as forbidden, not missing.
func (s *SubmissionService) authorize(ctx context.Context, principal *domain.Principal, submissionID int64) (*domain.Submission, error) {
	if principal == nil {
		return nil, errs.ErrForbidden
	}
	submission, err := s.submissionRepo.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	if !principal.CanView(submission) {
		return nil, errs.ErrForbidden
	}
	return submission, nil
}
