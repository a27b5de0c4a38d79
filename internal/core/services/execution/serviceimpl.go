package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"gitlab.com/autograder.net/internal/core/ports/primary"
	"gitlab.com/autograder.net/internal/core/ports/secondary"
	"gitlab.com/autograder.net/internal/domain"
	"gitlab.com/autograder.net/internal/static/errs"
)

var _ IExecutionService = (*ExecutionService)(nil)

type Options struct {
	MaxAttempts    int
	RetryBaseDelay time.Duration
}

type ExecutionService struct {
	submissionRepo secondary.SubmissionRepository
	testCaseRepo   secondary.TestCaseRepository
	detailRepo     secondary.SubmissionDetailRepository
	sandbox        secondary.Sandbox
	publisher      ResultPublisher
	opts           Options
	logger         primary.Logger
}

func NewExecutionService(
	submissionRepo secondary.SubmissionRepository,
	testCaseRepo secondary.TestCaseRepository,
	detailRepo secondary.SubmissionDetailRepository,
	sandbox secondary.Sandbox,
	publisher ResultPublisher,
	opts Options,
	logger primary.Logger,
) *ExecutionService {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 500 * time.Millisecond
	}
	return &ExecutionService{
		submissionRepo: submissionRepo,
		testCaseRepo:   testCaseRepo,
		detailRepo:     detailRepo,
		sandbox:        sandbox,
		publisher:      publisher,
		opts:           opts,
		logger:         logger,
	}
}

func (s *ExecutionService) ProcessSubmission(ctx context.Context, submissionID int64) error {
	submission, err := s.submissionRepo.GetSubmission(ctx, submissionID)
	if err != nil {
		return fmt.Errorf("failed to load submission %d: %w", submissionID, err)
	}
	if submission.Status != domain.SubmissionStatusNew {
		s.logger.Info("Ignoring duplicate delivery", "submissionId", submissionID, "status", submission.Status)
		return fmt.Errorf("submission %d is %s: %w", submissionID, submission.Status, errs.ErrAlreadyClaimed)
	}

	testCases, err := s.testCaseRepo.GetTestCasesByProblem(ctx, submission.ProblemID)
	if err != nil {
		return fmt.Errorf("failed to load test cases of problem %d: %w", submission.ProblemID, err)
	}

	submission, err = s.submissionRepo.ClaimSubmission(ctx, submissionID, len(testCases))
	if err != nil {
		return err
	}

	s.logger.Info("Grading submission",
		"submissionId", submissionID,
		"problemId", submission.ProblemID,
		"language", submission.Language,
		"testCases", len(testCases),
		"attempt", submission.Attempt)

	for _, tc := range testCases {
		if err := s.runTestCase(ctx, submission, tc); err != nil {
			return err
		}
	}

	submission.Finish()
	if err := s.submissionRepo.SaveSubmission(ctx, submission); err != nil {
		return fmt.Errorf("failed to finish submission %d: %w", submissionID, err)
	}

	s.logger.Info("Submission graded",
		"submissionId", submissionID,
		"correct", submission.CorrectTestCases,
		"total", submission.TotalTestCases)
	s.publisher.PublishFinal(ctx, submissionID)
	return nil
}

func (s *ExecutionService) runTestCase(ctx context.Context, submission *domain.Submission, tc *domain.TestCase) error {
	detail := domain.NewSubmissionDetail(submission.ID, tc)

	result, err := s.execute(ctx, &domain.ExecutionRequest{
		Language: submission.Language,
		Version:  submission.Version,
		Filename: submission.Filename,
		Code:     submission.Code,
		Stdin:    tc.Input,
	})
	switch {
	case err != nil:
		// a shutdown is not the student's fault; leave the submission for the sweep
		if ctx.Err() != nil {
			return fmt.Errorf("grading of submission %d interrupted: %w", submission.ID, ctx.Err())
		}
		s.logger.Warn("Sandbox failed for test case",
			"submissionId", submission.ID,
			"testCaseId", tc.ID,
			"error", err)
		detail.Error(err.Error())
	case strings.TrimSpace(result.Stderr) != "":
		detail.Error(result.Stderr)
	default:
		actual := strings.TrimSuffix(result.Stdout, "\n")
		if actual == tc.ExpectedOutput {
			detail.Pass(actual)
		} else {
			detail.Fail(actual)
		}
	}

	if err := s.detailRepo.SaveDetail(ctx, detail, submission.Attempt); err != nil {
		return fmt.Errorf("failed to save detail of test case %d: %w", tc.ID, err)
	}

	submission.RecordResult(detail.Passed())
	if err := s.submissionRepo.SaveSubmission(ctx, submission); err != nil {
		return fmt.Errorf("failed to save progress of submission %d: %w", submission.ID, err)
	}

	s.logger.Debug("Test case judged",
		"submissionId", submission.ID,
		"testCaseId", tc.ID,
		"passed", detail.Passed(),
		"processed", submission.ProcessedTestCases)
	return nil
}

// execute retries an unavailable sandbox with exponential backoff. Rejected and
// protocol errors are returned on the first occurrence.
func (s *ExecutionService) execute(ctx context.Context, req *domain.ExecutionRequest) (*domain.ExecutionResult, error) {
	var (
		result   *domain.ExecutionResult
		attempts int
	)

	operation := func() error {
		attempts++
		res, err := s.sandbox.Execute(ctx, req)
		if err == nil {
			result = res
			return nil
		}
		if errors.Is(err, errs.ErrSandboxUnavailable) {
			s.logger.Warn("Sandbox unavailable", "attempt", attempts, "maxAttempts", s.opts.MaxAttempts, "error", err)
			return err
		}
		return backoff.Permanent(err)
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = s.opts.RetryBaseDelay
	expBackoff.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(s.opts.MaxAttempts-1)), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		if errors.Is(err, errs.ErrSandboxUnavailable) {
			return nil, fmt.Errorf("gave up after %d attempt(s): %w", attempts, err)
		}
		return nil, err
	}
	return result, nil
}
