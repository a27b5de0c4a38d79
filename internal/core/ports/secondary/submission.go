package secondary

import (
	"context"
	"time"

	"gitlab.com/autograder.net/internal/domain"
)

type SubmissionRepository interface {
	// CreateSubmission inserts a NEW submission and assigns its ID
	CreateSubmission(ctx context.Context, submission *domain.Submission) error

	// GetSubmission retrieves a submission by ID, errs.ErrNotFound when missing
	GetSubmission(ctx context.Context, submissionID int64) (*domain.Submission, error)

	// SaveSubmission writes the full row, fenced by the submission's attempt.
	// Returns errs.ErrClaimLost when the row was re-claimed by another attempt.
	SaveSubmission(ctx context.Context, submission *domain.Submission) error

	// ClaimSubmission moves a NEW submission to PROCESSING with the given total,
	// zeroes the counters, bumps the attempt and removes leftover details.
	// Returns errs.ErrAlreadyClaimed when the submission is not NEW anymore.
	ClaimSubmission(ctx context.Context, submissionID int64, total int) (*domain.Submission, error)

	// ListSubmissions lists submissions, newest first
	ListSubmissions(ctx context.Context, filter domain.SubmissionFilter) ([]*domain.Submission, error)

	// ResetStaleProcessing puts PROCESSING submissions not updated since cutoff back to NEW
	ResetStaleProcessing(ctx context.Context, cutoff time.Time, limit int) ([]int64, error)

	// TouchStaleNew retrieves NEW submissions not updated since cutoff and bumps their updated_at
	TouchStaleNew(ctx context.Context, cutoff time.Time, limit int) ([]int64, error)
}

type TestCaseRepository interface {
	// GetTestCasesByProblem retrieves the problem's test cases ordered by position
	GetTestCasesByProblem(ctx context.Context, problemID int64) ([]*domain.TestCase, error)
}

type SubmissionDetailRepository interface {
	// SaveDetail upserts the detail of one test case, fenced by the submission attempt
	SaveDetail(ctx context.Context, detail *domain.SubmissionDetail, attempt int) error

	// GetDetails retrieves the details of a submission ordered by test case position
	GetDetails(ctx context.Context, submissionID int64) ([]*domain.SubmissionDetail, error)
}
