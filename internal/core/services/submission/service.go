package submission

import (
	"context"

	"gitlab.com/autograder.net/internal/domain"
)

// CreateSubmissionInput is what a student hands in
type CreateSubmissionInput struct {
	ProblemID int64
	Language  string
	Version   string
	Filename  string
	Code      string
}

// ListSubmissionsInput narrows a listing. Own restricts it to the caller's submissions.
type ListSubmissionsInput struct {
	ProblemID *int64
	Own       bool
	PageNo    int
	PageSize  int
}

// ISubmissionService is the intake side of grading. Every call is authorized against the principal.
type ISubmissionService interface {
	// CreateSubmission stores a NEW submission and enqueues it for grading
	CreateSubmission(ctx context.Context, principal *domain.Principal, in CreateSubmissionInput) (*domain.Submission, error)

	// GetSnapshot returns the submission with its details
	GetSnapshot(ctx context.Context, principal *domain.Principal, submissionID int64) (*domain.SubmissionSnapshot, error)

	// GetDetails returns the per test case results of a submission
	GetDetails(ctx context.Context, principal *domain.Principal, submissionID int64) ([]*domain.SubmissionDetail, error)

	ListSubmissions(ctx context.Context, principal *domain.Principal, in ListSubmissionsInput) ([]*domain.Submission, error)

	// RequestBroadcast pushes the current snapshot of a submission to live viewers
	RequestBroadcast(ctx context.Context, principal *domain.Principal, submissionID int64) error

	ListRuntimes(ctx context.Context) ([]domain.Runtime, error)
	InvalidateRuntimes(ctx context.Context, principal *domain.Principal) error
}
