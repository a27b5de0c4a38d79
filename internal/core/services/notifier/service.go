package notifier

import (
	"context"

	"gitlab.com/autograder.net/internal/domain"
)

// INotifierService delivers submission snapshots to live viewers.
// It does no authorization; callers decide who may see what.
type INotifierService interface {
	// GetSnapshot reads the submission with its details in test case order
	GetSnapshot(ctx context.Context, submissionID int64) (*domain.SubmissionSnapshot, error)

	// Broadcast pushes a snapshot to every broadcaster, best-effort
	Broadcast(ctx context.Context, snapshot *domain.SubmissionSnapshot)

	// RequestSnapshot reads the current snapshot and broadcasts it
	RequestSnapshot(ctx context.Context, submissionID int64) (*domain.SubmissionSnapshot, error)

	// PublishFinal broadcasts the snapshot of a finished submission
	PublishFinal(ctx context.Context, submissionID int64)
}
