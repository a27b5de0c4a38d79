package secondary

import "context"

// SubmissionHandler handles one delivered submission id.
// A nil return acknowledges the delivery, an error hands it back to the queue.
type SubmissionHandler func(ctx context.Context, submissionID int64) error

type SubmissionQueue interface {
	// Enqueue publishes a submission id for grading
	Enqueue(ctx context.Context, submissionID int64) error

	// Consume delivers ids to handler one at a time until ctx is done
	Consume(ctx context.Context, handler SubmissionHandler) error

	// Recover hands deliveries left unacknowledged by a previous run back to the queue
	Recover(ctx context.Context) (int, error)
}
