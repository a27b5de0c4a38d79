package execution

import (
	"context"
)

// IExecutionService drives one submission through all of its test cases
type IExecutionService interface {
	// ProcessSubmission grades a delivered submission.
	// errs.ErrNotFound, errs.ErrAlreadyClaimed and errs.ErrClaimLost mean the delivery
	// must be dropped; any other error means the job was aborted.
	ProcessSubmission(ctx context.Context, submissionID int64) error
}

// ResultPublisher is told once a submission is DONE. Interim progress is only
// read on demand from the saved counters.
type ResultPublisher interface {
	PublishFinal(ctx context.Context, submissionID int64)
}
