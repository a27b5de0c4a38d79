package worker

import "context"

// IWorkerPool consumes submission ids from the queue and grades them
type IWorkerPool interface {
	// Run blocks until ctx is cancelled and every in-flight submission has finished
	Run(ctx context.Context) error

	// InFlight lists the submissions being graded right now
	InFlight() []int64
}
