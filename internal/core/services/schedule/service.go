package schedule

import (
	"context"
)

// SweepResult counts what one recovery pass did
type SweepResult struct {
	Reset    int
	Requeued int
}

// IRecoveryService brings back submissions a crashed worker or a lost enqueue left behind
type IRecoveryService interface {
	// Sweep resets stale PROCESSING submissions to NEW and re-enqueues every stale NEW one
	Sweep(ctx context.Context) (SweepResult, error)
}
