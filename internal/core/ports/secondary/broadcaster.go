package secondary

import (
	"context"

	"gitlab.com/autograder.net/internal/domain"
)

// SnapshotBroadcaster pushes snapshots to live viewers
type SnapshotBroadcaster interface {
	Broadcast(ctx context.Context, snapshot *domain.SubmissionSnapshot) error
}
