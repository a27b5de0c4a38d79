package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/autograder.net/internal/adapter/logging"
	"gitlab.com/autograder.net/internal/adapter/memory"
	"gitlab.com/autograder.net/internal/config"
	"gitlab.com/autograder.net/internal/domain"
	"gitlab.com/autograder.net/internal/static/errs"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newRecovery(store *memory.Store, queue *memory.Queue) *RecoveryService {
	svc := NewRecoveryService(store, queue, &config.SweepConfig{
		Interval:   time.Minute,
		StaleAfter: 10 * time.Minute,
		BatchSize:  100,
	}, logging.NewNopLogger())
	svc.now = func() time.Time { return epoch }
	return svc
}

func put(store *memory.Store, id int64, status domain.SubmissionStatus, updatedAt time.Time) {
	store.Put(domain.Submission{
		ID:                 id,
		ProblemID:          1,
		UserID:             1,
		Status:             status,
		TotalTestCases:     3,
		ProcessedTestCases: 1,
		Attempt:            1,
		UpdatedAt:          updatedAt,
	})
}

func TestSweepRecoversStaleSubmissions(t *testing.T) {
	store := memory.NewStore()
	store.SetClock(func() time.Time { return epoch })
	queue := memory.NewQueue()

	put(store, 1, domain.SubmissionStatusProcessing, epoch.Add(-time.Hour))
	put(store, 2, domain.SubmissionStatusProcessing, epoch.Add(-time.Minute))
	put(store, 3, domain.SubmissionStatusNew, epoch.Add(-time.Hour))
	put(store, 4, domain.SubmissionStatusNew, epoch)
	put(store, 5, domain.SubmissionStatusDone, epoch.Add(-time.Hour))

	result, err := newRecovery(store, queue).Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SweepResult{Reset: 1, Requeued: 2}, result)
	assert.Equal(t, 2, queue.Len())

	reset, err := store.GetSubmission(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionStatusNew, reset.Status)
	assert.Zero(t, reset.ProcessedTestCases)
	assert.Equal(t, 2, reset.Attempt)

	fresh, err := store.GetSubmission(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionStatusProcessing, fresh.Status)
}

func TestSweepDoesNotRequeueTwice(t *testing.T) {
	store := memory.NewStore()
	store.SetClock(func() time.Time { return epoch })
	queue := memory.NewQueue()
	put(store, 1, domain.SubmissionStatusNew, epoch.Add(-time.Hour))

	svc := newRecovery(store, queue)
	_, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	result, err := svc.Sweep(context.Background())
	require.NoError(t, err)

	assert.Zero(t, result.Requeued)
	assert.Equal(t, 1, queue.Len())
}

func TestSweepStoreFailure(t *testing.T) {
	store := memory.NewStore()
	store.FailAfter("ResetStaleProcessing", 0, errors.New("connection refused"))

	_, err := newRecovery(store, memory.NewQueue()).Sweep(context.Background())
	assert.ErrorIs(t, err, errs.ErrStoreUnavailable)
}
