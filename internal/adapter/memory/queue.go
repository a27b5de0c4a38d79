package memory

import (
	"context"
	"sync"

	"gitlab.com/autograder.net/internal/core/ports/secondary"
)

// Queue is an unbounded in-process queue that records what happened to each delivery
type Queue struct {
	mu       sync.Mutex
	items    []int64
	signal   chan struct{}
	acked    []int64
	requeued []int64
}

var _ secondary.SubmissionQueue = &Queue{}

func NewQueue() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

func (q *Queue) Enqueue(ctx context.Context, submissionID int64) error {
	q.mu.Lock()
	q.items = append(q.items, submissionID)
	q.mu.Unlock()
	q.wake()
	return nil
}

func (q *Queue) Consume(ctx context.Context, handler secondary.SubmissionHandler) error {
	for {
		id, ok := q.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-q.signal:
				continue
			}
		}

		if err := handler(ctx, id); err != nil {
			q.mu.Lock()
			q.requeued = append(q.requeued, id)
			q.mu.Unlock()
			if ctx.Err() != nil {
				return nil
			}
			_ = q.Enqueue(ctx, id)
			continue
		}
		q.mu.Lock()
		q.acked = append(q.acked, id)
		q.mu.Unlock()
	}
}

func (q *Queue) Recover(ctx context.Context) (int, error) {
	return 0, nil
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) Acked() []int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]int64(nil), q.acked...)
}

func (q *Queue) Requeued() []int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]int64(nil), q.requeued...)
}

func (q *Queue) pop() (int64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return 0, false
	}
	id := q.items[0]
	q.items = q.items[1:]
	if len(q.items) > 0 {
		q.wake()
	}
	return id, true
}

func (q *Queue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
