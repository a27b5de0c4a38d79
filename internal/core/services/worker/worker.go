package worker

import (
	"context"
	"time"

	"gitlab.com/autograder.net/internal/core/ports/primary"
)

// worker is one consumer of the pool; it grades a single submission at a time
type worker struct {
	id     int
	pool   *WorkerPool
	logger primary.Logger
}

func newWorker(id int, pool *WorkerPool) *worker {
	return &worker{id: id, pool: pool, logger: pool.logger}
}

func (w *worker) run(ctx context.Context) error {
	w.logger.Debug("Worker started", "worker", w.id)
	defer w.logger.Debug("Worker stopped", "worker", w.id)
	return w.pool.queue.Consume(ctx, w.pool.handle)
}

// withGrace returns a context that outlives the cancellation of parent by grace.
func withGrace(parent context.Context, grace time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	stop := context.AfterFunc(parent, func() {
		timer := time.AfterFunc(grace, cancel)
		context.AfterFunc(ctx, func() { timer.Stop() })
	})
	return ctx, func() {
		stop()
		cancel()
	}
}
