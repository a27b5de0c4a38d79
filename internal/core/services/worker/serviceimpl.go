package worker

import (
	"context"
	"errors"
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"

	"gitlab.com/autograder.net/internal/config"
	"gitlab.com/autograder.net/internal/core/ports/primary"
	"gitlab.com/autograder.net/internal/core/ports/secondary"
	"gitlab.com/autograder.net/internal/core/services/execution"
	"gitlab.com/autograder.net/internal/static/errs"
)

var _ IWorkerPool = (*WorkerPool)(nil)

type WorkerPool struct {
	queue         secondary.SubmissionQueue
	executor      execution.IExecutionService
	concurrency   int
	shutdownGrace time.Duration
	inFlight      mapset.Set[int64]
	logger        primary.Logger
}

func NewWorkerPool(
	queue secondary.SubmissionQueue,
	executor execution.IExecutionService,
	cfg *config.WorkerConfig,
	logger primary.Logger,
) *WorkerPool {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &WorkerPool{
		queue:         queue,
		executor:      executor,
		concurrency:   concurrency,
		shutdownGrace: cfg.ShutdownGrace,
		inFlight:      mapset.NewSet[int64](),
		logger:        logger,
	}
}

func (p *WorkerPool) Run(ctx context.Context) error {
	if n, err := p.queue.Recover(ctx); err != nil {
		p.logger.Error("Failed to recover unacknowledged submissions", "error", err)
	} else if n > 0 {
		p.logger.Info("Recovered submissions from a previous run", "count", n)
	}

	p.logger.Info("Worker pool started", "concurrency", p.concurrency)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.concurrency; i++ {
		w := newWorker(i, p)
		g.Go(func() error {
			return w.run(gctx)
		})
	}

	err := g.Wait()
	p.logger.Info("Worker pool stopped")
	return err
}

func (p *WorkerPool) InFlight() []int64 {
	ids := p.inFlight.ToSlice()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// handle maps the outcome of a grading job onto the queue contract:
// nil acknowledges, an error hands the id back.
func (p *WorkerPool) handle(ctx context.Context, submissionID int64) error {
	if !p.inFlight.Add(submissionID) {
		p.logger.Info("Submission already being graded by this process", "submissionId", submissionID)
		return nil
	}
	defer p.inFlight.Remove(submissionID)

	jobCtx, cancel := withGrace(ctx, p.shutdownGrace)
	defer cancel()

	err := p.executor.ProcessSubmission(jobCtx, submissionID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errs.ErrNotFound):
		p.logger.Warn("Dropping delivery of unknown submission", "submissionId", submissionID)
		return nil
	case errors.Is(err, errs.ErrAlreadyClaimed):
		return nil
	case errors.Is(err, errs.ErrClaimLost):
		p.logger.Warn("Submission was re-claimed while grading", "submissionId", submissionID, "error", err)
		return nil
	default:
		p.logger.Error("Grading aborted", "submissionId", submissionID, "error", err)
		return err
	}
}
