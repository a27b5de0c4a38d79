// Package submissionqueue is a durable Redis work queue of submission ids.
//
// Ids are pushed on "<key>:pending". A consumer atomically moves one id into its own
// "<key>:processing:<consumer>" list and removes it from there once handled, so an
// id survives a crash of the consumer and is handed back by Recover on restart.
package submissionqueue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"gitlab.com/autograder.net/internal/config"
	"gitlab.com/autograder.net/internal/core/ports/primary"
	"gitlab.com/autograder.net/internal/core/ports/secondary"
)

const (
	defaultBlockTimeout = time.Second
	ackTimeout          = 5 * time.Second
	errorPause          = time.Second
)

type Queue struct {
	client        *redis.Client
	pendingKey    string
	processingKey string
	requeueDelay  time.Duration
	blockTimeout  time.Duration
	logger        primary.Logger
}

var _ secondary.SubmissionQueue = &Queue{}

func NewQueue(client *redis.Client, cfg *config.QueueConfig, logger primary.Logger) *Queue {
	return &Queue{
		client:        client,
		pendingKey:    cfg.RedisKey + ":pending",
		processingKey: fmt.Sprintf("%s:processing:%s", cfg.RedisKey, cfg.ConsumerID),
		requeueDelay:  cfg.RequeueDelay,
		blockTimeout:  defaultBlockTimeout,
		logger:        logger,
	}
}

func (q *Queue) Enqueue(ctx context.Context, submissionID int64) error {
	if err := q.client.LPush(ctx, q.pendingKey, submissionID).Err(); err != nil {
		q.logger.Error("Failed to enqueue submission", "submissionId", submissionID, "error", err)
		return fmt.Errorf("failed to enqueue submission %d: %w", submissionID, err)
	}
	return nil
}

// Consume blocks until ctx is done. Deliveries are handled one at a time.
func (q *Queue) Consume(ctx context.Context, handler secondary.SubmissionHandler) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		raw, err := q.client.BRPopLPush(ctx, q.pendingKey, q.processingKey, q.blockTimeout).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			q.logger.Error("Failed to receive from queue", "error", err)
			sleep(ctx, errorPause)
			continue
		}

		submissionID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			q.logger.Error("Dropping malformed queue entry", "value", raw, "error", err)
			q.ack(ctx, raw)
			continue
		}

		if err := handler(ctx, submissionID); err != nil {
			q.logger.Warn("Submission handling failed, requeueing", "submissionId", submissionID, "error", err)
			q.nack(ctx, raw)
			continue
		}
		q.ack(ctx, raw)
	}
}

// Recover moves everything left in this consumer's processing list back to pending.
func (q *Queue) Recover(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := q.client.RPopLPush(ctx, q.processingKey, q.pendingKey).Err()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			q.logger.Error("Failed to recover unacknowledged submissions", "error", err)
			return moved, fmt.Errorf("failed to recover queue: %w", err)
		}
		moved++
	}
	if moved > 0 {
		q.logger.Info("Recovered unacknowledged submissions", "count", moved, "list", q.processingKey)
	}
	return moved, nil
}

// Pending reports how many ids wait for a consumer
func (q *Queue) Pending(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.pendingKey).Result()
}

func (q *Queue) ack(ctx context.Context, raw string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ackTimeout)
	defer cancel()
	if err := q.client.LRem(ctx, q.processingKey, 1, raw).Err(); err != nil {
		q.logger.Error("Failed to acknowledge submission", "value", raw, "error", err)
	}
}

// nack hands the id back after requeueDelay. On shutdown the id stays in the
// processing list and is recovered on the next start.
func (q *Queue) nack(ctx context.Context, raw string) {
	if !sleep(ctx, q.requeueDelay) {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ackTimeout)
	defer cancel()
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.processingKey, 1, raw)
		pipe.LPush(ctx, q.pendingKey, raw)
		return nil
	})
	if err != nil {
		q.logger.Error("Failed to requeue submission", "value", raw, "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
