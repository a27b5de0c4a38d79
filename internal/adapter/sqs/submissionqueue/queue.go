// Package submissionqueue is an Amazon SQS backed queue of submission ids.
// Redelivery of unacknowledged messages is left to the SQS visibility timeout.
package submissionqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"gitlab.com/autograder.net/internal/config"
	"gitlab.com/autograder.net/internal/core/ports/primary"
	"gitlab.com/autograder.net/internal/core/ports/secondary"
)

const (
	ackTimeout = 5 * time.Second
	errorPause = time.Second
)

type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, in *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

type message struct {
	SubmissionID int64 `json:"submissionId"`
}

type Queue struct {
	client            sqsAPI
	queueURL          string
	waitTimeSeconds   int32
	visibilityTimeout int32
	requeueDelay      time.Duration
	logger            primary.Logger
}

var _ secondary.SubmissionQueue = &Queue{}

// NewQueue loads the default AWS credential chain for the configured region
func NewQueue(ctx context.Context, cfg *config.QueueConfig, logger primary.Logger) (*Queue, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SQS.Region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return newQueue(sqs.NewFromConfig(awsCfg), cfg, logger), nil
}

func newQueue(client sqsAPI, cfg *config.QueueConfig, logger primary.Logger) *Queue {
	return &Queue{
		client:            client,
		queueURL:          cfg.SQS.QueueURL,
		waitTimeSeconds:   cfg.SQS.WaitTimeSeconds,
		visibilityTimeout: cfg.SQS.VisibilityTimeout,
		requeueDelay:      cfg.RequeueDelay,
		logger:            logger,
	}
}

func (q *Queue) Enqueue(ctx context.Context, submissionID int64) error {
	body, err := json.Marshal(message{SubmissionID: submissionID})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		q.logger.Error("Failed to send message", "submissionId", submissionID, "error", err)
		return fmt.Errorf("failed to enqueue submission %d: %w", submissionID, err)
	}
	return nil
}

func (q *Queue) Consume(ctx context.Context, handler secondary.SubmissionHandler) error {
	for ctx.Err() == nil {
		output, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(q.queueURL),
			MaxNumberOfMessages: 1,
			WaitTimeSeconds:     q.waitTimeSeconds,
			VisibilityTimeout:   q.visibilityTimeout,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			q.logger.Error("Failed to receive message", "error", err)
			pause(ctx, errorPause)
			continue
		}

		for _, msg := range output.Messages {
			var m message
			if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &m); err != nil || m.SubmissionID == 0 {
				q.logger.Error("Dropping malformed message", "body", aws.ToString(msg.Body), "error", err)
				q.delete(ctx, msg.ReceiptHandle)
				continue
			}

			if err := handler(ctx, m.SubmissionID); err != nil {
				q.logger.Warn("Submission handling failed, releasing message", "submissionId", m.SubmissionID, "error", err)
				q.release(ctx, msg.ReceiptHandle)
				continue
			}
			q.delete(ctx, msg.ReceiptHandle)
		}
	}
	return nil
}

// Recover is a no-op: SQS redelivers once the visibility timeout expires.
func (q *Queue) Recover(ctx context.Context) (int, error) {
	return 0, nil
}

func (q *Queue) delete(ctx context.Context, receipt *string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ackTimeout)
	defer cancel()
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: receipt,
	})
	if err != nil {
		q.logger.Error("Failed to delete message", "error", err)
	}
}

// release makes the message visible again after requeueDelay
func (q *Queue) release(ctx context.Context, receipt *string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ackTimeout)
	defer cancel()
	_, err := q.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(q.queueURL),
		ReceiptHandle:     receipt,
		VisibilityTimeout: int32(q.requeueDelay / time.Second),
	})
	if err != nil {
		q.logger.Error("Failed to release message", "error", err)
	}
}

func pause(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
