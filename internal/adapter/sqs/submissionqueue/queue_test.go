package submissionqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/autograder.net/internal/adapter/logging"
	"gitlab.com/autograder.net/internal/config"
)

type fakeSQS struct {
	mu       sync.Mutex
	sent     []string
	inbox    []types.Message
	deleted  []string
	released []string
}

func (f *fakeSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, aws.ToString(in.MessageBody))
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inbox) == 0 {
		return &sqs.ReceiveMessageOutput{}, nil
	}
	msg := f.inbox[0]
	f.inbox = f.inbox[1:]
	return &sqs.ReceiveMessageOutput{Messages: []types.Message{msg}}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) ChangeMessageVisibility(ctx context.Context, in *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, aws.ToString(in.ReceiptHandle))
	return &sqs.ChangeMessageVisibilityOutput{}, nil
}

func newTestQueue(fake *fakeSQS) *Queue {
	return newQueue(fake, &config.QueueConfig{SQS: &config.SQSConfig{QueueURL: "https://sqs.local/q"}}, logging.NewNopLogger())
}

func TestEnqueueSendsJSONBody(t *testing.T) {
	fake := &fakeSQS{}
	require.NoError(t, newTestQueue(fake).Enqueue(context.Background(), 42))
	assert.Equal(t, []string{`{"submissionId":42}`}, fake.sent)
}

func TestConsumeAcksAndReleases(t *testing.T) {
	fake := &fakeSQS{inbox: []types.Message{
		{Body: aws.String(`{"submissionId":1}`), ReceiptHandle: aws.String("r1")},
		{Body: aws.String(`garbage`), ReceiptHandle: aws.String("r2")},
		{Body: aws.String(`{"submissionId":3}`), ReceiptHandle: aws.String("r3")},
	}}
	q := newTestQueue(fake)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var handled []int64
	err := q.Consume(ctx, func(ctx context.Context, id int64) error {
		handled = append(handled, id)
		if id == 3 {
			cancel()
			return errors.New("store unavailable")
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 3}, handled)
	assert.Equal(t, []string{"r1", "r2"}, fake.deleted)
	assert.Equal(t, []string{"r3"}, fake.released)
}

func TestRecoverIsNoop(t *testing.T) {
	n, err := newTestQueue(&fakeSQS{}).Recover(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
