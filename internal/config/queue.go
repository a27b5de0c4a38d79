package config

import (
	"os"
	"time"

	"github.com/google/uuid"
)

const (
	QueueBackendRedis = "redis"
	QueueBackendSQS   = "sqs"
)

type QueueConfig struct {
	Backend      string
	ConsumerID   string
	RedisKey     string
	RequeueDelay time.Duration
	SQS          *SQSConfig
}

type SQSConfig struct {
	QueueURL          string
	Region            string
	WaitTimeSeconds   int32
	VisibilityTimeout int32
}

func NewQueueConfig() *QueueConfig {
	return &QueueConfig{
		Backend:      getString("QUEUE_BACKEND", QueueBackendRedis),
		ConsumerID:   consumerID(),
		RedisKey:     getString("QUEUE_REDIS_KEY", "submissions"),
		RequeueDelay: getDuration("QUEUE_REQUEUE_DELAY", time.Second),
		SQS: &SQSConfig{
			QueueURL:          getString("SQS_QUEUE_URL", ""),
			Region:            getString("AWS_REGION", "eu-west-2"),
			WaitTimeSeconds:   int32(getInt("SQS_WAIT_TIME_SECONDS", 5)),
			VisibilityTimeout: int32(getInt("SQS_VISIBILITY_TIMEOUT", 300)),
		},
	}
}

// consumerID identifies this process' processing list. It must be stable across
// restarts of the same worker so that unacknowledged deliveries are recovered.
func consumerID() string {
	if id := os.Getenv("WORKER_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return uuid.NewString()
}
