package main

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"

	"gitlab.com/autograder.net/internal/adapter/logging"
	natsbroadcaster "gitlab.com/autograder.net/internal/adapter/nats/broadcaster"
	"gitlab.com/autograder.net/internal/adapter/piston"
	"gitlab.com/autograder.net/internal/adapter/postgres"
	"gitlab.com/autograder.net/internal/adapter/postgres/detailrepository"
	"gitlab.com/autograder.net/internal/adapter/postgres/submissionrepository"
	"gitlab.com/autograder.net/internal/adapter/postgres/testcaserepository"
	redisqueue "gitlab.com/autograder.net/internal/adapter/redis/submissionqueue"
	sqsqueue "gitlab.com/autograder.net/internal/adapter/sqs/submissionqueue"
	"gitlab.com/autograder.net/internal/adapter/websocket/hub"
	"gitlab.com/autograder.net/internal/config"
	"gitlab.com/autograder.net/internal/core/ports/secondary"
	"gitlab.com/autograder.net/internal/core/services/execution"
	"gitlab.com/autograder.net/internal/core/services/notifier"
	"gitlab.com/autograder.net/internal/core/services/schedule"
	"gitlab.com/autograder.net/internal/core/services/submission"
	"gitlab.com/autograder.net/internal/core/services/worker"
	"gitlab.com/autograder.net/internal/handlers"
	"gitlab.com/autograder.net/internal/schedulerengine"
)

// app holds the wired adapters shared by the commands
type app struct {
	cfg    *config.AppConfig
	logger *logging.ZapLogger

	db          *sqlx.DB
	redisClient *redis.Client
	nc          *nats.Conn

	submissionRepo *submissionrepository.SubmissionRepository
	testCaseRepo   *testcaserepository.TestCaseRepository
	detailRepo     *detailrepository.DetailRepository
	queue          secondary.SubmissionQueue
	sandbox        *piston.CachedClient
	hub            *hub.Hub
	notifier       *notifier.NotifierService
}

func newApp(ctx context.Context, cfg *config.AppConfig, logger *logging.ZapLogger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	db, err := postgres.Open(cfg.PostgresConfig)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.submissionRepo = submissionrepository.NewSubmissionRepository(db, logger)
	a.testCaseRepo = testcaserepository.NewTestCaseRepository(db, logger)
	a.detailRepo = detailrepository.NewDetailRepository(db, logger)

	if err := a.openQueue(ctx); err != nil {
		a.close()
		return nil, err
	}

	a.sandbox = piston.NewCachedClient(piston.NewClient(cfg.SandboxConfig, logger), cfg.SandboxConfig.RuntimeCacheTTL, logger)
	if err := a.sandbox.Warm(ctx); err != nil {
		logger.Warn("Failed to warm runtime cache", "error", err)
	}

	a.hub = hub.NewHub(logger)
	a.notifier = notifier.NewNotifierService(a.submissionRepo, a.detailRepo, logger, a.hub)
	if cfg.NatsConfig.Enabled() {
		nc, err := natsbroadcaster.Connect(cfg.NatsConfig, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		a.nc = nc
		a.notifier.AddBroadcaster(natsbroadcaster.NewBroadcaster(nc, cfg.NatsConfig, logger))
	}
	return a, nil
}

func (a *app) openQueue(ctx context.Context) error {
	switch a.cfg.QueueConfig.Backend {
	case config.QueueBackendRedis:
		a.redisClient = redis.NewClient(&redis.Options{
			Addr:     a.cfg.RedisConfig.Url,
			Password: a.cfg.RedisConfig.Password,
			DB:       a.cfg.RedisConfig.DB,
		})
		if err := a.redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.queue = redisqueue.NewQueue(a.redisClient, a.cfg.QueueConfig, a.logger)
	case config.QueueBackendSQS:
		q, err := sqsqueue.NewQueue(ctx, a.cfg.QueueConfig, a.logger)
		if err != nil {
			return err
		}
		a.queue = q
	default:
		return fmt.Errorf("unknown queue backend %q", a.cfg.QueueConfig.Backend)
	}
	a.logger.Info("Queue ready", "backend", a.cfg.QueueConfig.Backend, "consumer", a.cfg.QueueConfig.ConsumerID)
	return nil
}

func (a *app) submissionService() *submission.SubmissionService {
	return submission.NewSubmissionService(a.submissionRepo, a.detailRepo, a.queue, a.sandbox, a.notifier, a.logger)
}

func (a *app) workerPool() *worker.WorkerPool {
	executor := execution.NewExecutionService(
		a.submissionRepo,
		a.testCaseRepo,
		a.detailRepo,
		a.sandbox,
		a.notifier,
		execution.Options{
			MaxAttempts:    a.cfg.SandboxConfig.MaxAttempts,
			RetryBaseDelay: a.cfg.SandboxConfig.RetryBaseDelay,
		},
		a.logger,
	)
	return worker.NewWorkerPool(a.queue, executor, a.cfg.WorkerConfig, a.logger)
}

func (a *app) recovery() *schedule.RecoveryService {
	return schedule.NewRecoveryService(a.submissionRepo, a.queue, a.cfg.SweepConfig, a.logger)
}

func (a *app) schedulerEngine() *schedulerengine.SchedulerEngine {
	return schedulerengine.NewSchedulerEngine(a.cfg.SweepConfig.Interval, a.recovery(), a.logger)
}

func (a *app) healthChecks() map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{
		"postgres": a.db.PingContext,
	}
	if a.redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return a.redisClient.Ping(ctx).Err()
		}
	}
	if a.nc != nil {
		checks["nats"] = func(ctx context.Context) error {
			if !a.nc.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		}
	}
	return checks
}

func (a *app) close() {
	if a.hub != nil {
		a.hub.Close()
	}
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			a.logger.Warn("Failed to drain nats connection", "error", err)
		}
	}
	if a.redisClient != nil {
		_ = a.redisClient.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
