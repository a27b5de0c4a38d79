// Package broadcaster publishes submission snapshots over NATS and answers
// snapshot requests from trusted internal services.
package broadcaster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"gitlab.com/autograder.net/internal/config"
	"gitlab.com/autograder.net/internal/core/ports/primary"
	"gitlab.com/autograder.net/internal/core/ports/secondary"
	"gitlab.com/autograder.net/internal/domain"
	"gitlab.com/autograder.net/internal/static/errs"
)

const requestTimeout = 10 * time.Second

type publisher interface {
	Publish(subj string, data []byte) error
}

// Connect dials NATS with unlimited reconnects
func Connect(cfg *config.NatsConfig, logger primary.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.Url,
		nats.Name("autograder"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return nc, nil
}

type Broadcaster struct {
	nc      publisher
	subject string
	logger  primary.Logger
}

var _ secondary.SnapshotBroadcaster = &Broadcaster{}

func NewBroadcaster(nc *nats.Conn, cfg *config.NatsConfig, logger primary.Logger) *Broadcaster {
	return &Broadcaster{nc: nc, subject: cfg.Subject, logger: logger}
}

func (b *Broadcaster) Broadcast(ctx context.Context, snapshot *domain.SubmissionSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := b.nc.Publish(b.subject, data); err != nil {
		b.logger.Error("Failed to publish snapshot", "subject", b.subject, "error", err)
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	return nil
}

// SnapshotSource reads the current view of a submission
type SnapshotSource interface {
	GetSnapshot(ctx context.Context, submissionID int64) (*domain.SubmissionSnapshot, error)
}

type snapshotRequest struct {
	SubmissionID int64 `json:"submissionId"`
}

type snapshotReply struct {
	Snapshot *domain.SubmissionSnapshot `json:"snapshot,omitempty"`
	Error    string                     `json:"error,omitempty"`
}

// Responder answers request/reply snapshot lookups
type Responder struct {
	nc      *nats.Conn
	subject string
	source  SnapshotSource
	logger  primary.Logger
	sub     *nats.Subscription
}

func NewResponder(nc *nats.Conn, cfg *config.NatsConfig, source SnapshotSource, logger primary.Logger) *Responder {
	return &Responder{nc: nc, subject: cfg.SnapshotSubject, source: source, logger: logger}
}

// Start subscribes in a queue group so replicas share the load
func (r *Responder) Start() error {
	sub, err := r.nc.QueueSubscribe(r.subject, "autograder-snapshot", func(msg *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := msg.Respond(r.reply(ctx, msg.Data)); err != nil {
			r.logger.Warn("Failed to answer snapshot request", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.subject, err)
	}
	r.sub = sub
	r.logger.Info("Snapshot responder listening", "subject", r.subject)
	return nil
}

func (r *Responder) Stop() error {
	if r.sub == nil {
		return nil
	}
	return r.sub.Drain()
}

func (r *Responder) reply(ctx context.Context, data []byte) []byte {
	var req snapshotRequest
	var rep snapshotReply
	if err := json.Unmarshal(data, &req); err != nil || req.SubmissionID <= 0 {
		rep.Error = errs.ErrInvalidRequest.Error()
	} else if snapshot, err := r.source.GetSnapshot(ctx, req.SubmissionID); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			rep.Error = errs.ErrNotFound.Error()
		} else {
			r.logger.Error("Failed to load snapshot", "submissionId", req.SubmissionID, "error", err)
			rep.Error = errs.ErrStoreUnavailable.Error()
		}
	} else {
		rep.Snapshot = snapshot
	}

	out, err := json.Marshal(rep)
	if err != nil {
		return []byte(`{"error":"internal error"}`)
	}
	return out
}
