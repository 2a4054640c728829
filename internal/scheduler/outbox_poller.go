package scheduler

import (
	"context"
	"time"

	"intervention_backend/internal/notification/outbox"
	"intervention_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	defaultPollInterval = 2 * time.Second
	claimBatchSize      = 50
)

// ClaimStore hands out due dispatch jobs.
type ClaimStore interface {
	ClaimPending(ctx context.Context, limit int) ([]outbox.Record, error)
	MarkPending(ctx context.Context, id uuid.UUID, lastError *string) error
}

// DispatchEnqueuer queues one claimed job for the worker.
type DispatchEnqueuer interface {
	EnqueueDispatch(ctx context.Context, jobID uuid.UUID, runAt time.Time) error
}

// OutboxPoller moves due dispatch jobs from postgres onto the asynq queue.
type OutboxPoller struct {
	repo     ClaimStore
	queue    DispatchEnqueuer
	log      *logger.Logger
	interval time.Duration
}

func NewOutboxPoller(repo ClaimStore, queue DispatchEnqueuer, interval time.Duration, log *logger.Logger) *OutboxPoller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if log == nil {
		log = logger.Discard()
	}
	return &OutboxPoller{repo: repo, queue: queue, log: log, interval: interval}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	if p == nil || p.repo == nil || p.queue == nil {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		p.poll(ctx)
	}
}

// poll claims one batch. Jobs that cannot be queued go back to pending.
func (p *OutboxPoller) poll(ctx context.Context) int {
	records, err := p.repo.ClaimPending(ctx, claimBatchSize)
	if err != nil {
		p.log.Warn("outbox claim failed", "error", err)
		return 0
	}

	queued := 0
	for _, rec := range records {
		if err := p.queue.EnqueueDispatch(ctx, rec.ID, rec.RunAt); err != nil {
			msg := err.Error()
			if markErr := p.repo.MarkPending(ctx, rec.ID, &msg); markErr != nil {
				p.log.Error("failed to release dispatch job", "job_id", rec.ID, "error", markErr)
			}
			continue
		}
		queued++
	}
	if queued > 0 {
		p.log.Debug("dispatch jobs queued", "count", queued)
	}
	return queued
}
