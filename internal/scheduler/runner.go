package scheduler

import (
	"context"
	"time"

	"intervention_backend/internal/events"
	"intervention_backend/internal/notification/outbox"
	"intervention_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const defaultLocalConcurrency = 4

// JobInserter persists new dispatch jobs.
type JobInserter interface {
	Insert(ctx context.Context, p outbox.InsertParams) (uuid.UUID, error)
}

// OutboxSubmitter persists dispatch jobs for the outbox poller of the
// scheduler process.
type OutboxSubmitter struct {
	repo JobInserter
}

func NewOutboxSubmitter(repo JobInserter) *OutboxSubmitter {
	return &OutboxSubmitter{repo: repo}
}

func (s *OutboxSubmitter) Submit(ctx context.Context, p outbox.InsertParams) (uuid.UUID, error) {
	return s.repo.Insert(ctx, p)
}

// LocalQueue is the outbox seen by the in-process runner.
type LocalQueue interface {
	JobInserter
	ClaimStore
}

// LocalRunner delivers dispatch jobs inside the API process when no redis is
// configured. Submitted jobs are persisted first and picked up by the same
// claim loop that handles retries.
type LocalRunner struct {
	repo        LocalQueue
	bus         events.Bus
	log         *logger.Logger
	interval    time.Duration
	concurrency int
	wake        chan struct{}
}

func NewLocalRunner(repo LocalQueue, bus events.Bus, interval time.Duration, log *logger.Logger) *LocalRunner {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if log == nil {
		log = logger.Discard()
	}
	return &LocalRunner{
		repo:        repo,
		bus:         bus,
		log:         log,
		interval:    interval,
		concurrency: defaultLocalConcurrency,
		wake:        make(chan struct{}, 1),
	}
}

// Submit persists the job and wakes the claim loop.
func (r *LocalRunner) Submit(ctx context.Context, p outbox.InsertParams) (uuid.UUID, error) {
	id, err := r.repo.Insert(ctx, p)
	if err != nil {
		return uuid.Nil, err
	}
	select {
	case r.wake <- struct{}{}:
	default:
	}
	return id, nil
}

func (r *LocalRunner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-r.wake:
		}
		r.runDue(ctx)
	}
}

// runDue claims due jobs and delivers them with bounded concurrency.
func (r *LocalRunner) runDue(ctx context.Context) int {
	records, err := r.repo.ClaimPending(ctx, claimBatchSize)
	if err != nil {
		r.log.Warn("outbox claim failed", "error", err)
		return 0
	}
	if len(records) == 0 {
		return 0
	}

	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(r.concurrency)
	for _, rec := range records {
		g.Go(func() error {
			if err := r.bus.PublishSync(gctx, events.NewNotificationDispatchDue(rec.ID)); err != nil {
				// Only releases jobs whose delivery never started.
				msg := err.Error()
				if markErr := r.repo.MarkPending(gctx, rec.ID, &msg); markErr != nil {
					r.log.Error("failed to release dispatch job", "job_id", rec.ID, "error", markErr)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return len(records)
}
