package scheduler

import (
	"context"
	"time"

	"intervention_backend/platform/logger"
)

const (
	defaultJobCleanupInterval    = 5 * time.Minute
	defaultStaleJobAfter         = 15 * time.Minute
	defaultCompletedJobRetention = 14 * 24 * time.Hour
	defaultFailedJobRetention    = 30 * 24 * time.Hour
)

// JobJanitor removes old finished dispatch jobs and recovers jobs left
// behind by a crashed process.
type JobJanitor interface {
	DeleteFinishedBefore(ctx context.Context, completedBefore, failedBefore time.Time) (int64, error)
	RecoverStale(ctx context.Context, staleBefore time.Time) (requeued, closed int64, err error)
}

// DispatchJobCleanup periodically recovers stale dispatch jobs and removes
// old finished ones.
type DispatchJobCleanup struct {
	repo               JobJanitor
	log                *logger.Logger
	interval           time.Duration
	staleAfter         time.Duration
	completedRetention time.Duration
	failedRetention    time.Duration
	now                func() time.Time
}

func NewDispatchJobCleanup(repo JobJanitor, log *logger.Logger, interval, staleAfter, completedRetention, failedRetention time.Duration) *DispatchJobCleanup {
	if interval <= 0 {
		interval = defaultJobCleanupInterval
	}
	if staleAfter <= 0 {
		staleAfter = defaultStaleJobAfter
	}
	if completedRetention <= 0 {
		completedRetention = defaultCompletedJobRetention
	}
	if failedRetention <= 0 {
		failedRetention = defaultFailedJobRetention
	}
	if log == nil {
		log = logger.Discard()
	}

	return &DispatchJobCleanup{
		repo:               repo,
		log:                log,
		interval:           interval,
		staleAfter:         staleAfter,
		completedRetention: completedRetention,
		failedRetention:    failedRetention,
		now:                time.Now,
	}
}

func (c *DispatchJobCleanup) Run(ctx context.Context) {
	if c == nil || c.repo == nil {
		return
	}

	c.cleanup(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *DispatchJobCleanup) cleanup(ctx context.Context) {
	now := c.now()

	requeued, closed, err := c.repo.RecoverStale(ctx, now.Add(-c.staleAfter))
	if err != nil {
		c.log.Warn("stale dispatch job recovery failed", "error", err)
	} else if requeued > 0 || closed > 0 {
		c.log.Info("recovered stale dispatch jobs", "requeued", requeued, "closed", closed)
	}

	deleted, err := c.repo.DeleteFinishedBefore(ctx, now.Add(-c.completedRetention), now.Add(-c.failedRetention))
	if err != nil {
		c.log.Warn("dispatch job cleanup failed", "error", err)
		return
	}

	if deleted > 0 {
		c.log.Info("dispatch job cleanup deleted finished jobs", "deleted", deleted)
	}
}
