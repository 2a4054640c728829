// Package outbox persists notification dispatch jobs so deferred delivery
// survives restarts and can be picked up by a separate worker process.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"intervention_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Status is the state of a dispatch job:
//
//	pending -> enqueued -> delivering -> completed | completed_with_failures
//
// A job whose context could not be resolved goes back to pending with a later
// run_at. Once delivering, a job never returns to pending: emails may already
// have gone out, so an interrupted delivery is closed by RecoverStale instead
// of being sent again.
type Status string

const (
	StatusPending               Status = "pending"
	StatusEnqueued              Status = "enqueued"
	StatusDelivering            Status = "delivering"
	StatusCompleted             Status = "completed"
	StatusCompletedWithFailures Status = "completed_with_failures"

	errRepoNotConfigured = "outbox repository not configured"

	// InterruptedDeliveryError is recorded on delivering jobs closed by RecoverStale.
	InterruptedDeliveryError = "delivery interrupted before completion"
)

// KindSchedulingEmail is the job kind for scheduling emails.
const KindSchedulingEmail = "intervention.scheduling.email"

// IsTerminal reports whether no further delivery happens for a job in s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCompletedWithFailures
}

// Record is a persisted dispatch job.
type Record struct {
	ID             uuid.UUID
	TeamID         *uuid.UUID
	InterventionID uuid.UUID
	Kind           string
	Payload        json.RawMessage
	RunAt          time.Time
	Status         Status
	Attempts       int
	SentCount      int
	FailedCount    int
}

// InsertParams describes a new dispatch job.
type InsertParams struct {
	TeamID         *uuid.UUID
	InterventionID uuid.UUID
	Kind           string
	Payload        any
	RunAt          time.Time
}

// DB is the part of pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository stores dispatch jobs in postgres.
type Repository struct {
	pool DB
}

// New creates a new outbox repository.
func New(pool *pgxpool.Pool) *Repository {
	return NewWithDB(pool)
}

// NewWithDB builds a repository over any DB implementation.
func NewWithDB(db DB) *Repository {
	return &Repository{pool: db}
}

const (
	markPendingQuery = `UPDATE notification_dispatch_jobs
		 SET status = 'pending', last_error = $2, updated_at = now()
		 WHERE id = $1 AND status = 'enqueued'`

	markDeliveringQuery = `UPDATE notification_dispatch_jobs
		 SET status = 'delivering', attempts = attempts + 1, updated_at = now()
		 WHERE id = $1 AND status IN ('pending', 'enqueued')`

	requeueStaleQuery = `UPDATE notification_dispatch_jobs
		 SET status = 'pending', updated_at = now()
		 WHERE status = 'enqueued' AND updated_at < $1`

	closeInterruptedQuery = `UPDATE notification_dispatch_jobs
		 SET status = 'completed_with_failures', last_error = $2, updated_at = now()
		 WHERE status = 'delivering' AND updated_at < $1`
)

const recordColumns = `id, team_id, intervention_id, kind, payload, run_at, status, attempts, sent_count, failed_count`

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec    Record
		status string
	)
	err := row.Scan(&rec.ID, &rec.TeamID, &rec.InterventionID, &rec.Kind, &rec.Payload, &rec.RunAt,
		&status, &rec.Attempts, &rec.SentCount, &rec.FailedCount)
	rec.Status = Status(status)
	return rec, err
}

// Insert persists a pending job and returns its id.
func (r *Repository) Insert(ctx context.Context, p InsertParams) (uuid.UUID, error) {
	if r == nil || r.pool == nil {
		return uuid.Nil, errors.New(errRepoNotConfigured)
	}
	if p.InterventionID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("interventionId is required")
	}
	if p.Kind == "" {
		return uuid.Nil, fmt.Errorf("kind is required")
	}
	if p.RunAt.IsZero() {
		p.RunAt = time.Now().UTC()
	}

	payloadBytes, err := json.Marshal(p.Payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal payload: %w", err)
	}

	var id uuid.UUID
	err = r.pool.QueryRow(ctx,
		`INSERT INTO notification_dispatch_jobs (team_id, intervention_id, kind, payload, run_at, status)
		 VALUES ($1, $2, $3, $4, $5, 'pending')
		 RETURNING id`,
		p.TeamID, p.InterventionID, p.Kind, payloadBytes, p.RunAt,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert dispatch job: %w", err)
	}
	return id, nil
}

// GetByID loads a job.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Record, error) {
	if r == nil || r.pool == nil {
		return Record{}, errors.New(errRepoNotConfigured)
	}
	rec, err := scanRecord(r.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM notification_dispatch_jobs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, apperr.NotFound("dispatch job not found")
		}
		return Record{}, fmt.Errorf("get dispatch job: %w", err)
	}
	return rec, nil
}

// ClaimPending moves up to limit due pending jobs to enqueued and returns
// them. Concurrent pollers never claim the same job.
func (r *Repository) ClaimPending(ctx context.Context, limit int) ([]Record, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}
	if limit < 1 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `WITH cte AS (
		SELECT id
		FROM notification_dispatch_jobs
		WHERE status = 'pending' AND run_at <= now()
		ORDER BY run_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	)
	UPDATE notification_dispatch_jobs j
	SET status = 'enqueued', updated_at = now()
	FROM cte
	WHERE j.id = cte.id
	RETURNING j.id, j.team_id, j.intervention_id, j.kind, j.payload, j.run_at, j.status, j.attempts, j.sent_count, j.failed_count`, limit)
	if err != nil {
		return nil, fmt.Errorf("claim dispatch jobs: %w", err)
	}
	defer rows.Close()

	var results []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dispatch job: %w", err)
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

// MarkPending releases a claimed job back to the poller, e.g. when
// enqueueing failed. Only enqueued jobs move; a job whose delivery started
// stays where it is.
func (r *Repository) MarkPending(ctx context.Context, id uuid.UUID, lastError *string) error {
	return r.exec(ctx, markPendingQuery, id, lastError)
}

// MarkDelivering records the start of a delivery attempt. ok is false when
// the job is already delivering or finished, so each attempt sends at most
// once.
func (r *Repository) MarkDelivering(ctx context.Context, id uuid.UUID) (bool, error) {
	if r == nil || r.pool == nil {
		return false, errors.New(errRepoNotConfigured)
	}
	tag, err := r.pool.Exec(ctx, markDeliveringQuery, id)
	if err != nil {
		return false, fmt.Errorf("mark dispatch job delivering: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ScheduleRetry puts a job back to pending to be picked up again at runAt.
func (r *Repository) ScheduleRetry(ctx context.Context, id uuid.UUID, runAt time.Time, lastError string) error {
	return r.exec(ctx,
		`UPDATE notification_dispatch_jobs
		 SET status = 'pending', run_at = $2, last_error = $3, updated_at = now()
		 WHERE id = $1`,
		id, runAt, lastError,
	)
}

// MarkCompleted stores the delivery summary. Any failed recipient makes the
// job completed_with_failures.
func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID, sent, failed int, lastError *string) error {
	status := StatusCompleted
	if failed > 0 {
		status = StatusCompletedWithFailures
	}
	return r.exec(ctx,
		`UPDATE notification_dispatch_jobs
		 SET status = $2, sent_count = $3, failed_count = $4, last_error = $5, updated_at = now()
		 WHERE id = $1`,
		id, string(status), sent, failed, lastError,
	)
}

// MarkAbandoned closes a job whose context could never be resolved.
func (r *Repository) MarkAbandoned(ctx context.Context, id uuid.UUID, lastError string) error {
	return r.exec(ctx,
		`UPDATE notification_dispatch_jobs
		 SET status = 'completed_with_failures', last_error = $2, updated_at = now()
		 WHERE id = $1`,
		id, lastError,
	)
}

// DeleteFinishedBefore removes finished jobs last updated before the given
// cut-offs and returns how many were deleted.
func (r *Repository) DeleteFinishedBefore(ctx context.Context, completedBefore, failedBefore time.Time) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, errors.New(errRepoNotConfigured)
	}
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM notification_dispatch_jobs
		 WHERE (status = 'completed' AND updated_at < $1)
		    OR (status = 'completed_with_failures' AND updated_at < $2)`,
		completedBefore, failedBefore,
	)
	if err != nil {
		return 0, fmt.Errorf("delete finished dispatch jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RecoverStale handles jobs abandoned by a crashed process. Enqueued jobs
// not touched since staleBefore go back to pending. Delivering jobs are
// closed as completed_with_failures without sending again.
func (r *Repository) RecoverStale(ctx context.Context, staleBefore time.Time) (requeued, closed int64, err error) {
	if r == nil || r.pool == nil {
		return 0, 0, errors.New(errRepoNotConfigured)
	}
	tag, err := r.pool.Exec(ctx, requeueStaleQuery, staleBefore)
	if err != nil {
		return 0, 0, fmt.Errorf("requeue stale dispatch jobs: %w", err)
	}
	requeued = tag.RowsAffected()

	tag, err = r.pool.Exec(ctx, closeInterruptedQuery, staleBefore, InterruptedDeliveryError)
	if err != nil {
		return requeued, 0, fmt.Errorf("close interrupted dispatch jobs: %w", err)
	}
	return requeued, tag.RowsAffected(), nil
}

func (r *Repository) exec(ctx context.Context, query string, args ...any) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update dispatch job: %w", err)
	}
	return nil
}
