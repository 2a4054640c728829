package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"intervention_backend/internal/interventions/domain"
	"intervention_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	interventionNotFoundMsg = "intervention not found"
	slotLockedMsg           = "a time slot has already been confirmed for this intervention"
	scheduleFailedMsg       = "failed to schedule intervention"
)

// DB is the part of pgxpool.Pool the repository uses.
type DB interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides database operations for interventions, their time slots
// and audit comments.
type Repository struct {
	pool DB
}

// New creates a new interventions repository.
func New(pool *pgxpool.Pool) *Repository {
	return NewWithDB(pool)
}

// NewWithDB builds a repository over any DB implementation.
func NewWithDB(db DB) *Repository {
	return &Repository{pool: db}
}

// ScheduleCommand is the complete write of one scheduling action.
type ScheduleCommand struct {
	InterventionID uuid.UUID
	ActorID        uuid.UUID
	// ReplaceSlots deletes unconfirmed slots and inserts Slots. False for organize.
	ReplaceSlots bool
	Slots        []domain.TimeSlot
	// Comment is stored as an internal audit comment when non-empty.
	Comment string
	Now     time.Time
}

// ScheduleResult is the state after a committed scheduling action.
type ScheduleResult struct {
	Intervention   domain.Intervention
	PreviousStatus domain.Status
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	selectIntervention = `
	SELECT id, title, status, team_id, lot_id, lot_reference, urgency, created_at, updated_at
	FROM interventions WHERE id = $1`

	lockIntervention = selectIntervention + ` FOR UPDATE`

	selectedSlotExistsQuery = `
	SELECT EXISTS (
		SELECT 1 FROM intervention_time_slots WHERE intervention_id = $1 AND status = 'selected'
	)`

	deleteUnconfirmedSlotsQuery = `
	DELETE FROM intervention_time_slots
	WHERE intervention_id = $1 AND status IN ('pending', 'rejected')`

	insertSlotQuery = `
	INSERT INTO intervention_time_slots (
		id, intervention_id, slot_date, start_time, end_time, status, proposed_by, notes, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	updateStatusQuery = `
	UPDATE interventions SET status = $2, updated_at = $3 WHERE id = $1 RETURNING updated_at`

	insertAuditCommentQuery = `
	INSERT INTO intervention_comments (id, intervention_id, author_user_id, body, is_internal, created_at)
	VALUES ($1, $2, $3, $4, TRUE, $5)`

	listSlotsQuery = `
	SELECT id, intervention_id, slot_date, start_time, end_time, status, proposed_by, notes, created_at
	FROM intervention_time_slots
	WHERE intervention_id = $1 AND ($2::uuid[] IS NULL OR id = ANY($2))
	ORDER BY slot_date, start_time`

	selectDisplayNameQuery = `SELECT display_name FROM users WHERE id = $1`
)

func scanIntervention(ctx context.Context, q queryRower, query string, id uuid.UUID) (*domain.Intervention, error) {
	var (
		i      domain.Intervention
		status string
	)
	err := q.QueryRow(ctx, query, id).Scan(
		&i.ID, &i.Title, &status, &i.TeamID, &i.LotID, &i.LotReference, &i.Urgency, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(interventionNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get intervention: %w", err)
	}
	if i.Status, err = domain.ParseStatus(status); err != nil {
		return nil, fmt.Errorf("intervention %s has unknown status %q", id, status)
	}
	return &i, nil
}

// GetByID retrieves an intervention by its ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Intervention, error) {
	return scanIntervention(ctx, r.pool, selectIntervention, id)
}

// ApplyScheduling runs the slot replacement, status change and audit comment
// in one transaction. The intervention row is locked first so concurrent
// scheduling actions and slot selections on the same intervention serialize
// behind it. Guard failures are returned as typed errors; any other failure
// rolls back and is reported as a transient store error.
func (r *Repository) ApplyScheduling(ctx context.Context, cmd ScheduleCommand) (*ScheduleResult, error) {
	const op = "interventions.repository.ApplyScheduling"

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, storeFailure(op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanIntervention(ctx, tx, lockIntervention, cmd.InterventionID)
	if err != nil {
		return nil, passTypedOrWrap(op, err)
	}
	if err := domain.EnsureSchedulable(current.Status); err != nil {
		return nil, err
	}

	if cmd.ReplaceSlots {
		if err := replaceSlots(ctx, tx, cmd); err != nil {
			return nil, passTypedOrWrap(op, err)
		}
	}

	var updatedAt time.Time
	err = tx.QueryRow(ctx, updateStatusQuery, cmd.InterventionID, string(domain.StatusScheduling), cmd.Now).Scan(&updatedAt)
	if err != nil {
		return nil, storeFailure(op, fmt.Errorf("update status: %w", err))
	}

	if cmd.Comment != "" {
		if _, err := tx.Exec(ctx, insertAuditCommentQuery,
			uuid.New(), cmd.InterventionID, cmd.ActorID, cmd.Comment, cmd.Now,
		); err != nil {
			return nil, storeFailure(op, fmt.Errorf("insert comment: %w", err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeFailure(op, fmt.Errorf("commit: %w", err))
	}

	previous := current.Status
	current.Status = domain.StatusScheduling
	current.UpdatedAt = updatedAt
	return &ScheduleResult{Intervention: *current, PreviousStatus: previous}, nil
}

// replaceSlots refuses to touch a confirmed intervention, then swaps every
// unconfirmed slot for the new set.
func replaceSlots(ctx context.Context, tx pgx.Tx, cmd ScheduleCommand) error {
	var locked bool
	if err := tx.QueryRow(ctx, selectedSlotExistsQuery, cmd.InterventionID).Scan(&locked); err != nil {
		return fmt.Errorf("check selected slot: %w", err)
	}
	if locked {
		return apperr.StateConflict(slotLockedMsg)
	}

	if _, err := tx.Exec(ctx, deleteUnconfirmedSlotsQuery, cmd.InterventionID); err != nil {
		return fmt.Errorf("delete unconfirmed slots: %w", err)
	}

	for _, s := range cmd.Slots {
		if _, err := tx.Exec(ctx, insertSlotQuery,
			s.ID, s.InterventionID, s.Date, s.Start.String(), s.End.String(), string(s.Status), s.ProposedBy, s.Notes, s.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert slot: %w", err)
		}
	}
	return nil
}

// ListSlots returns the slots of an intervention, optionally restricted to ids.
func (r *Repository) ListSlots(ctx context.Context, interventionID uuid.UUID, ids []uuid.UUID) ([]domain.TimeSlot, error) {
	var filter []uuid.UUID
	if len(ids) > 0 {
		filter = ids
	}

	rows, err := r.pool.Query(ctx, listSlotsQuery, interventionID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list time slots: %w", err)
	}
	defer rows.Close()

	slots := make([]domain.TimeSlot, 0)
	for rows.Next() {
		var (
			s                 domain.TimeSlot
			start, end, state string
		)
		if err := rows.Scan(&s.ID, &s.InterventionID, &s.Date, &start, &end, &state, &s.ProposedBy, &s.Notes, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan time slot: %w", err)
		}
		if s.Start, err = domain.ParseClockTime(start); err != nil {
			return nil, err
		}
		if s.End, err = domain.ParseClockTime(end); err != nil {
			return nil, err
		}
		s.Status = domain.SlotStatus(state)
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// GetUserDisplayName returns the display name of a user, or "" when unknown.
func (r *Repository) GetUserDisplayName(ctx context.Context, userID uuid.UUID) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx, selectDisplayNameQuery, userID).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get user display name: %w", err)
	}
	return name, nil
}

func storeFailure(op string, err error) error {
	return apperr.TransientStore(scheduleFailedMsg, err).WithOp(op)
}

func passTypedOrWrap(op string, err error) error {
	var typed *apperr.Error
	if errors.As(err, &typed) && typed.Kind != apperr.KindUnknown {
		return err
	}
	return storeFailure(op, err)
}
