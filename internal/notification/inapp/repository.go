package inapp

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

const (
	opCreate      = "notification.inapp.repository.create"
	opCountUnread = "notification.inapp.repository.count_unread"
	opMarkRead    = "notification.inapp.repository.mark_read"
	opMarkAllRead = "notification.inapp.repository.mark_all_read"

	errRepoNotConfigured = "in-app notification repository not configured"
)

// Notification is a persisted in-app notification.
type Notification struct {
	ID                uuid.UUID      `json:"id"`
	EventID           uuid.UUID      `json:"eventId"`
	RecipientUserID   uuid.UUID      `json:"recipientUserId"`
	TeamID            *uuid.UUID     `json:"teamId,omitempty"`
	CreatedByUserID   *uuid.UUID     `json:"createdByUserId,omitempty"`
	Type              string         `json:"type"`
	Title             string         `json:"title"`
	Message           string         `json:"message"`
	IsPersonal        bool           `json:"isPersonal"`
	Metadata          map[string]any `json:"metadata"`
	RelatedEntityType string         `json:"relatedEntityType,omitempty"`
	RelatedEntityID   *uuid.UUID     `json:"relatedEntityId,omitempty"`
	IsRead            bool           `json:"isRead"`
	CreatedAt         time.Time      `json:"createdAt"`
}

// CreateParams describes one notification for one recipient.
type CreateParams struct {
	EventID           uuid.UUID
	RecipientUserID   uuid.UUID
	TeamID            *uuid.UUID
	CreatedByUserID   *uuid.UUID
	Type              string
	Title             string
	Message           string
	IsPersonal        bool
	Metadata          map[string]any
	RelatedEntityType string
	RelatedEntityID   *uuid.UUID
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a notification. A second row for the same recipient and
// event is silently skipped; created reports whether a row was written.
func (r *Repository) Create(ctx context.Context, p CreateParams) (n Notification, created bool, err error) {
	if r == nil || r.pool == nil {
		return Notification{}, false, apperr.Internal(errRepoNotConfigured).WithOp(opCreate)
	}
	if p.EventID == uuid.Nil || p.RecipientUserID == uuid.Nil {
		return Notification{}, false, apperr.Validation("eventId and recipientUserId are required").WithOp(opCreate)
	}
	if p.Title == "" || p.Message == "" {
		return Notification{}, false, apperr.Validation("title and message are required").WithOp(opCreate)
	}

	metadata := p.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataBytes, err := json.Marshal(metadata)
	if err != nil {
		return Notification{}, false, apperr.Validation("metadata must be JSON serializable").WithOp(opCreate)
	}

	var raw []byte
	err = r.pool.QueryRow(ctx, `
		INSERT INTO notifications
		(event_id, recipient_user_id, team_id, created_by_user_id, type, title, message,
		 is_personal, metadata, related_entity_type, related_entity_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (recipient_user_id, event_id) DO NOTHING
		RETURNING id, event_id, recipient_user_id, team_id, created_by_user_id, type, title, message,
		          is_personal, metadata, related_entity_type, related_entity_id, is_read, created_at
	`, p.EventID, p.RecipientUserID, p.TeamID, p.CreatedByUserID, p.Type, p.Title, p.Message,
		p.IsPersonal, metadataBytes, p.RelatedEntityType, p.RelatedEntityID,
	).Scan(
		&n.ID, &n.EventID, &n.RecipientUserID, &n.TeamID, &n.CreatedByUserID, &n.Type, &n.Title, &n.Message,
		&n.IsPersonal, &raw, &n.RelatedEntityType, &n.RelatedEntityID, &n.IsRead, &n.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Notification{}, false, nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Notification{}, false, apperr.Validation("unknown recipient").WithOp(opCreate)
		}
		return Notification{}, false, apperr.Dispatch("create in-app notification failed", err).WithOp(opCreate)
	}
	if err := json.Unmarshal(raw, &n.Metadata); err != nil {
		return Notification{}, false, apperr.Internal(fmt.Sprintf("decode notification metadata: %v", err)).WithOp(opCreate)
	}

	return n, true, nil
}

// CountUnread returns the number of unread notifications of a user.
func (r *Repository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	if r == nil || r.pool == nil {
		return 0, apperr.Internal(errRepoNotConfigured).WithOp(opCountUnread)
	}

	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_user_id = $1 AND is_read = FALSE`, userID,
	).Scan(&count)
	if err != nil {
		return 0, apperr.Internal(fmt.Sprintf("count unread notifications failed: %v", err)).WithOp(opCountUnread)
	}
	return count, nil
}

// MarkRead marks one notification of a user as read.
func (r *Repository) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opMarkRead)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND recipient_user_id = $2`, id, userID)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("mark notification read failed: %v", err)).WithOp(opMarkRead)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("notification not found").WithOp(opMarkRead)
	}
	return nil
}

// MarkAllRead marks every unread notification of a user as read.
func (r *Repository) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opMarkAllRead)
	}

	_, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE recipient_user_id = $1 AND is_read = FALSE`, userID)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("mark all notifications read failed: %v", err)).WithOp(opMarkAllRead)
	}
	return nil
}
