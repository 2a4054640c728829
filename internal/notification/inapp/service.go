package inapp

import (
	"context"

	"intervention_backend/internal/notification/sse"
	"intervention_backend/platform/apperr"
	"intervention_backend/platform/logger"

	"github.com/google/uuid"
)

// Store persists notifications.
type Store interface {
	Create(ctx context.Context, p CreateParams) (Notification, bool, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
}

type Service struct {
	repo Store
	sse  *sse.Service
	log  *logger.Logger
}

func NewService(repo Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		repo: repo,
		log:  log,
	}
}

// SetSSE injects the SSE service (circular dependency avoidance).
func (s *Service) SetSSE(sseSvc *sse.Service) {
	s.sse = sseSvc
}

// Send persists the notification and pushes it via SSE if the recipient is
// online. A duplicate for the same recipient and event is not an error and
// is not pushed again.
func (s *Service) Send(ctx context.Context, p CreateParams) error {
	if s == nil || s.repo == nil {
		return apperr.Internal("in-app notification service not configured")
	}

	notif, created, err := s.repo.Create(ctx, p)
	if err != nil {
		return err
	}
	if !created {
		s.log.WithContext(ctx).Debug("in-app notification already exists",
			"recipient_id", p.RecipientUserID, "event_id", p.EventID)
		return nil
	}

	if s.sse != nil {
		unread, countErr := s.repo.CountUnread(ctx, p.RecipientUserID)
		if countErr != nil {
			s.log.WithContext(ctx).Warn("failed to count unread notifications", "error", countErr)
		}
		s.sse.Publish(p.RecipientUserID, sse.Event{
			Type:        sse.EventNotificationCreated,
			Message:     notif.Title,
			Data:        notif,
			UnreadCount: unread,
		})
	}

	return nil
}

// CountUnread returns the unread notification count of a user.
func (s *Service) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkRead marks one notification as read and pushes the new unread count.
func (s *Service) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.repo.MarkRead(ctx, userID, id); err != nil {
		return err
	}
	s.pushUnreadCount(ctx, userID)
	return nil
}

// MarkAllRead marks all notifications of a user as read.
func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.MarkAllRead(ctx, userID); err != nil {
		return err
	}
	s.pushUnreadCount(ctx, userID)
	return nil
}

func (s *Service) pushUnreadCount(ctx context.Context, userID uuid.UUID) {
	if s.sse == nil {
		return
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		s.log.WithContext(ctx).Warn("failed to count unread notifications", "error", err)
		return
	}
	s.sse.Publish(userID, sse.Event{Type: sse.EventUnreadCountChanged, UnreadCount: unread})
}
