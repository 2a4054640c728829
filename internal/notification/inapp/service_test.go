package inapp

import (
	"context"
	"testing"

	"intervention_backend/internal/notification/sse"
	"intervention_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	rows map[[2]uuid.UUID]Notification
}

func (m *memoryStore) Create(_ context.Context, p CreateParams) (Notification, bool, error) {
	key := [2]uuid.UUID{p.RecipientUserID, p.EventID}
	if _, exists := m.rows[key]; exists {
		return Notification{}, false, nil
	}
	n := Notification{ID: uuid.New(), EventID: p.EventID, RecipientUserID: p.RecipientUserID, Title: p.Title, Message: p.Message, IsPersonal: p.IsPersonal}
	m.rows[key] = n
	return n, true, nil
}

func (m *memoryStore) CountUnread(_ context.Context, userID uuid.UUID) (int, error) {
	count := 0
	for key, n := range m.rows {
		if key[0] == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (m *memoryStore) MarkRead(_ context.Context, userID, id uuid.UUID) error {
	for key, n := range m.rows {
		if key[0] == userID && n.ID == id {
			n.IsRead = true
			m.rows[key] = n
			return nil
		}
	}
	return apperr.NotFound("notification not found")
}

func (m *memoryStore) MarkAllRead(_ context.Context, userID uuid.UUID) error {
	for key, n := range m.rows {
		if key[0] == userID {
			n.IsRead = true
			m.rows[key] = n
		}
	}
	return nil
}

func TestSendDeduplicatesPerRecipientAndEvent(t *testing.T) {
	store := &memoryStore{rows: map[[2]uuid.UUID]Notification{}}
	svc := NewService(store, nil)
	hub := sse.New(nil)
	svc.SetSSE(hub)

	params := CreateParams{EventID: uuid.New(), RecipientUserID: uuid.New(), Title: "Scheduling started", Message: "m", IsPersonal: true}

	require.NoError(t, svc.Send(context.Background(), params))
	require.NoError(t, svc.Send(context.Background(), params))
	require.Len(t, store.rows, 1)

	params.EventID = uuid.New()
	require.NoError(t, svc.Send(context.Background(), params))
	require.Len(t, store.rows, 2)
}

func TestSendWithoutStoreFails(t *testing.T) {
	var svc *Service
	require.Error(t, svc.Send(context.Background(), CreateParams{}))
}

func TestMarkReadScopesToRecipient(t *testing.T) {
	store := &memoryStore{rows: map[[2]uuid.UUID]Notification{}}
	svc := NewService(store, nil)
	ctx := context.Background()

	owner := uuid.New()
	params := CreateParams{EventID: uuid.New(), RecipientUserID: owner, Title: "t", Message: "m", IsPersonal: true}
	require.NoError(t, svc.Send(ctx, params))
	require.NoError(t, svc.Send(ctx, CreateParams{EventID: uuid.New(), RecipientUserID: owner, Title: "t", Message: "m"}))

	stored := store.rows[[2]uuid.UUID{owner, params.EventID}]
	err := svc.MarkRead(ctx, uuid.New(), stored.ID)
	require.True(t, apperr.Is(err, apperr.KindNotFound))

	require.NoError(t, svc.MarkRead(ctx, owner, stored.ID))
	unread, err := svc.CountUnread(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, 1, unread)

	require.NoError(t, svc.MarkAllRead(ctx, owner))
	unread, err = svc.CountUnread(ctx, owner)
	require.NoError(t, err)
	require.Zero(t, unread)
}
