// Package handler exposes the read side of in-app notifications to the
// signed-in user. Every route is scoped to the caller; there is no way to
// read or mark another user's notifications.
package handler

import (
	"context"
	"net/http"

	"intervention_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// InAppService is the subset of inapp.Service used here.
type InAppService interface {
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
}

type HTTPHandler struct {
	svc InAppService
}

func NewHTTPHandler(svc InAppService) *HTTPHandler {
	return &HTTPHandler{svc: svc}
}

func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/unread", h.CountUnread)
	rg.PATCH("/read-all", h.MarkAllRead)
	rg.PATCH("/:id/read", h.MarkRead)
}

// caller aborts with 401 and reports false when no identity is attached.
func caller(c *gin.Context) (uuid.UUID, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return uuid.Nil, false
	}
	return identity.UserID(), true
}

// CountUnread answers GET /notifications/unread.
func (h *HTTPHandler) CountUnread(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	count, err := h.svc.CountUnread(c.Request.Context(), userID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"count": count})
}

// MarkRead answers PATCH /notifications/:id/read. Unknown ids and ids owned
// by someone else both answer 404.
func (h *HTTPHandler) MarkRead(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	notificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid notification id", nil)
		return
	}

	if httpkit.HandleError(c, h.svc.MarkRead(c.Request.Context(), userID, notificationID)) {
		return
	}
	httpkit.OK(c, gin.H{"read": true})
}

// MarkAllRead answers PATCH /notifications/read-all.
func (h *HTTPHandler) MarkAllRead(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	if httpkit.HandleError(c, h.svc.MarkAllRead(c.Request.Context(), userID)) {
		return
	}
	httpkit.OK(c, gin.H{"read": true})
}
