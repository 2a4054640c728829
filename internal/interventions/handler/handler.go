package handler

import (
	"context"
	"net/http"

	"intervention_backend/internal/interventions/domain"
	"intervention_backend/internal/interventions/transport"
	"intervention_backend/platform/httpkit"
	"intervention_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid intervention id"
)

// Scheduler is the use case behind the scheduling endpoint.
type Scheduler interface {
	ScheduleIntervention(ctx context.Context, caller domain.Caller, interventionID uuid.UUID, req transport.ScheduleInterventionRequest) (*transport.ScheduleInterventionResponse, error)
}

// Handler handles HTTP requests for interventions
type Handler struct {
	svc Scheduler
	val *validator.Validator
}

// New creates a new interventions handler
func New(svc Scheduler, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the intervention routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/:id/schedule", h.Schedule)
}

// Schedule handles POST /api/v1/interventions/:id/schedule
func (h *Handler) Schedule(c *gin.Context) {
	interventionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.ScheduleInterventionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	req = req.OnlyPlanningFields()
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Describe(err))
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.ScheduleIntervention(c.Request.Context(), callerFrom(identity), interventionID, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

func callerFrom(identity httpkit.Identity) domain.Caller {
	return domain.Caller{
		UserID:      identity.UserID(),
		TeamID:      identity.TeamID(),
		DisplayName: identity.DisplayName(),
		IsManager:   identity.HasRole(string(domain.RoleManager)),
	}
}
