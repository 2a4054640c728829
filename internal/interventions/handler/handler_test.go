package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"intervention_backend/internal/interventions/domain"
	"intervention_backend/internal/interventions/transport"
	"intervention_backend/platform/apperr"
	"intervention_backend/platform/httpkit"
	"intervention_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type stubScheduler struct {
	caller domain.Caller
	req    transport.ScheduleInterventionRequest
	resp   *transport.ScheduleInterventionResponse
	err    error
}

func (s *stubScheduler) ScheduleIntervention(_ context.Context, caller domain.Caller, _ uuid.UUID, req transport.ScheduleInterventionRequest) (*transport.ScheduleInterventionResponse, error) {
	s.caller = caller
	s.req = req
	return s.resp, s.err
}

func newRouter(svc Scheduler, userID uuid.UUID, roles []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	group := router.Group("/api/v1/interventions", func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, userID)
		c.Set(httpkit.ContextRolesKey, roles)
		c.Next()
	})
	New(svc, validator.New()).RegisterRoutes(group)
	return router
}

func post(router *gin.Engine, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	return rec, decoded
}

func TestScheduleReturnsServiceResponse(t *testing.T) {
	id := uuid.New()
	userID := uuid.New()
	svc := &stubScheduler{resp: &transport.ScheduleInterventionResponse{
		Success:      true,
		Intervention: transport.InterventionSummary{ID: id, Status: "scheduling", Title: "Boiler"},
		PlanningType: "direct",
		Message:      "Appointment fixed on 2025-12-01 at 14:00",
	}}
	router := newRouter(svc, userID, []string{"manager"})

	rec, body := post(router, "/api/v1/interventions/"+id.String()+"/schedule", map[string]any{
		"planningType":   "direct",
		"directSchedule": map[string]string{"date": "2025-12-01", "startTime": "14:00"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["success"])
	require.Equal(t, "direct", body["planningType"])
	require.Equal(t, userID, svc.caller.UserID)
	require.True(t, svc.caller.IsManager)
	require.Equal(t, "14:00", svc.req.DirectSchedule.StartTime)
}

func TestScheduleRejectsMalformedInput(t *testing.T) {
	svc := &stubScheduler{}
	router := newRouter(svc, uuid.New(), []string{"manager"})

	rec, _ := post(router, "/api/v1/interventions/not-a-uuid/schedule", map[string]any{"planningType": "organize"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := post(router, "/api/v1/interventions/"+uuid.NewString()+"/schedule", map[string]any{
		"planningType":  "propose",
		"proposedSlots": []map[string]string{{"date": "2025-13-01", "startTime": "9", "endTime": "10:00"}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, false, body["success"])
	require.Equal(t, "validation failed", body["error"])
	require.NotEmpty(t, body["details"])
}

func TestScheduleIgnoresFieldsOfOtherPlanningTypes(t *testing.T) {
	svc := &stubScheduler{resp: &transport.ScheduleInterventionResponse{Success: true, PlanningType: "organize"}}
	router := newRouter(svc, uuid.New(), []string{"manager"})

	rec, _ := post(router, "/api/v1/interventions/"+uuid.NewString()+"/schedule", map[string]any{
		"planningType":   "organize",
		"directSchedule": map[string]string{"date": "bad", "startTime": "25:00"},
		"proposedSlots":  []map[string]string{{"date": "bad", "startTime": "x", "endTime": "y"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, svc.req.DirectSchedule)
	require.Empty(t, svc.req.ProposedSlots)

	rec, _ = post(router, "/api/v1/interventions/"+uuid.NewString()+"/schedule", map[string]any{
		"planningType":   "propose",
		"directSchedule": map[string]string{"date": "bad", "startTime": "25:00"},
		"proposedSlots":  []map[string]string{{"date": "2025-12-01", "startTime": "09:00", "endTime": "10:00"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, svc.req.DirectSchedule)
	require.Len(t, svc.req.ProposedSlots, 1)
}

func TestScheduleMapsServiceErrors(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
	}{
		"forbidden": {apperr.Forbidden("intervention belongs to another team"), http.StatusForbidden},
		"not found": {apperr.NotFound("intervention not found"), http.StatusNotFound},
		"conflict":  {apperr.StateConflict("a time slot has already been confirmed for this intervention"), http.StatusBadRequest},
		"store":     {apperr.TransientStore("failed to schedule intervention", context.DeadlineExceeded), http.StatusInternalServerError},
		"bad mode":  {apperr.Validation(`unknown planningType "x"`), http.StatusBadRequest},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			router := newRouter(&stubScheduler{err: tc.err}, uuid.New(), []string{"manager"})
			rec, body := post(router, "/api/v1/interventions/"+uuid.NewString()+"/schedule", map[string]any{"planningType": "organize"})
			require.Equal(t, tc.status, rec.Code)
			require.Equal(t, false, body["success"])
		})
	}
}
