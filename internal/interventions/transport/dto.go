package transport

import (
	"time"

	"github.com/google/uuid"
)

// DirectScheduleRequest fixes one appointment. The end time is derived.
type DirectScheduleRequest struct {
	Date      string `json:"date" validate:"required,isodate"`
	StartTime string `json:"startTime" validate:"required,hhmm"`
}

// ProposedSlotRequest is one candidate window offered to the other parties.
type ProposedSlotRequest struct {
	Date      string `json:"date" validate:"required,isodate"`
	StartTime string `json:"startTime" validate:"required,hhmm"`
	EndTime   string `json:"endTime" validate:"required,hhmm"`
}

// ScheduleInterventionRequest is the request body for starting or restarting
// the scheduling of an intervention.
type ScheduleInterventionRequest struct {
	PlanningType    string                 `json:"planningType" validate:"required"`
	DirectSchedule  *DirectScheduleRequest `json:"directSchedule,omitempty" validate:"omitempty"`
	ProposedSlots   []ProposedSlotRequest  `json:"proposedSlots,omitempty" validate:"omitempty,max=20,dive"`
	InternalComment string                 `json:"internalComment,omitempty" validate:"max=2000"`
}

// OnlyPlanningFields drops the fields that belong to another planning
// type, so stray data never fails validation for a mode that ignores it.
// Unknown planning types are returned unchanged.
func (r ScheduleInterventionRequest) OnlyPlanningFields() ScheduleInterventionRequest {
	switch r.PlanningType {
	case "direct":
		r.ProposedSlots = nil
	case "propose":
		r.DirectSchedule = nil
	case "organize":
		r.DirectSchedule = nil
		r.ProposedSlots = nil
	}
	return r
}

// InterventionSummary is the intervention as returned after scheduling.
type InterventionSummary struct {
	ID        uuid.UUID `json:"id"`
	Status    string    `json:"status"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TimeSlotResponse is a persisted slot.
type TimeSlotResponse struct {
	ID        uuid.UUID `json:"id"`
	Date      string    `json:"date"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
	Status    string    `json:"status"`
}

// ScheduleInterventionResponse is the success body of a scheduling action.
type ScheduleInterventionResponse struct {
	Success      bool                `json:"success"`
	Intervention InterventionSummary `json:"intervention"`
	PlanningType string              `json:"planningType"`
	Message      string              `json:"message"`
	Slots        []TimeSlotResponse  `json:"slots"`
}
