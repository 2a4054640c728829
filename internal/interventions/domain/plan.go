package domain

import (
	"fmt"
	"time"

	"intervention_backend/platform/apperr"
)

// PlanningType names a planning mode on the wire.
type PlanningType string

const (
	PlanningDirect   PlanningType = "direct"
	PlanningPropose  PlanningType = "propose"
	PlanningOrganize PlanningType = "organize"
)

// directSlotDuration is the synthetic window given to a fixed appointment.
const directSlotDuration = time.Hour

// Plan is one of DirectPlan, ProposePlan or OrganizePlan.
type Plan interface {
	PlanningType() PlanningType
	sealed()
}

// DirectPlan fixes a single appointment; its end time is derived.
type DirectPlan struct {
	Date  time.Time
	Start ClockTime
}

// ProposePlan offers candidate windows to the other parties.
type ProposePlan struct {
	Windows []Window
}

// OrganizePlan leaves the negotiation to tenant and provider.
type OrganizePlan struct{}

// Window is a candidate time window with caller-supplied bounds.
type Window struct {
	Date  time.Time
	Start ClockTime
	End   ClockTime
}

func (DirectPlan) PlanningType() PlanningType   { return PlanningDirect }
func (ProposePlan) PlanningType() PlanningType  { return PlanningPropose }
func (OrganizePlan) PlanningType() PlanningType { return PlanningOrganize }

func (DirectPlan) sealed()   {}
func (ProposePlan) sealed()  {}
func (OrganizePlan) sealed() {}

// End is the derived end time of a direct appointment.
func (p DirectPlan) End() ClockTime {
	return p.Start.Add(directSlotDuration)
}

// DirectInput is the raw direct-mode payload.
type DirectInput struct {
	Date      string
	StartTime string
}

// WindowInput is one raw proposed slot.
type WindowInput struct {
	Date      string
	StartTime string
	EndTime   string
}

// PlanInput is the raw scheduling payload before parsing.
type PlanInput struct {
	PlanningType string
	Direct       *DirectInput
	Proposed     []WindowInput
}

// ParsePlan builds the Plan for in. Fields that belong to other modes are ignored.
func ParsePlan(in PlanInput) (Plan, error) {
	switch PlanningType(in.PlanningType) {
	case PlanningDirect:
		return parseDirect(in.Direct)
	case PlanningPropose:
		return parsePropose(in.Proposed)
	case PlanningOrganize:
		return OrganizePlan{}, nil
	case "":
		return nil, apperr.Validation("planningType is required")
	default:
		return nil, apperr.Validation(fmt.Sprintf("unknown planningType %q", in.PlanningType)).
			WithDetails(map[string]any{"allowed": []PlanningType{PlanningDirect, PlanningPropose, PlanningOrganize}})
	}
}

func parseDirect(in *DirectInput) (Plan, error) {
	if in == nil || in.Date == "" || in.StartTime == "" {
		return nil, apperr.Validation("directSchedule with date and startTime is required for direct planning")
	}
	date, err := ParseDate(in.Date)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}
	start, err := ParseClockTime(in.StartTime)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}
	return DirectPlan{Date: date, Start: start}, nil
}

func parsePropose(in []WindowInput) (Plan, error) {
	if len(in) == 0 {
		return nil, apperr.Validation("proposedSlots must contain at least one slot for propose planning")
	}
	windows := make([]Window, 0, len(in))
	for i, raw := range in {
		date, err := ParseDate(raw.Date)
		if err != nil {
			return nil, slotError(i, err.Error())
		}
		start, err := ParseClockTime(raw.StartTime)
		if err != nil {
			return nil, slotError(i, err.Error())
		}
		end, err := ParseClockTime(raw.EndTime)
		if err != nil {
			return nil, slotError(i, err.Error())
		}
		if end <= start {
			return nil, slotError(i, "endTime must be after startTime")
		}
		windows = append(windows, Window{Date: date, Start: start, End: end})
	}
	return ProposePlan{Windows: windows}, nil
}

func slotError(index int, message string) error {
	return apperr.Validation(fmt.Sprintf("proposedSlots[%d]: %s", index, message)).
		WithDetails(map[string]int{"slotIndex": index})
}
