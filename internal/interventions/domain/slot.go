package domain

import (
	"time"

	"github.com/google/uuid"
)

// SlotStatus is the negotiation state of a time slot.
type SlotStatus string

const (
	SlotPending  SlotStatus = "pending"
	SlotSelected SlotStatus = "selected"
	SlotRejected SlotStatus = "rejected"
)

// DirectSlotNote marks slots fixed by a manager rather than proposed.
const DirectSlotNote = "Appointment fixed by the manager"

// TimeSlot is a candidate or confirmed window for an intervention.
type TimeSlot struct {
	ID             uuid.UUID
	InterventionID uuid.UUID
	Date           time.Time
	Start          ClockTime
	End            ClockTime
	Status         SlotStatus
	ProposedBy     uuid.UUID
	Notes          string
	CreatedAt      time.Time
}

// DateString formats the slot date as YYYY-MM-DD.
func (s TimeSlot) DateString() string {
	return s.Date.Format(time.DateOnly)
}

// BuildSlots returns the pending slots a plan creates. OrganizePlan creates none.
func BuildSlots(plan Plan, interventionID, proposedBy uuid.UUID, now time.Time) []TimeSlot {
	newSlot := func(date time.Time, start, end ClockTime, notes string) TimeSlot {
		return TimeSlot{
			ID:             uuid.New(),
			InterventionID: interventionID,
			Date:           date,
			Start:          start,
			End:            end,
			Status:         SlotPending,
			ProposedBy:     proposedBy,
			Notes:          notes,
			CreatedAt:      now,
		}
	}

	switch p := plan.(type) {
	case DirectPlan:
		return []TimeSlot{newSlot(p.Date, p.Start, p.End(), DirectSlotNote)}
	case ProposePlan:
		slots := make([]TimeSlot, 0, len(p.Windows))
		for _, w := range p.Windows {
			slots = append(slots, newSlot(w.Date, w.Start, w.End, ""))
		}
		return slots
	case OrganizePlan:
		return nil
	default:
		panic("domain: unhandled plan type")
	}
}

// MutatesSlots reports whether a plan replaces the intervention's slot set.
func MutatesSlots(plan Plan) bool {
	_, organize := plan.(OrganizePlan)
	return !organize
}

// SchedulingOutcome is the result of a committed scheduling action, handed
// by value to the notification stage.
type SchedulingOutcome struct {
	// EventID identifies the scheduling action for notification dedup.
	EventID        uuid.UUID
	Mode           PlanningType
	PreviousStatus Status
	CreatedSlots   []TimeSlot
}
