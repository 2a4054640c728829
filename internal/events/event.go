// Package events defines the domain events exchanged between the
// interventions module, the notification module and the scheduler. The bus
// itself lives in platform/events and is aliased here so callers need a
// single import.
package events

import (
	"time"

	"intervention_backend/platform/events"

	"github.com/google/uuid"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var (
	NewBaseEvent   = events.NewBaseEvent
	BaseEventAt    = events.BaseEventAt
	NewInMemoryBus = events.NewInMemoryBus
)

// =============================================================================
// Intervention Domain Events
// =============================================================================

// InterventionCreated is published when a tenant request becomes an intervention.
// The notification module reacts by informing the responsible managers.
type InterventionCreated struct {
	BaseEvent
	InterventionID uuid.UUID  `json:"interventionId"`
	TeamID         *uuid.UUID `json:"teamId,omitempty"`
	CreatedBy      uuid.UUID  `json:"createdBy"`
	Title          string     `json:"title"`
}

func (e InterventionCreated) EventName() string { return "interventions.intervention.created" }

// InterventionSchedulingStarted is published after a scheduling action has
// been committed and its in-app notifications were created.
type InterventionSchedulingStarted struct {
	BaseEvent
	InterventionID uuid.UUID   `json:"interventionId"`
	TeamID         *uuid.UUID  `json:"teamId,omitempty"`
	ActorID        uuid.UUID   `json:"actorId"`
	PlanningType   string      `json:"planningType"`
	SlotIDs        []uuid.UUID `json:"slotIds"`
	PreviousStatus string      `json:"previousStatus"`
}

func (e InterventionSchedulingStarted) EventName() string {
	return "interventions.intervention.scheduling_started"
}

// =============================================================================
// Notification Events
// =============================================================================

// NotificationDispatchDue is published by the scheduler worker when a
// persisted dispatch job is ready for its email stage.
type NotificationDispatchDue struct {
	BaseEvent
	JobID uuid.UUID `json:"jobId"`
}

func (e NotificationDispatchDue) EventName() string { return "notification.dispatch.due" }

// NewNotificationDispatchDue builds the event for one dispatch job. The job
// id doubles as the event id.
func NewNotificationDispatchDue(jobID uuid.UUID) NotificationDispatchDue {
	return NotificationDispatchDue{BaseEvent: BaseEventAt(jobID, time.Now()), JobID: jobID}
}
