// Package events is the in-process publish/subscribe layer shared by all
// modules. It carries no business logic.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is anything that can travel on the bus. Handlers are looked up by
// EventName, so the name must be stable across releases.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent is embedded by concrete events. EventID names one occurrence:
// downstream writes keyed on it (notification rows, dispatch jobs) collapse
// when the same occurrence is handled twice.
type BaseEvent struct {
	EventID   uuid.UUID `json:"eventId"`
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent stamps a fresh occurrence.
func NewBaseEvent() BaseEvent {
	return BaseEventAt(uuid.New(), time.Now())
}

// BaseEventAt reuses an id minted elsewhere, typically by the write that
// caused the event.
func BaseEventAt(id uuid.UUID, at time.Time) BaseEvent {
	return BaseEvent{EventID: id, Timestamp: at.UTC()}
}
