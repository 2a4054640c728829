// Package domain holds the intervention scheduling model: the status state
// machine, planning modes and time-slot construction. It has no storage or
// transport dependencies.
package domain

import (
	"fmt"
	"slices"

	"intervention_backend/platform/apperr"
)

// Status is the lifecycle state of an intervention.
type Status string

const (
	StatusRequested      Status = "requested"
	StatusApproved       Status = "approved"
	StatusQuoteRequested Status = "quote_requested"
	StatusScheduling     Status = "scheduling"
	StatusScheduled      Status = "scheduled"
	StatusRejected       Status = "rejected"
	StatusInProgress     Status = "in_progress"
	StatusCompleted      Status = "completed"
)

var allStatuses = []Status{
	StatusRequested,
	StatusApproved,
	StatusQuoteRequested,
	StatusScheduling,
	StatusScheduled,
	StatusRejected,
	StatusInProgress,
	StatusCompleted,
}

// transitions lists the statuses reachable from each status. scheduling ->
// scheduling is a re-proposal.
var transitions = map[Status][]Status{
	StatusRequested:      {StatusApproved, StatusRejected},
	StatusApproved:       {StatusQuoteRequested, StatusScheduling, StatusRejected},
	StatusQuoteRequested: {StatusScheduling, StatusApproved, StatusRejected},
	StatusScheduling:     {StatusScheduling, StatusScheduled},
	StatusScheduled:      {StatusInProgress, StatusScheduling},
	StatusInProgress:     {StatusCompleted},
	StatusRejected:       {},
	StatusCompleted:      {},
}

// schedulingEntry are the statuses from which a scheduling action may start.
var schedulingEntry = []Status{StatusApproved, StatusScheduling, StatusQuoteRequested}

// ParseStatus converts a stored or client value into a Status.
func ParseStatus(value string) (Status, error) {
	s := Status(value)
	if !slices.Contains(allStatuses, s) {
		return "", apperr.Validation(fmt.Sprintf("unknown intervention status %q", value))
	}
	return s, nil
}

func (s Status) String() string { return string(s) }

// CanTransition reports whether from -> to is a defined transition.
func CanTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

// CanStartScheduling reports whether a scheduling action is permitted for s.
func CanStartScheduling(s Status) bool {
	return slices.Contains(schedulingEntry, s)
}

// EnsureSchedulable returns a state conflict carrying the current status when
// a scheduling action is not permitted.
func EnsureSchedulable(s Status) error {
	if CanStartScheduling(s) {
		return nil
	}
	return apperr.StateConflict(fmt.Sprintf("intervention cannot be scheduled while %s", s)).
		WithDetails(map[string]string{"currentStatus": string(s)})
}
