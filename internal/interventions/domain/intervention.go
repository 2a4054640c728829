package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is the capacity in which a user is linked to an intervention or team.
type Role string

const (
	RoleTenant   Role = "tenant"
	RoleProvider Role = "provider"
	RoleManager  Role = "manager"
)

// Intervention is the subset of an intervention the scheduling flow reads and writes.
type Intervention struct {
	ID           uuid.UUID
	Title        string
	Status       Status
	TeamID       *uuid.UUID
	LotID        *uuid.UUID
	LotReference string
	Urgency      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Caller is the authenticated actor of a scheduling action.
type Caller struct {
	UserID      uuid.UUID
	TeamID      *uuid.UUID
	DisplayName string
	IsManager   bool
}

// Authorize applies the manager capability and team scope checks.
// Interventions without a team are open to any manager.
func (i *Intervention) Authorize(caller Caller) bool {
	if !caller.IsManager {
		return false
	}
	if i.TeamID == nil {
		return true
	}
	return caller.TeamID != nil && *caller.TeamID == *i.TeamID
}
