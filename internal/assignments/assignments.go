// Package assignments resolves who is linked to an intervention: the parties
// assigned to it directly and the managers of its team.
package assignments

import (
	"context"

	"intervention_backend/internal/interventions/domain"

	"github.com/google/uuid"
)

// Member is a user linked to an intervention or a team in a given role.
type Member struct {
	UserID      uuid.UUID
	Role        domain.Role
	DisplayName string
	Email       string
	IsPrimary   bool
}

// Assignments partitions the direct links of one intervention by role.
type Assignments struct {
	Tenants   []Member
	Providers []Member
	Managers  []Member
}

// Partition groups assignment rows by role. Unknown roles are dropped.
func Partition(rows []Member) Assignments {
	var a Assignments
	for _, m := range rows {
		switch m.Role {
		case domain.RoleTenant:
			a.Tenants = append(a.Tenants, m)
		case domain.RoleProvider:
			a.Providers = append(a.Providers, m)
		case domain.RoleManager:
			a.Managers = append(a.Managers, m)
		}
	}
	return a
}

// Store reads assignment and team membership rows.
type Store interface {
	ListByIntervention(ctx context.Context, interventionID uuid.UUID) ([]Member, error)
	ListTeamMembers(ctx context.Context, teamID uuid.UUID, role domain.Role) ([]Member, error)
}

// Resolver answers recipient questions for the notification stage.
type Resolver struct {
	store Store
}

// NewResolver creates a resolver over store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the direct assignments of an intervention.
func (r *Resolver) Resolve(ctx context.Context, interventionID uuid.UUID) (Assignments, error) {
	rows, err := r.store.ListByIntervention(ctx, interventionID)
	if err != nil {
		return Assignments{}, err
	}
	return Partition(rows), nil
}

// TeamManagers returns every active manager of a team, whether or not they
// are assigned to a given intervention. A nil team has no managers.
func (r *Resolver) TeamManagers(ctx context.Context, teamID *uuid.UUID) ([]Member, error) {
	if teamID == nil {
		return nil, nil
	}
	return r.store.ListTeamMembers(ctx, *teamID, domain.RoleManager)
}
