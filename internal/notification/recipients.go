package notification

import (
	"intervention_backend/internal/assignments"

	"github.com/google/uuid"
)

// RecipientPlan is the deduplicated audience of one triggering event.
// No user appears in both tracks or twice in one track.
type RecipientPlan struct {
	// Personal recipients are responsible through a direct assignment.
	Personal []assignments.Member
	// Team recipients are managers of the team kept informed only.
	Team []assignments.Member
}

// TeamIDs returns the user ids of the team track.
func (p RecipientPlan) TeamIDs() map[uuid.UUID]struct{} {
	ids := make(map[uuid.UUID]struct{}, len(p.Team))
	for _, m := range p.Team {
		ids[m.UserID] = struct{}{}
	}
	return ids
}

// PlanSchedulingRecipients computes the audience of a scheduling action:
// directly assigned tenants and providers personally, and the team's other
// managers as observers. The actor is never notified.
func PlanSchedulingRecipients(direct assignments.Assignments, teamManagers []assignments.Member, actorID uuid.UUID) RecipientPlan {
	personal := make([]assignments.Member, 0, len(direct.Tenants)+len(direct.Providers))
	personal = append(personal, direct.Tenants...)
	personal = append(personal, direct.Providers...)
	return plan(personal, direct.Managers, teamManagers, actorID)
}

// PlanCreationRecipients computes the audience of a new intervention: the
// directly assigned managers personally and the rest of the team's managers
// as observers.
func PlanCreationRecipients(direct assignments.Assignments, teamManagers []assignments.Member, actorID uuid.UUID) RecipientPlan {
	return plan(direct.Managers, direct.Managers, teamManagers, actorID)
}

func plan(personal, directManagers, teamManagers []assignments.Member, actorID uuid.UUID) RecipientPlan {
	seen := map[uuid.UUID]struct{}{actorID: {}}
	var out RecipientPlan

	for _, m := range personal {
		if _, dup := seen[m.UserID]; dup {
			continue
		}
		seen[m.UserID] = struct{}{}
		out.Personal = append(out.Personal, m)
	}

	for _, m := range directManagers {
		seen[m.UserID] = struct{}{}
	}
	for _, m := range teamManagers {
		if _, dup := seen[m.UserID]; dup {
			continue
		}
		seen[m.UserID] = struct{}{}
		out.Team = append(out.Team, m)
	}

	return out
}
