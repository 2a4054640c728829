package assignments

import (
	"context"
	"fmt"

	"intervention_backend/internal/interventions/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads assignments and team membership from postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new assignments repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListByIntervention returns the direct assignments of an intervention,
// primary assignees first within each role.
func (r *Repository) ListByIntervention(ctx context.Context, interventionID uuid.UUID) ([]Member, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.user_id, a.role, u.display_name, u.email, a.is_primary
		FROM intervention_assignments a
		JOIN users u ON u.id = a.user_id
		WHERE a.intervention_id = $1
		ORDER BY a.role, a.is_primary DESC, a.created_at`, interventionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	members := make([]Member, 0)
	for rows.Next() {
		var (
			m    Member
			role string
		)
		if err := rows.Scan(&m.UserID, &role, &m.DisplayName, &m.Email, &m.IsPrimary); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		m.Role = domain.Role(role)
		members = append(members, m)
	}
	return members, rows.Err()
}

// ListTeamMembers returns the active members of a team holding role.
func (r *Repository) ListTeamMembers(ctx context.Context, teamID uuid.UUID, role domain.Role) ([]Member, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT tm.user_id, tm.role, u.display_name, u.email
		FROM team_members tm
		JOIN users u ON u.id = tm.user_id
		WHERE tm.team_id = $1 AND tm.role = $2 AND tm.status = 'active'
		ORDER BY tm.created_at`, teamID, string(role))
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	defer rows.Close()

	members := make([]Member, 0)
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.Role, &m.DisplayName, &m.Email); err != nil {
			return nil, fmt.Errorf("failed to scan team member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
