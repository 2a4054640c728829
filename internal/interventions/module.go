// Package interventions provides the intervention scheduling module.
package interventions

import (
	"intervention_backend/internal/events"
	apphttp "intervention_backend/internal/http"
	"intervention_backend/internal/interventions/domain"
	"intervention_backend/internal/interventions/handler"
	"intervention_backend/internal/interventions/repository"
	"intervention_backend/internal/interventions/service"
	"intervention_backend/platform/httpkit"
	"intervention_backend/platform/logger"
	"intervention_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the interventions domain module
type Module struct {
	handler    *handler.Handler
	Service    *service.Service
	Repository *repository.Repository
}

// NewModule creates a new interventions module with all dependencies wired
func NewModule(pool *pgxpool.Pool, val *validator.Validator, notifier service.SchedulingNotifier, eventBus events.Bus, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, notifier, eventBus, log)

	return &Module{
		handler:    handler.New(svc, val),
		Service:    svc,
		Repository: repo,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "interventions"
}

// RegisterRoutes registers the module's routes under /api/v1/interventions
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	interventions := ctx.Protected.Group("/interventions", httpkit.RequireRole(string(domain.RoleManager)))
	m.handler.RegisterRoutes(interventions)
}

var _ apphttp.Module = (*Module)(nil)
