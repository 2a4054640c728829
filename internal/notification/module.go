// Package notification fans intervention events out to their recipients:
// in-app notifications synchronously, emails through persisted dispatch jobs
// delivered after the triggering response.
package notification

import (
	"context"

	"intervention_backend/internal/assignments"
	"intervention_backend/internal/email"
	"intervention_backend/internal/events"
	apphttp "intervention_backend/internal/http"
	notifhandler "intervention_backend/internal/notification/handler"
	"intervention_backend/internal/notification/inapp"
	"intervention_backend/internal/notification/outbox"
	"intervention_backend/internal/notification/sse"
	"intervention_backend/platform/config"
	"intervention_backend/platform/httpkit"
	"intervention_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Module handles all notification-related event subscriptions.
type Module struct {
	log          *logger.Logger
	sse          *sse.Service
	outbox       *outbox.Repository
	inAppService *inapp.Service
	inAppHandler *notifhandler.HTTPHandler
	dispatcher   *Dispatcher
}

// New creates a new notification module. The intervention reader and the job
// submitter are injected afterwards with SetInterventionReader and
// SetJobSubmitter.
func New(pool *pgxpool.Pool, sender email.Sender, cfg config.NotificationConfig, log *logger.Logger) *Module {
	if log == nil {
		log = logger.Discard()
	}
	inAppSvc := inapp.NewService(inapp.NewRepository(pool), log)
	outboxRepo := outbox.New(pool)
	resolver := assignments.NewResolver(assignments.NewRepository(pool))

	dispatcher := NewDispatcher(resolver, inAppSvc, nil, log)
	dispatcher.SetEmailStage(nil, outboxRepo, sender, cfg.GetAppBaseURL())

	return &Module{
		log:          log,
		outbox:       outboxRepo,
		inAppService: inAppSvc,
		inAppHandler: notifhandler.NewHTTPHandler(inAppSvc),
		dispatcher:   dispatcher,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

// RegisterRoutes registers notification API routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	notifications := ctx.Protected.Group("/notifications")
	m.inAppHandler.RegisterRoutes(notifications)
	if m.sse != nil {
		notifications.GET("/stream", m.sse.Handler(streamUserID))
	}
}

func streamUserID(c *gin.Context) (uuid.UUID, bool) {
	identity := httpkit.GetIdentity(c)
	if !identity.IsAuthenticated() {
		return uuid.Nil, false
	}
	return identity.UserID(), true
}

// SetSSE injects the SSE service so new notifications are pushed live.
func (m *Module) SetSSE(s *sse.Service) {
	m.sse = s
	m.inAppService.SetSSE(s)
}

// SetInterventionReader injects the intervention store used by the email stage.
func (m *Module) SetInterventionReader(reader InterventionReader) {
	m.dispatcher.SetInterventionReader(reader)
}

// SetJobSubmitter injects where scheduling email jobs are submitted.
func (m *Module) SetJobSubmitter(jobs JobSubmitter) {
	m.dispatcher.SetJobSubmitter(jobs)
}

// Dispatcher exposes the fan-out dispatcher to the interventions module.
func (m *Module) Dispatcher() *Dispatcher { return m.dispatcher }

// Outbox exposes the dispatch job repository to the scheduler.
func (m *Module) Outbox() *outbox.Repository { return m.outbox }

// RegisterHandlers subscribes to the relevant domain events on the event bus.
func (m *Module) RegisterHandlers(bus *events.InMemoryBus) {
	bus.Subscribe(events.InterventionCreated{}.EventName(), m)
	bus.Subscribe(events.InterventionSchedulingStarted{}.EventName(), m)
	bus.Subscribe(events.NotificationDispatchDue{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.InterventionCreated:
		return m.dispatcher.NotifyInterventionCreated(ctx, e)
	case events.InterventionSchedulingStarted:
		m.log.WithContext(ctx).Info("intervention scheduling started",
			"intervention_id", e.InterventionID,
			"event_id", e.EventID,
			"planning_type", e.PlanningType,
			"previous_status", e.PreviousStatus,
			"slots", len(e.SlotIDs),
		)
		return nil
	case events.NotificationDispatchDue:
		return m.dispatcher.DeliverJob(ctx, e.JobID)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

var _ apphttp.Module = (*Module)(nil)
var _ events.Handler = (*Module)(nil)
