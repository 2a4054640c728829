package notification

import (
	"context"
	"fmt"
	"time"

	"intervention_backend/internal/assignments"
	"intervention_backend/internal/events"
	"intervention_backend/internal/interventions/domain"
	"intervention_backend/internal/notification/inapp"
	"intervention_backend/internal/notification/outbox"
	"intervention_backend/platform/apperr"
	"intervention_backend/platform/deferred"
	"intervention_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	channelInApp = "in_app"
	channelEmail = "email"

	typeInterventionScheduling = "intervention_scheduling"
	typeInterventionCreated    = "intervention_created"
	relatedEntityIntervention  = "intervention"

	fallbackActorName = "A manager"
)

// AssignmentResolver provides the parties linked to an intervention.
type AssignmentResolver interface {
	Resolve(ctx context.Context, interventionID uuid.UUID) (assignments.Assignments, error)
	TeamManagers(ctx context.Context, teamID *uuid.UUID) ([]assignments.Member, error)
}

// NotificationWriter stores one in-app notification.
type NotificationWriter interface {
	Send(ctx context.Context, p inapp.CreateParams) error
}

// JobSubmitter hands a dispatch job to the deferred delivery pipeline.
type JobSubmitter interface {
	Submit(ctx context.Context, p outbox.InsertParams) (uuid.UUID, error)
}

// schedulingDispatchPayload is persisted with a scheduling email job.
type schedulingDispatchPayload struct {
	EventID      uuid.UUID   `json:"eventId"`
	ActorID      uuid.UUID   `json:"actorId"`
	ActorName    string      `json:"actorName"`
	PlanningType string      `json:"planningType"`
	SlotIDs      []uuid.UUID `json:"slotIds"`
}

// DispatchSummary counts the outcome of one delivery stage.
type DispatchSummary struct {
	Sent   int
	Failed int
}

// Dispatcher turns intervention events into in-app notifications and
// deferred email jobs.
type Dispatcher struct {
	resolver AssignmentResolver
	inApp    NotificationWriter
	jobs     JobSubmitter
	log      *logger.Logger

	// email stage, see delivery.go
	reader     InterventionReader
	jobStore   DispatchJobStore
	sender     EmailSender
	appBaseURL string
	now        func() time.Time
}

// NewDispatcher creates a dispatcher. The email stage dependencies are set
// with SetEmailStage.
func NewDispatcher(resolver AssignmentResolver, inApp NotificationWriter, jobs JobSubmitter, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Discard()
	}
	return &Dispatcher{
		resolver: resolver,
		inApp:    inApp,
		jobs:     jobs,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetJobSubmitter replaces the job submitter (circular dependency avoidance).
func (d *Dispatcher) SetJobSubmitter(jobs JobSubmitter) {
	d.jobs = jobs
}

// NotifySchedulingStarted creates the in-app notifications of a committed
// scheduling action and schedules its emails to be submitted once the
// response is out. It never fails: every error is logged.
func (d *Dispatcher) NotifySchedulingStarted(ctx context.Context, intervention domain.Intervention, actor domain.Caller, outcome domain.SchedulingOutcome) {
	log := d.log.WithContext(ctx)
	eventID := outcome.EventID
	if eventID == uuid.Nil {
		eventID = uuid.New()
	}

	recipients, err := d.schedulingRecipients(ctx, intervention, actor.UserID)
	if err != nil {
		log.Error("failed to resolve scheduling recipients",
			"intervention_id", intervention.ID, "event_id", eventID, "error", err)
	} else {
		summary := d.createInApp(ctx, eventID, recipients, func(m assignments.Member, personal bool) inapp.CreateParams {
			return schedulingNotification(intervention, actor, outcome, m, personal)
		})
		log.DispatchSummary(channelInApp, eventID.String(), summary.Sent, summary.Failed)
	}

	slotIDs := make([]uuid.UUID, 0, len(outcome.CreatedSlots))
	for _, slot := range outcome.CreatedSlots {
		slotIDs = append(slotIDs, slot.ID)
	}
	job := outbox.InsertParams{
		TeamID:         intervention.TeamID,
		InterventionID: intervention.ID,
		Kind:           outbox.KindSchedulingEmail,
		Payload: schedulingDispatchPayload{
			EventID:      eventID,
			ActorID:      actor.UserID,
			ActorName:    actorName(actor),
			PlanningType: string(outcome.Mode),
			SlotIDs:      slotIDs,
		},
	}
	deferred.Schedule(ctx, func(ctx context.Context) {
		d.submit(ctx, job, eventID)
	})
}

// NotifyInterventionCreated informs the managers of a new intervention.
func (d *Dispatcher) NotifyInterventionCreated(ctx context.Context, e events.InterventionCreated) error {
	direct, err := d.resolver.Resolve(ctx, e.InterventionID)
	if err != nil {
		return fmt.Errorf("resolve assignments: %w", err)
	}
	teamManagers, err := d.resolver.TeamManagers(ctx, e.TeamID)
	if err != nil {
		return fmt.Errorf("resolve team managers: %w", err)
	}

	recipients := PlanCreationRecipients(direct, teamManagers, e.CreatedBy)
	summary := d.createInApp(ctx, e.EventID, recipients, func(m assignments.Member, personal bool) inapp.CreateParams {
		return creationNotification(e, m, personal)
	})
	d.log.WithContext(ctx).DispatchSummary(channelInApp, e.EventID.String(), summary.Sent, summary.Failed)
	return nil
}

func (d *Dispatcher) schedulingRecipients(ctx context.Context, intervention domain.Intervention, actorID uuid.UUID) (RecipientPlan, error) {
	direct, err := d.resolver.Resolve(ctx, intervention.ID)
	if err != nil {
		return RecipientPlan{}, err
	}
	teamManagers, err := d.resolver.TeamManagers(ctx, intervention.TeamID)
	if err != nil {
		return RecipientPlan{}, err
	}
	return PlanSchedulingRecipients(direct, teamManagers, actorID), nil
}

// createInApp makes one independent attempt per recipient.
func (d *Dispatcher) createInApp(ctx context.Context, eventID uuid.UUID, recipients RecipientPlan, build func(assignments.Member, bool) inapp.CreateParams) DispatchSummary {
	var summary DispatchSummary
	send := func(m assignments.Member, personal bool) {
		params := build(m, personal)
		params.EventID = eventID
		if err := d.inApp.Send(ctx, params); err != nil {
			summary.Failed++
			d.log.WithContext(ctx).NotificationFailed(channelInApp, m.UserID.String(), eventID.String(), err)
			return
		}
		summary.Sent++
	}

	for _, m := range recipients.Personal {
		send(m, true)
	}
	for _, m := range recipients.Team {
		send(m, false)
	}
	return summary
}

func (d *Dispatcher) submit(ctx context.Context, job outbox.InsertParams, eventID uuid.UUID) {
	if d.jobs == nil {
		d.log.Warn("no job submitter configured; scheduling emails dropped", "event_id", eventID)
		return
	}
	jobID, err := d.jobs.Submit(ctx, job)
	if err != nil {
		err = apperr.Dispatch("failed to submit email dispatch job", err)
		d.log.Error("email dispatch not submitted",
			"intervention_id", job.InterventionID, "event_id", eventID, "error", err)
		return
	}
	d.log.Debug("email dispatch submitted", "job_id", jobID, "event_id", eventID)
}

func schedulingNotification(intervention domain.Intervention, actor domain.Caller, outcome domain.SchedulingOutcome, m assignments.Member, personal bool) inapp.CreateParams {
	name := actorName(actor)
	metadata := map[string]any{
		"planningType": string(outcome.Mode),
		"actorName":    name,
		"slotCount":    len(outcome.CreatedSlots),
	}
	if intervention.LotID != nil {
		metadata["lotId"] = intervention.LotID.String()
	}
	if intervention.LotReference != "" {
		metadata["lotReference"] = intervention.LotReference
	}

	var title, message string
	if personal {
		title, message = personalSchedulingText(intervention, name, outcome)
	} else {
		metadata["teamNotification"] = true
		title = "Scheduling started in your team"
		message = fmt.Sprintf("%s started scheduling %q (%s).", name, intervention.Title, outcome.Mode)
	}

	actorID := actor.UserID
	interventionID := intervention.ID
	return inapp.CreateParams{
		RecipientUserID:   m.UserID,
		TeamID:            intervention.TeamID,
		CreatedByUserID:   &actorID,
		Type:              typeInterventionScheduling,
		Title:             title,
		Message:           message,
		IsPersonal:        personal,
		Metadata:          metadata,
		RelatedEntityType: relatedEntityIntervention,
		RelatedEntityID:   &interventionID,
	}
}

func personalSchedulingText(intervention domain.Intervention, actor string, outcome domain.SchedulingOutcome) (string, string) {
	switch outcome.Mode {
	case domain.PlanningDirect:
		if len(outcome.CreatedSlots) > 0 {
			slot := outcome.CreatedSlots[0]
			return "Appointment fixed", fmt.Sprintf("%s fixed an appointment for %q on %s at %s.",
				actor, intervention.Title, slot.DateString(), slot.Start)
		}
		return "Appointment fixed", fmt.Sprintf("%s fixed an appointment for %q.", actor, intervention.Title)
	case domain.PlanningPropose:
		return "New time slots proposed", fmt.Sprintf("%s proposed %d time slot(s) for %q.",
			actor, len(outcome.CreatedSlots), intervention.Title)
	case domain.PlanningOrganize:
		return "Appointment to organize", fmt.Sprintf("%s asks you to agree on an appointment for %q.",
			actor, intervention.Title)
	default:
		return "Scheduling started", fmt.Sprintf("%s started scheduling %q.", actor, intervention.Title)
	}
}

func creationNotification(e events.InterventionCreated, m assignments.Member, personal bool) inapp.CreateParams {
	metadata := map[string]any{}
	title := "New intervention request"
	message := fmt.Sprintf("A new intervention %q was requested.", e.Title)
	if !personal {
		metadata["teamNotification"] = true
		title = "New intervention in your team"
	}

	createdBy := e.CreatedBy
	interventionID := e.InterventionID
	return inapp.CreateParams{
		RecipientUserID:   m.UserID,
		TeamID:            e.TeamID,
		CreatedByUserID:   &createdBy,
		Type:              typeInterventionCreated,
		Title:             title,
		Message:           message,
		IsPersonal:        personal,
		Metadata:          metadata,
		RelatedEntityType: relatedEntityIntervention,
		RelatedEntityID:   &interventionID,
	}
}

func actorName(actor domain.Caller) string {
	if actor.DisplayName != "" {
		return actor.DisplayName
	}
	return fallbackActorName
}
