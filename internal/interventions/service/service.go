// Package service implements the scheduling orchestrator: it authorizes the
// caller, applies a planning mode to the intervention's time slots in one
// transaction and hands the committed outcome to the notification stage.
package service

import (
	"context"
	"fmt"
	"time"

	"intervention_backend/internal/events"
	"intervention_backend/internal/interventions/domain"
	"intervention_backend/internal/interventions/repository"
	"intervention_backend/internal/interventions/transport"
	"intervention_backend/platform/apperr"
	"intervention_backend/platform/logger"
	"intervention_backend/platform/sanitize"

	"github.com/google/uuid"
)

// Store is the persistence the orchestrator needs.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Intervention, error)
	ApplyScheduling(ctx context.Context, cmd repository.ScheduleCommand) (*repository.ScheduleResult, error)
}

// SchedulingNotifier fans a committed scheduling action out to the parties.
// Implementations must not fail the action: delivery errors are theirs to log.
type SchedulingNotifier interface {
	NotifySchedulingStarted(ctx context.Context, intervention domain.Intervention, actor domain.Caller, outcome domain.SchedulingOutcome)
}

// Service provides the scheduling use case.
type Service struct {
	store    Store
	notifier SchedulingNotifier
	eventBus events.Bus
	log      *logger.Logger
	now      func() time.Time
}

// New creates a new scheduling service.
func New(store Store, notifier SchedulingNotifier, eventBus events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		store:    store,
		notifier: notifier,
		eventBus: eventBus,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ScheduleIntervention starts or restarts the scheduling of an intervention.
// Validation, authorization, lookup and state errors abort before any write.
// Once the write is committed the call succeeds regardless of notification
// delivery.
func (s *Service) ScheduleIntervention(ctx context.Context, caller domain.Caller, interventionID uuid.UUID, req transport.ScheduleInterventionRequest) (*transport.ScheduleInterventionResponse, error) {
	plan, err := domain.ParsePlan(toPlanInput(req))
	if err != nil {
		return nil, err
	}

	if !caller.IsManager {
		return nil, apperr.Forbidden("only managers can schedule interventions")
	}

	intervention, err := s.store.GetByID(ctx, interventionID)
	if err != nil {
		return nil, err
	}
	if !intervention.Authorize(caller) {
		return nil, apperr.Forbidden("intervention belongs to another team")
	}
	if err := domain.EnsureSchedulable(intervention.Status); err != nil {
		return nil, err
	}

	now := s.now()
	slots := domain.BuildSlots(plan, interventionID, caller.UserID, now)

	result, err := s.store.ApplyScheduling(ctx, repository.ScheduleCommand{
		InterventionID: interventionID,
		ActorID:        caller.UserID,
		ReplaceSlots:   domain.MutatesSlots(plan),
		Slots:          slots,
		Comment:        sanitize.Comment(req.InternalComment),
		Now:            now,
	})
	if err != nil {
		if apperr.Is(err, apperr.KindTransientStore) {
			s.log.WithContext(ctx).DatabaseError("interventions.schedule", err,
				"intervention_id", interventionID, "planning_type", plan.PlanningType())
		}
		return nil, err
	}

	outcome := domain.SchedulingOutcome{
		EventID:        uuid.New(),
		Mode:           plan.PlanningType(),
		PreviousStatus: result.PreviousStatus,
		CreatedSlots:   slots,
	}
	if s.notifier != nil {
		s.notifier.NotifySchedulingStarted(ctx, result.Intervention, caller, outcome)
	}
	s.publishStarted(ctx, result.Intervention, caller, outcome)

	return buildResponse(result.Intervention, outcome), nil
}

func (s *Service) publishStarted(ctx context.Context, intervention domain.Intervention, caller domain.Caller, outcome domain.SchedulingOutcome) {
	if s.eventBus == nil {
		return
	}
	slotIDs := make([]uuid.UUID, 0, len(outcome.CreatedSlots))
	for _, slot := range outcome.CreatedSlots {
		slotIDs = append(slotIDs, slot.ID)
	}
	s.eventBus.Publish(ctx, events.InterventionSchedulingStarted{
		BaseEvent:      events.BaseEventAt(outcome.EventID, s.now()),
		InterventionID: intervention.ID,
		TeamID:         intervention.TeamID,
		ActorID:        caller.UserID,
		PlanningType:   string(outcome.Mode),
		SlotIDs:        slotIDs,
		PreviousStatus: string(outcome.PreviousStatus),
	})
}

func toPlanInput(req transport.ScheduleInterventionRequest) domain.PlanInput {
	in := domain.PlanInput{PlanningType: req.PlanningType}
	if req.DirectSchedule != nil {
		in.Direct = &domain.DirectInput{Date: req.DirectSchedule.Date, StartTime: req.DirectSchedule.StartTime}
	}
	for _, slot := range req.ProposedSlots {
		in.Proposed = append(in.Proposed, domain.WindowInput{Date: slot.Date, StartTime: slot.StartTime, EndTime: slot.EndTime})
	}
	return in
}

func buildResponse(intervention domain.Intervention, outcome domain.SchedulingOutcome) *transport.ScheduleInterventionResponse {
	slots := make([]transport.TimeSlotResponse, 0, len(outcome.CreatedSlots))
	for _, slot := range outcome.CreatedSlots {
		slots = append(slots, transport.TimeSlotResponse{
			ID:        slot.ID,
			Date:      slot.DateString(),
			StartTime: slot.Start.String(),
			EndTime:   slot.End.String(),
			Status:    string(slot.Status),
		})
	}

	return &transport.ScheduleInterventionResponse{
		Success: true,
		Intervention: transport.InterventionSummary{
			ID:        intervention.ID,
			Status:    string(intervention.Status),
			Title:     intervention.Title,
			UpdatedAt: intervention.UpdatedAt,
		},
		PlanningType: string(outcome.Mode),
		Message:      outcomeMessage(outcome),
		Slots:        slots,
	}
}

func outcomeMessage(outcome domain.SchedulingOutcome) string {
	switch outcome.Mode {
	case domain.PlanningDirect:
		slot := outcome.CreatedSlots[0]
		return fmt.Sprintf("Appointment fixed on %s at %s", slot.DateString(), slot.Start)
	case domain.PlanningPropose:
		if len(outcome.CreatedSlots) == 1 {
			return "1 time slot proposed"
		}
		return fmt.Sprintf("%d time slots proposed", len(outcome.CreatedSlots))
	case domain.PlanningOrganize:
		return "Tenant and provider will organize the appointment together"
	default:
		return "Scheduling started"
	}
}
