package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"intervention_backend/internal/assignments"
	"intervention_backend/internal/email"
	"intervention_backend/internal/interventions/domain"
	"intervention_backend/internal/notification/outbox"
	"intervention_backend/platform/apperr"

	"github.com/google/uuid"
)

const (
	maxResolveAttempts = 5
	resolveRetryBase   = 30 * time.Second
	resolveRetryMax    = 10 * time.Minute
)

// InterventionReader loads the context of a dispatch job.
type InterventionReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Intervention, error)
	ListSlots(ctx context.Context, interventionID uuid.UUID, ids []uuid.UUID) ([]domain.TimeSlot, error)
	GetUserDisplayName(ctx context.Context, userID uuid.UUID) (string, error)
}

// DispatchJobStore tracks the state of persisted dispatch jobs.
type DispatchJobStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (outbox.Record, error)
	MarkDelivering(ctx context.Context, id uuid.UUID) (bool, error)
	ScheduleRetry(ctx context.Context, id uuid.UUID, runAt time.Time, lastError string) error
	MarkCompleted(ctx context.Context, id uuid.UUID, sent, failed int, lastError *string) error
	MarkAbandoned(ctx context.Context, id uuid.UUID, lastError string) error
}

// EmailSender delivers one email per call.
type EmailSender = email.Sender

// SetEmailStage wires the dependencies of the email stage.
func (d *Dispatcher) SetEmailStage(reader InterventionReader, jobs DispatchJobStore, sender EmailSender, appBaseURL string) {
	d.reader = reader
	d.jobStore = jobs
	d.sender = sender
	d.appBaseURL = appBaseURL
}

// SetInterventionReader replaces the intervention reader (circular dependency avoidance).
func (d *Dispatcher) SetInterventionReader(reader InterventionReader) {
	d.reader = reader
}

// DeliverJob runs the email stage of a dispatch job. Recipient failures are
// counted, not returned. A returned error means the job state could not be
// recorded and the caller may retry.
func (d *Dispatcher) DeliverJob(ctx context.Context, jobID uuid.UUID) error {
	if d.jobStore == nil || d.reader == nil || d.sender == nil {
		return fmt.Errorf("email stage not configured")
	}
	log := d.log.WithContext(ctx)

	job, err := d.jobStore.GetByID(ctx, jobID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			log.Warn("dispatch job not found; skipping", "job_id", jobID)
			return nil
		}
		return err
	}
	if job.Status.IsTerminal() {
		log.Debug("dispatch job already delivered; skipping", "job_id", jobID, "status", job.Status)
		return nil
	}

	claimed, err := d.jobStore.MarkDelivering(ctx, jobID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}
	job.Attempts++

	switch job.Kind {
	case outbox.KindSchedulingEmail:
		return d.deliverSchedulingEmails(ctx, job)
	default:
		log.Warn("unknown dispatch job kind", "job_id", jobID, "kind", job.Kind)
		return d.jobStore.MarkAbandoned(ctx, jobID, "unknown job kind: "+job.Kind)
	}
}

type schedulingEmailBatch struct {
	eventID    uuid.UUID
	data       email.SchedulingEmail
	recipients []assignments.Member
}

func (d *Dispatcher) deliverSchedulingEmails(ctx context.Context, job outbox.Record) error {
	var payload schedulingDispatchPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return d.jobStore.MarkAbandoned(ctx, job.ID, "invalid payload: "+err.Error())
	}

	batch, err := d.resolveSchedulingBatch(ctx, job.InterventionID, payload)
	if err != nil {
		return d.retryOrAbandon(ctx, job, err)
	}

	var sent, failed int
	var lastErr *string
	for _, m := range batch.recipients {
		to := email.Recipient{UserID: m.UserID, Name: m.DisplayName, Email: m.Email}
		if err := d.sender.SendSchedulingEmail(ctx, to, batch.data); err != nil {
			failed++
			msg := err.Error()
			lastErr = &msg
			d.log.WithContext(ctx).NotificationFailed(channelEmail, m.UserID.String(), batch.eventID.String(),
				apperr.Dispatch("failed to send scheduling email", err))
			continue
		}
		sent++
	}

	d.log.WithContext(ctx).DispatchSummary(channelEmail, batch.eventID.String(), sent, failed)
	return d.jobStore.MarkCompleted(ctx, job.ID, sent, failed, lastErr)
}

// resolveSchedulingBatch re-reads everything the emails need, since the job
// runs outside the request that created it.
func (d *Dispatcher) resolveSchedulingBatch(ctx context.Context, interventionID uuid.UUID, payload schedulingDispatchPayload) (schedulingEmailBatch, error) {
	intervention, err := d.reader.GetByID(ctx, interventionID)
	if err != nil {
		return schedulingEmailBatch{}, fmt.Errorf("load intervention: %w", err)
	}

	var slots []domain.TimeSlot
	if len(payload.SlotIDs) > 0 {
		slots, err = d.reader.ListSlots(ctx, interventionID, payload.SlotIDs)
		if err != nil {
			return schedulingEmailBatch{}, fmt.Errorf("load slots: %w", err)
		}
	}

	direct, err := d.resolver.Resolve(ctx, interventionID)
	if err != nil {
		return schedulingEmailBatch{}, fmt.Errorf("resolve assignments: %w", err)
	}
	teamManagers, err := d.resolver.TeamManagers(ctx, intervention.TeamID)
	if err != nil {
		return schedulingEmailBatch{}, fmt.Errorf("resolve team managers: %w", err)
	}

	name := payload.ActorName
	if stored, err := d.reader.GetUserDisplayName(ctx, payload.ActorID); err != nil {
		return schedulingEmailBatch{}, fmt.Errorf("load actor: %w", err)
	} else if stored != "" {
		name = stored
	}
	if name == "" {
		name = fallbackActorName
	}

	recipients := PlanSchedulingRecipients(direct, teamManagers, payload.ActorID)
	return schedulingEmailBatch{
		eventID:    payload.EventID,
		data:       d.schedulingEmailData(*intervention, payload.PlanningType, name, slots),
		recipients: emailRecipients(recipients, payload.ActorID),
	}, nil
}

// emailRecipients keeps the personal track minus managers and the actor.
// Team observers never receive email.
func emailRecipients(plan RecipientPlan, actorID uuid.UUID) []assignments.Member {
	team := plan.TeamIDs()
	out := make([]assignments.Member, 0, len(plan.Personal))
	for _, m := range plan.Personal {
		if m.Role == domain.RoleManager || m.UserID == actorID {
			continue
		}
		if _, isTeam := team[m.UserID]; isTeam {
			continue
		}
		if m.Email == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (d *Dispatcher) schedulingEmailData(intervention domain.Intervention, planningType, actor string, slots []domain.TimeSlot) email.SchedulingEmail {
	base := fmt.Sprintf("%s/interventions/%s", d.appBaseURL, intervention.ID)
	links := make([]email.SlotLink, 0, len(slots))
	for _, s := range slots {
		slotURL := fmt.Sprintf("%s/slots/%s", base, s.ID)
		links = append(links, email.SlotLink{
			ID:        s.ID,
			Date:      s.DateString(),
			StartTime: s.Start.String(),
			EndTime:   s.End.String(),
			AcceptURL: slotURL + "/accept",
			RejectURL: slotURL + "/reject",
		})
	}
	return email.SchedulingEmail{
		InterventionID:    intervention.ID,
		InterventionTitle: intervention.Title,
		LotReference:      intervention.LotReference,
		PlanningType:      planningType,
		ActorName:         actor,
		InterventionURL:   base,
		Slots:             links,
	}
}

func (d *Dispatcher) retryOrAbandon(ctx context.Context, job outbox.Record, cause error) error {
	log := d.log.WithContext(ctx)
	if job.Attempts >= maxResolveAttempts {
		log.Error("dispatch job abandoned", "job_id", job.ID, "attempts", job.Attempts, "error", cause)
		return d.jobStore.MarkAbandoned(ctx, job.ID, cause.Error())
	}

	retryAt := d.now().Add(computeRetryDelay(job.Attempts))
	if err := d.jobStore.ScheduleRetry(ctx, job.ID, retryAt, cause.Error()); err != nil {
		return err
	}
	log.Warn("dispatch job scheduled for retry",
		"job_id", job.ID,
		"attempt", job.Attempts,
		"maxAttempts", maxResolveAttempts,
		"retryAt", retryAt,
		"error", cause,
	)
	return nil
}

func computeRetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := resolveRetryBase << (attempt - 1)
	if delay > resolveRetryMax {
		return resolveRetryMax
	}
	return delay
}
