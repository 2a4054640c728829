// Package email renders and delivers transactional emails.
package email

import (
	"context"
	"fmt"

	"intervention_backend/platform/config"

	"github.com/google/uuid"
)

// Recipient is the addressee of one email.
type Recipient struct {
	UserID uuid.UUID
	Name   string
	Email  string
}

// SlotLink is a time slot with the links a recipient uses to answer it.
type SlotLink struct {
	ID        uuid.UUID
	Date      string
	StartTime string
	EndTime   string
	AcceptURL string
	RejectURL string
}

// SchedulingEmail is the context of a scheduling notification email.
type SchedulingEmail struct {
	InterventionID    uuid.UUID
	InterventionTitle string
	LotReference      string
	PlanningType      string
	ActorName         string
	InterventionURL   string
	Slots             []SlotLink
}

// Sender delivers emails. Implementations report one error per failed send.
type Sender interface {
	SendSchedulingEmail(ctx context.Context, to Recipient, data SchedulingEmail) error
}

// NoopSender accepts every email without sending it.
type NoopSender struct{}

func (NoopSender) SendSchedulingEmail(context.Context, Recipient, SchedulingEmail) error {
	return nil
}

// NewSender returns the SMTP sender when email is enabled, a NoopSender otherwise.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}
	if cfg.GetSMTPHost() == "" || cfg.GetEmailFromAddress() == "" {
		return nil, fmt.Errorf("smtp host and from address are required when email is enabled")
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	), nil
}
