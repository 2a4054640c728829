package email

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type emailConfig struct {
	enabled bool
	host    string
	from    string
}

func (c emailConfig) GetEmailEnabled() bool       { return c.enabled }
func (c emailConfig) GetSMTPHost() string         { return c.host }
func (c emailConfig) GetSMTPPort() int            { return 587 }
func (c emailConfig) GetSMTPUsername() string     { return "" }
func (c emailConfig) GetSMTPPassword() string     { return "" }
func (c emailConfig) GetEmailFromName() string    { return "Interventions" }
func (c emailConfig) GetEmailFromAddress() string { return c.from }

func TestNewSenderSelectsTransport(t *testing.T) {
	sender, err := NewSender(emailConfig{})
	require.NoError(t, err)
	require.IsType(t, NoopSender{}, sender)
	require.NoError(t, sender.SendSchedulingEmail(context.Background(), Recipient{}, SchedulingEmail{}))

	sender, err = NewSender(emailConfig{enabled: true, host: "smtp.example.com", from: "noreply@example.com"})
	require.NoError(t, err)
	require.IsType(t, &SMTPSender{}, sender)

	_, err = NewSender(emailConfig{enabled: true, host: "smtp.example.com"})
	require.Error(t, err)
}

func TestRenderSchedulingEmailIncludesSlotLinks(t *testing.T) {
	slotID := uuid.New()
	subject, body, err := RenderSchedulingEmail(
		Recipient{Name: "Tom Tenant", Email: "tom@example.com"},
		SchedulingEmail{
			InterventionTitle: "Broken heater",
			LotReference:      "B-204",
			PlanningType:      "propose",
			ActorName:         "Mia Manager",
			InterventionURL:   "https://app.example.com/interventions/1",
			Slots: []SlotLink{{
				ID: slotID, Date: "2025-12-01", StartTime: "09:00", EndTime: "11:00",
				AcceptURL: "https://app.example.com/slots/" + slotID.String() + "/accept",
				RejectURL: "https://app.example.com/slots/" + slotID.String() + "/reject",
			}},
		},
	)
	require.NoError(t, err)
	require.Equal(t, "Choose a time slot: Broken heater", subject)
	require.Contains(t, body, "Tom Tenant")
	require.Contains(t, body, "B-204")
	require.Contains(t, body, "Mia Manager proposed time slots")
	require.Contains(t, body, slotID.String()+"/accept")
	require.True(t, strings.Contains(body, "2025-12-01 09:00"))
}

func TestRenderOrganizeEmailWithoutSlots(t *testing.T) {
	subject, body, err := RenderSchedulingEmail(Recipient{}, SchedulingEmail{InterventionTitle: "Door lock", PlanningType: "organize"})
	require.NoError(t, err)
	require.Equal(t, "Please agree on an appointment: Door lock", subject)
	require.Contains(t, body, "No time slot was proposed")
	require.Contains(t, body, "Your property manager asked")
}

func TestSMTPSenderRequiresAddress(t *testing.T) {
	sender := NewSMTPSender("smtp.example.com", 587, "", "", "noreply@example.com", "Interventions")
	err := sender.SendSchedulingEmail(context.Background(), Recipient{UserID: uuid.New()}, SchedulingEmail{})
	require.Error(t, err)
}
