package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title      string
	Heading    string
	Subheading string
	CTALabel   string
	CTAURL     string
}

type schedulingEmailData struct {
	baseEmailData
	RecipientName string
	ActorName     string
	LotReference  string
	PlanningType  string
	Slots         []SlotLink
}

// RenderSchedulingEmail returns the subject and HTML body of a scheduling email.
func RenderSchedulingEmail(to Recipient, data SchedulingEmail) (subject string, body string, err error) {
	subject = schedulingSubject(data)
	actor := data.ActorName
	if actor == "" {
		actor = "Your property manager"
	}

	content, err := renderEmailTemplate("scheduling.html", schedulingEmailData{
		baseEmailData: baseEmailData{
			Title:      subject,
			Heading:    data.InterventionTitle,
			Subheading: schedulingSubheading(data.PlanningType, actor),
			CTALabel:   "View intervention",
			CTAURL:     data.InterventionURL,
		},
		RecipientName: to.Name,
		ActorName:     actor,
		LotReference:  data.LotReference,
		PlanningType:  data.PlanningType,
		Slots:         data.Slots,
	})
	if err != nil {
		return "", "", err
	}
	return subject, content, nil
}

func renderEmailTemplate(name string, data any) (string, error) {
	files := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, files...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}
