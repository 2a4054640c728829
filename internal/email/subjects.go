package email

import "fmt"

const (
	subjectDirectFmt   = "Appointment fixed: %s"
	subjectProposeFmt  = "Choose a time slot: %s"
	subjectOrganizeFmt = "Please agree on an appointment: %s"
	subjectDefaultFmt  = "Scheduling update: %s"
)

func schedulingSubject(data SchedulingEmail) string {
	switch data.PlanningType {
	case "direct":
		return fmt.Sprintf(subjectDirectFmt, data.InterventionTitle)
	case "propose":
		return fmt.Sprintf(subjectProposeFmt, data.InterventionTitle)
	case "organize":
		return fmt.Sprintf(subjectOrganizeFmt, data.InterventionTitle)
	default:
		return fmt.Sprintf(subjectDefaultFmt, data.InterventionTitle)
	}
}

func schedulingSubheading(planningType, actor string) string {
	switch planningType {
	case "direct":
		return actor + " fixed an appointment for this intervention."
	case "propose":
		return actor + " proposed time slots for this intervention. Accept the one that suits you."
	case "organize":
		return actor + " asked the tenant and the provider to agree on an appointment together."
	default:
		return actor + " started scheduling this intervention."
	}
}
