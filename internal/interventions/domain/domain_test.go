package domain

import (
	"errors"
	"testing"
	"time"

	"intervention_backend/platform/apperr"

	"github.com/google/uuid"
)

func TestCanStartScheduling(t *testing.T) {
	allowed := map[Status]bool{
		StatusApproved:       true,
		StatusScheduling:     true,
		StatusQuoteRequested: true,
	}
	for _, s := range allStatuses {
		if got := CanStartScheduling(s); got != allowed[s] {
			t.Fatalf("CanStartScheduling(%s) = %v, want %v", s, got, allowed[s])
		}
		err := EnsureSchedulable(s)
		if allowed[s] {
			if err != nil {
				t.Fatalf("EnsureSchedulable(%s) unexpected error: %v", s, err)
			}
			continue
		}
		if !apperr.Is(err, apperr.KindStateConflict) {
			t.Fatalf("EnsureSchedulable(%s) expected state conflict, got %v", s, err)
		}
	}
}

func TestEnsureSchedulableEchoesStatus(t *testing.T) {
	err := EnsureSchedulable(StatusCompleted)
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperr.Error, got %T", err)
	}
	details, ok := appErr.Details.(map[string]string)
	if !ok || details["currentStatus"] != "completed" {
		t.Fatalf("expected currentStatus detail, got %#v", appErr.Details)
	}
}

func TestEverySchedulingEntryTransitionsToScheduling(t *testing.T) {
	for _, s := range schedulingEntry {
		if !CanTransition(s, StatusScheduling) {
			t.Fatalf("expected %s -> scheduling to be a defined transition", s)
		}
	}
	if CanTransition(StatusCompleted, StatusScheduling) {
		t.Fatal("completed must be terminal")
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus("quote_requested"); err != nil || s != StatusQuoteRequested {
		t.Fatalf("unexpected result %q, %v", s, err)
	}
	if _, err := ParseStatus("archived"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDirectEndTimeWrapsAroundMidnight(t *testing.T) {
	cases := map[string]string{
		"23:30": "00:30",
		"09:15": "10:15",
		"00:00": "01:00",
		"23:00": "00:00",
	}
	for start, want := range cases {
		plan, err := ParsePlan(PlanInput{
			PlanningType: "direct",
			Direct:       &DirectInput{Date: "2025-12-01", StartTime: start},
		})
		if err != nil {
			t.Fatalf("start %s: unexpected error %v", start, err)
		}
		if got := plan.(DirectPlan).End().String(); got != want {
			t.Fatalf("start %s: end = %s, want %s", start, got, want)
		}
	}
}

func TestParseClockTimeRequiresTwoDigitFields(t *testing.T) {
	for _, value := range []string{"+9:30", "-0:15", "09:+5", " 9:30", "9:30", "0x:10", "24:00", "12:60", "1230"} {
		if got, err := ParseClockTime(value); err == nil {
			t.Fatalf("ParseClockTime(%q) = %s, want error", value, got)
		}
	}

	got, err := ParseClockTime("07:05")
	if err != nil || got.String() != "07:05" {
		t.Fatalf("ParseClockTime(07:05) = %s, %v", got, err)
	}
}

func TestParsePlanValidation(t *testing.T) {
	cases := []struct {
		name string
		in   PlanInput
	}{
		{"missing mode", PlanInput{}},
		{"unknown mode", PlanInput{PlanningType: "delegate"}},
		{"direct without payload", PlanInput{PlanningType: "direct"}},
		{"direct bad time", PlanInput{PlanningType: "direct", Direct: &DirectInput{Date: "2025-12-01", StartTime: "25:00"}}},
		{"direct bad date", PlanInput{PlanningType: "direct", Direct: &DirectInput{Date: "01/12/2025", StartTime: "10:00"}}},
		{"propose empty", PlanInput{PlanningType: "propose"}},
		{"propose end before start", PlanInput{PlanningType: "propose", Proposed: []WindowInput{
			{Date: "2025-12-01", StartTime: "10:00", EndTime: "11:00"},
			{Date: "2025-12-02", StartTime: "15:00", EndTime: "14:00"},
		}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParsePlan(tc.in); !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestOrganizeIgnoresSlotFields(t *testing.T) {
	plan, err := ParsePlan(PlanInput{
		PlanningType: "organize",
		Proposed:     []WindowInput{{Date: "bad"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if MutatesSlots(plan) {
		t.Fatal("organize must not mutate slots")
	}
	if slots := BuildSlots(plan, uuid.New(), uuid.New(), time.Now()); len(slots) != 0 {
		t.Fatalf("expected no slots, got %d", len(slots))
	}
}

func TestBuildSlots(t *testing.T) {
	interventionID := uuid.New()
	caller := uuid.New()
	now := time.Now()

	direct, _ := ParsePlan(PlanInput{PlanningType: "direct", Direct: &DirectInput{Date: "2025-12-01", StartTime: "14:00"}})
	slots := BuildSlots(direct, interventionID, caller, now)
	if len(slots) != 1 {
		t.Fatalf("expected one slot, got %d", len(slots))
	}
	s := slots[0]
	if s.DateString() != "2025-12-01" || s.Start.String() != "14:00" || s.End.String() != "15:00" {
		t.Fatalf("unexpected slot window %s %s-%s", s.DateString(), s.Start, s.End)
	}
	if s.Status != SlotPending || s.ProposedBy != caller || s.Notes != DirectSlotNote || s.InterventionID != interventionID {
		t.Fatalf("unexpected slot %+v", s)
	}

	propose, _ := ParsePlan(PlanInput{PlanningType: "propose", Proposed: []WindowInput{
		{Date: "2025-12-01", StartTime: "08:00", EndTime: "10:00"},
		{Date: "2025-12-02", StartTime: "13:00", EndTime: "17:30"},
	}})
	slots = BuildSlots(propose, interventionID, caller, now)
	if len(slots) != 2 {
		t.Fatalf("expected two slots, got %d", len(slots))
	}
	if slots[1].End.String() != "17:30" || slots[1].Notes != "" {
		t.Fatalf("caller end time must be kept, got %+v", slots[1])
	}
	if slots[0].ID == slots[1].ID {
		t.Fatal("slot ids must be distinct")
	}
}

func TestAuthorize(t *testing.T) {
	team := uuid.New()
	other := uuid.New()
	withTeam := &Intervention{TeamID: &team}
	noTeam := &Intervention{}

	if !withTeam.Authorize(Caller{IsManager: true, TeamID: &team}) {
		t.Fatal("manager of the team must be authorized")
	}
	if withTeam.Authorize(Caller{IsManager: true, TeamID: &other}) {
		t.Fatal("manager of another team must be refused")
	}
	if withTeam.Authorize(Caller{IsManager: true}) {
		t.Fatal("manager without team must be refused on a team intervention")
	}
	if withTeam.Authorize(Caller{TeamID: &team}) {
		t.Fatal("non-manager must be refused")
	}
	if !noTeam.Authorize(Caller{IsManager: true, TeamID: &other}) {
		t.Fatal("team-less intervention is open to managers")
	}
}

