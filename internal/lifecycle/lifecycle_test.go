package lifecycle

import (
	"context"
	"errors"
	"testing"

	"catering/internal/apperr"
	"catering/internal/models"
	"catering/internal/testsupport"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to models.EventStatus
		want     bool
	}{
		{models.EventInquiry, models.EventPlanning, true},
		{models.EventPlanning, models.EventPreparation, true},
		{models.EventCompleted, models.EventFollowUp, true},
		{models.EventInquiry, models.EventPreparation, false},
		{models.EventPlanning, models.EventInquiry, false},
		{models.EventFollowUp, models.EventInquiry, false},
		{models.EventInquiry, models.EventInquiry, false},
		{"unknown", models.EventPlanning, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func newEvent(t *testing.T, m *Machine) models.Event {
	t.Helper()
	e, err := m.Create(context.Background(), NewEvent{
		Name:      "Corporate lunch",
		EventDate: testsupport.Date(t, "2025-06-01"),
		StartTime: "11:30",
		EndTime:   "14:00",
	}, "planner")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return e
}

func advanceTo(t *testing.T, m *Machine, id int64, target models.EventStatus) {
	t.Helper()
	for _, s := range models.EventStatuses[1:] {
		if _, err := m.Transition(context.Background(), id, s, "planner", ""); err != nil {
			t.Fatalf("Transition to %s: %v", s, err)
		}
		if s == target {
			return
		}
	}
}

func TestCreateStartsAtInquiryWithHistory(t *testing.T) {
	m := New(testsupport.OpenStore(t), nil)
	e := newEvent(t, m)
	if e.Status != models.EventInquiry {
		t.Fatalf("status = %s", e.Status)
	}
	history, err := m.History(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].FromStatus != "" || history[0].ToStatus != models.EventInquiry || history[0].ChangedBy != "planner" {
		t.Fatalf("unexpected history: %#v", history)
	}
}

func TestCreateValidation(t *testing.T) {
	m := New(testsupport.OpenStore(t), nil)
	for name, in := range map[string]NewEvent{
		"no name":   {EventDate: testsupport.Date(t, "2025-06-01")},
		"no date":   {Name: "Brunch"},
		"bad clock": {Name: "Brunch", EventDate: testsupport.Date(t, "2025-06-01"), StartTime: "9am"},
		"attendees": {Name: "Brunch", EventDate: testsupport.Date(t, "2025-06-01"), AttendeeCount: -1},
	} {
		if _, err := m.Create(context.Background(), in, "x"); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestTransitionIsForwardOnlyAndLogged(t *testing.T) {
	m := New(testsupport.OpenStore(t), nil)
	e := newEvent(t, m)
	ctx := context.Background()

	if _, err := m.Transition(ctx, e.ID, models.EventPreparation, "planner", ""); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("skip should be rejected, got %v", err)
	}
	if _, err := m.Transition(ctx, e.ID, "cancelled", "planner", ""); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("unknown status should be a validation error, got %v", err)
	}

	updated, err := m.Transition(ctx, e.ID, models.EventPlanning, "chef", "menu agreed")
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if updated.Status != models.EventPlanning {
		t.Fatalf("status = %s", updated.Status)
	}
	if _, err := m.Transition(ctx, e.ID, models.EventInquiry, "chef", ""); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("revert should be rejected, got %v", err)
	}

	history, err := m.History(ctx, e.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history rows, got %d", len(history))
	}
	last := history[1]
	if last.FromStatus != models.EventInquiry || last.ToStatus != models.EventPlanning || last.ChangedBy != "chef" || last.Notes != "menu agreed" {
		t.Fatalf("unexpected history row: %#v", last)
	}

	if _, err := m.Transition(ctx, 999, models.EventPlanning, "chef", ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestArchiveOnlyFromCompleted(t *testing.T) {
	m := New(testsupport.OpenStore(t), nil)
	e := newEvent(t, m)
	ctx := context.Background()

	advanceTo(t, m, e.ID, models.EventInProgress)
	if _, err := m.Archive(ctx, e.ID, "planner"); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("archive from in_progress should fail, got %v", err)
	}

	if _, err := m.Transition(ctx, e.ID, models.EventCompleted, "planner", ""); err != nil {
		t.Fatalf("complete: %v", err)
	}

	archived, err := m.Archive(ctx, e.ID, "planner")
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if !archived.IsArchived || archived.ArchivedAt == nil {
		t.Fatalf("archive flags not set: %#v", archived)
	}
}

func TestArchivedEventIsFrozen(t *testing.T) {
	m := New(testsupport.OpenStore(t), nil)
	e := newEvent(t, m)
	ctx := context.Background()
	advanceTo(t, m, e.ID, models.EventCompleted)
	if _, err := m.Archive(ctx, e.ID, "planner"); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	name := "Renamed"
	if _, err := m.Update(ctx, e.ID, EventChanges{Name: &name}); !errors.Is(err, apperr.ErrArchivedEvent) {
		t.Fatalf("update should be rejected, got %v", err)
	}
	if _, err := m.Transition(ctx, e.ID, models.EventFollowUp, "planner", ""); !errors.Is(err, apperr.ErrArchivedEvent) {
		t.Fatalf("transition should be rejected, got %v", err)
	}
	if _, err := m.Archive(ctx, e.ID, "planner"); !errors.Is(err, apperr.ErrArchivedEvent) {
		t.Fatalf("second archive should be rejected, got %v", err)
	}
}

func TestUpdateEditsFieldsButNotStatus(t *testing.T) {
	m := New(testsupport.OpenStore(t), nil)
	e := newEvent(t, m)
	ctx := context.Background()

	status := models.EventPlanning
	if _, err := m.Update(ctx, e.ID, EventChanges{Status: &status}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("status edit should be rejected, got %v", err)
	}

	location := "Harbour hall"
	attendees := 120
	updated, err := m.Update(ctx, e.ID, EventChanges{Location: &location, AttendeeCount: &attendees})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Location != location || updated.AttendeeCount != attendees || updated.Name != e.Name || updated.Status != models.EventInquiry {
		t.Fatalf("unexpected update result: %#v", updated)
	}

	bad := "25:99"
	if _, err := m.Update(ctx, e.ID, EventChanges{EndTime: &bad}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("bad clock should be rejected, got %v", err)
	}
}
