package tasks

import (
	"context"
	"errors"
	"testing"

	"catering/internal/apperr"
	"catering/internal/lifecycle"
	"catering/internal/models"
	"catering/internal/storage/sqlite"
	"catering/internal/testsupport"
)

type chainFixture struct {
	store   *sqlite.Store
	svc     *Service
	event   models.Event
	a, b, c models.Task
}

func newChain(t *testing.T) chainFixture {
	t.Helper()
	store := testsupport.OpenStore(t)
	svc := New(store, nil)
	event := testsupport.MustEvent(t, store, models.Event{})
	ctx := context.Background()

	a, err := svc.Create(ctx, event.ID, NewTask{Title: "Order produce"})
	if err != nil {
		t.Fatalf("create A: %v", err)
	}
	b, err := svc.Create(ctx, event.ID, NewTask{Title: "Prep sauces", DependsOnTaskID: &a.ID})
	if err != nil {
		t.Fatalf("create B: %v", err)
	}
	c, err := svc.Create(ctx, event.ID, NewTask{Title: "Plate dishes", DependsOnTaskID: &b.ID})
	if err != nil {
		t.Fatalf("create C: %v", err)
	}
	return chainFixture{store: store, svc: svc, event: event, a: a, b: b, c: c}
}

func TestDependencyChainCompletion(t *testing.T) {
	f := newChain(t)
	ctx := context.Background()

	if _, err := f.svc.SetStatus(ctx, f.c.ID, models.TaskCompleted); !errors.Is(err, apperr.ErrDependencyNotSatisfied) {
		t.Fatalf("completing C before B should fail, got %v", err)
	}
	if _, err := f.svc.SetStatus(ctx, f.a.ID, models.TaskCompleted); err != nil {
		t.Fatalf("complete A: %v", err)
	}
	b, err := f.svc.SetStatus(ctx, f.b.ID, models.TaskCompleted)
	if err != nil {
		t.Fatalf("complete B after A: %v", err)
	}
	if b.CompletedAt == nil || b.Status != models.TaskCompleted {
		t.Fatalf("completion not recorded: %#v", b)
	}

	reopened, err := f.svc.SetStatus(ctx, f.b.ID, models.TaskInProgress)
	if err != nil {
		t.Fatalf("reopen B: %v", err)
	}
	if reopened.CompletedAt != nil {
		t.Fatalf("completedAt should be cleared, got %v", reopened.CompletedAt)
	}
}

func TestClosingTheCycleIsRejected(t *testing.T) {
	f := newChain(t)
	ctx := context.Background()

	if _, err := f.svc.Update(ctx, f.a.ID, Changes{DependsOnTaskID: &f.c.ID}); !errors.Is(err, apperr.ErrDependencyCycle) {
		t.Fatalf("A -> C should be rejected, got %v", err)
	}
	a, err := f.store.GetTask(ctx, f.a.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if a.DependsOnTaskID != nil {
		t.Fatalf("rejected update leaked: %v", *a.DependsOnTaskID)
	}

	c, err := f.svc.Update(ctx, f.c.ID, Changes{ClearDependency: true})
	if err != nil {
		t.Fatalf("clear dependency: %v", err)
	}
	if c.DependsOnTaskID != nil {
		t.Fatalf("dependency not cleared")
	}
}

func TestCreateRejectsForeignDependency(t *testing.T) {
	f := newChain(t)
	other := testsupport.MustEvent(t, f.store, models.Event{Name: "Other"})
	_, err := f.svc.Create(context.Background(), other.ID, NewTask{Title: "Cross", DependsOnTaskID: &f.a.ID})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteClearsDependentsAndBookings(t *testing.T) {
	f := newChain(t)
	ctx := context.Background()
	van := testsupport.MustResource(t, f.store, "Van")
	testsupport.MustBook(t, f.store, van.ID, f.event.ID, &f.b.ID,
		testsupport.At(t, "2025-06-01T08:00:00Z"), testsupport.At(t, "2025-06-01T10:00:00Z"))

	if err := f.svc.Delete(ctx, f.b.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	c, err := f.store.GetTask(ctx, f.c.ID)
	if err != nil {
		t.Fatalf("dependent task should survive: %v", err)
	}
	if c.DependsOnTaskID != nil {
		t.Fatalf("dependent should be cleared, got %v", *c.DependsOnTaskID)
	}
	n, err := f.store.CountScheduleEntries(ctx, van.ID)
	if err != nil {
		t.Fatalf("CountScheduleEntries: %v", err)
	}
	if n != 0 {
		t.Fatalf("bookings should be removed, got %d", n)
	}
	if err := f.svc.Delete(ctx, f.b.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("second delete should be not found, got %v", err)
	}
}

func TestArchivedEventRejectsTaskWrites(t *testing.T) {
	f := newChain(t)
	ctx := context.Background()
	machine := lifecycle.New(f.store, nil)
	for _, s := range models.EventStatuses[1:5] {
		if _, err := machine.Transition(ctx, f.event.ID, s, "planner", ""); err != nil {
			t.Fatalf("Transition %s: %v", s, err)
		}
	}
	if _, err := machine.Archive(ctx, f.event.ID, "planner"); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	title := "Changed"
	checks := map[string]error{}
	_, checks["create"] = f.svc.Create(ctx, f.event.ID, NewTask{Title: "Late addition"})
	_, checks["update"] = f.svc.Update(ctx, f.a.ID, Changes{Title: &title})
	_, checks["status"] = f.svc.SetStatus(ctx, f.a.ID, models.TaskCompleted)
	checks["delete"] = f.svc.Delete(ctx, f.a.ID)
	for name, err := range checks {
		if !errors.Is(err, apperr.ErrArchivedEvent) {
			t.Fatalf("%s on archived event: expected archived error, got %v", name, err)
		}
	}

	list, err := f.svc.ListByEvent(ctx, f.event.ID)
	if err != nil {
		t.Fatalf("reads still work: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(list))
	}
}

func TestCreateValidation(t *testing.T) {
	store := testsupport.OpenStore(t)
	svc := New(store, nil)
	if _, err := svc.Create(context.Background(), 1, NewTask{Title: "  "}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Create(context.Background(), 42, NewTask{Title: "Orphan"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.SetStatus(context.Background(), 1, "done"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for status, got %v", err)
	}
}
