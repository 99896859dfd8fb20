package generate

import (
	"context"
	"errors"
	"testing"
	"time"

	"catering/internal/apperr"
	"catering/internal/models"
	"catering/internal/storage/sqlite"
	"catering/internal/testsupport"
)

func dueOn(t *testing.T, day string) *time.Time {
	t.Helper()
	d := testsupport.Date(t, day)
	return &d
}

func day(tp *time.Time) string {
	if tp == nil {
		return "<nil>"
	}
	return tp.Format(models.DateLayout)
}

// seedSource creates a completed wedding dated 2025-06-01 with four tasks at
// offsets -7, -1, 0 and +2 days chained one after another.
func seedSource(t *testing.T, store *sqlite.Store) (models.Event, []models.Task) {
	t.Helper()
	source := testsupport.MustEvent(t, store, models.Event{
		Name:          "Smith wedding",
		EventDate:     testsupport.Date(t, "2025-06-01"),
		StartTime:     "15:00",
		EndTime:       "23:00",
		Location:      "Lakeside barn",
		AttendeeCount: 140,
		Notes:         "Vegetarian menu",
		Status:        models.EventCompleted,
	})
	completedAt := testsupport.At(t, "2025-06-02T10:00:00Z")
	staff := int64(7)

	specs := []struct {
		title string
		due   string
	}{
		{"Confirm menu", "2025-05-25"},
		{"Shop ingredients", "2025-05-31"},
		{"Cook and serve", "2025-06-01"},
		{"Return rentals", "2025-06-03"},
	}
	tasks := make([]models.Task, 0, len(specs))
	var prev *int64
	for _, s := range specs {
		task := testsupport.MustTask(t, store, models.Task{
			EventID:         source.ID,
			Title:           s.title,
			Description:     s.title + " for the wedding",
			Category:        "kitchen",
			Status:          models.TaskCompleted,
			DueDate:         dueOn(t, s.due),
			AssignedTo:      &staff,
			DependsOnTaskID: prev,
			IsOverdue:       true,
			CompletedAt:     &completedAt,
		})
		tasks = append(tasks, task)
		prev = &task.ID
	}
	return source, tasks
}

func TestCloneRecalculatesDueDates(t *testing.T) {
	store := testsupport.OpenStore(t)
	source, sourceTasks := seedSource(t, store)
	chef := testsupport.MustResource(t, store, "Chef")
	testsupport.MustBook(t, store, chef.ID, source.ID, &sourceTasks[2].ID,
		testsupport.At(t, "2025-06-01T15:00:00Z"), testsupport.At(t, "2025-06-01T23:00:00Z"))

	g := New(store, nil)
	event, tasks, err := g.CloneEvent(context.Background(), source.ID, CloneOptions{
		EventDate: testsupport.Date(t, "2025-09-10"),
		Actor:     "planner",
	})
	if err != nil {
		t.Fatalf("CloneEvent: %v", err)
	}

	if event.Status != models.EventInquiry || event.IsArchived {
		t.Fatalf("clone should start fresh: %#v", event)
	}
	if event.ClonedFromEventID == nil || *event.ClonedFromEventID != source.ID {
		t.Fatalf("lineage not recorded: %#v", event.ClonedFromEventID)
	}
	if event.Name != source.Name || event.Location != source.Location || event.AttendeeCount != 140 || event.Notes != source.Notes || event.StartTime != "15:00" {
		t.Fatalf("descriptive fields not copied: %#v", event)
	}

	want := []string{"2025-09-03", "2025-09-09", "2025-09-10", "2025-09-12"}
	if len(tasks) != len(want) {
		t.Fatalf("got %d tasks, want %d", len(tasks), len(want))
	}
	for i, task := range tasks {
		if got := day(task.DueDate); got != want[i] {
			t.Fatalf("task %q due %s, want %s", task.Title, got, want[i])
		}
		if task.Status != models.TaskPending || task.AssignedTo != nil || task.IsOverdue || task.CompletedAt != nil {
			t.Fatalf("execution state not reset: %#v", task)
		}
		if task.Title != sourceTasks[i].Title || task.Description != sourceTasks[i].Description || task.Category != "kitchen" {
			t.Fatalf("descriptive fields not copied: %#v", task)
		}
		if task.EventID != event.ID {
			t.Fatalf("task attached to event %d", task.EventID)
		}
	}

	if tasks[0].DependsOnTaskID != nil {
		t.Fatalf("first task should have no predecessor")
	}
	for i := 1; i < len(tasks); i++ {
		if tasks[i].DependsOnTaskID == nil || *tasks[i].DependsOnTaskID != tasks[i-1].ID {
			t.Fatalf("task %d dependency not remapped onto the clone: %v", i, tasks[i].DependsOnTaskID)
		}
	}

	n, err := store.CountScheduleEntries(context.Background(), chef.ID)
	if err != nil {
		t.Fatalf("CountScheduleEntries: %v", err)
	}
	if n != 1 {
		t.Fatalf("schedule entries must not be copied, chef has %d", n)
	}

	history, err := store.ListStatusHistory(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("ListStatusHistory: %v", err)
	}
	if len(history) != 1 || history[0].ToStatus != models.EventInquiry {
		t.Fatalf("clone history should hold only its own start: %#v", history)
	}
}

func TestCloneNullDueDateAndForeignDependency(t *testing.T) {
	store := testsupport.OpenStore(t)
	other := testsupport.MustEvent(t, store, models.Event{Name: "Other"})
	foreign := testsupport.MustTask(t, store, models.Task{EventID: other.ID, Title: "Foreign"})
	source := testsupport.MustEvent(t, store, models.Event{Name: "Source"})
	testsupport.MustTask(t, store, models.Task{EventID: source.ID, Title: "Anomalous", DependsOnTaskID: &foreign.ID})

	_, tasks, err := New(store, nil).CloneEvent(context.Background(), source.ID, CloneOptions{EventDate: testsupport.Date(t, "2025-07-01")})
	if err != nil {
		t.Fatalf("CloneEvent: %v", err)
	}
	if len(tasks) != 1 || tasks[0].DependsOnTaskID != nil || tasks[0].DueDate != nil {
		t.Fatalf("expected dropped dependency and null due date: %#v", tasks)
	}
}

func TestCloneFromArchivedSourceWithOverrides(t *testing.T) {
	store := testsupport.OpenStore(t)
	source := testsupport.MustEvent(t, store, models.Event{Name: "Gala 2024", Status: models.EventCompleted, IsArchived: true, Location: "Museum"})

	name := "Gala 2025"
	attendees := 300
	event, tasks, err := New(store, nil).CloneEvent(context.Background(), source.ID, CloneOptions{
		EventDate:     testsupport.Date(t, "2025-11-20"),
		Name:          &name,
		AttendeeCount: &attendees,
	})
	if err != nil {
		t.Fatalf("cloning an archived event should work: %v", err)
	}
	if event.Name != name || event.AttendeeCount != attendees || event.Location != "Museum" || event.IsArchived {
		t.Fatalf("unexpected clone: %#v", event)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected no tasks, got %d", len(tasks))
	}
}

func TestCloneValidation(t *testing.T) {
	store := testsupport.OpenStore(t)
	source := testsupport.MustEvent(t, store, models.Event{})
	g := New(store, nil)
	ctx := context.Background()

	if _, _, err := g.CloneEvent(ctx, source.ID, CloneOptions{}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("missing date: got %v", err)
	}
	if _, _, err := g.CloneEvent(ctx, 999, CloneOptions{EventDate: testsupport.Date(t, "2025-07-01")}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing source: got %v", err)
	}
	bad := "noon"
	if _, _, err := g.CloneEvent(ctx, source.ID, CloneOptions{EventDate: testsupport.Date(t, "2025-07-01"), StartTime: &bad}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("bad clock: got %v", err)
	}
}

func seedTemplate(t *testing.T, store *sqlite.Store, items []models.TaskTemplateItem) models.TaskTemplate {
	t.Helper()
	tpl, err := store.CreateTemplate(context.Background(), models.TaskTemplate{Name: "Standard wedding", Items: items})
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	return tpl
}

func TestInstantiateTemplate(t *testing.T) {
	store := testsupport.OpenStore(t)
	// Listed out of order on purpose; generation goes by sort order.
	tpl := seedTemplate(t, store, []models.TaskTemplateItem{
		{Title: "Tasting", Category: "sales", DaysOffset: -30, SortOrder: 1},
		{Title: "Final headcount", Category: "sales", DaysOffset: -7, SortOrder: 2, DependsOnIndex: testsupport.Ptr(1)},
		{Title: "Cleanup", Category: "ops", DaysOffset: 1, SortOrder: 3, DependsOnIndex: testsupport.Ptr(9)},
	})
	event := testsupport.MustEvent(t, store, models.Event{EventDate: testsupport.Date(t, "2025-08-15")})

	tasks, err := New(store, nil).InstantiateTemplate(context.Background(), event.ID, tpl.ID, "planner")
	if err != nil {
		t.Fatalf("InstantiateTemplate: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("got %d tasks", len(tasks))
	}
	wantDue := []string{"2025-07-16", "2025-08-08", "2025-08-16"}
	for i, task := range tasks {
		if got := day(task.DueDate); got != wantDue[i] {
			t.Fatalf("%s due %s, want %s", task.Title, got, wantDue[i])
		}
		if task.Status != models.TaskPending {
			t.Fatalf("%s status %s", task.Title, task.Status)
		}
	}
	if tasks[1].DependsOnTaskID == nil || *tasks[1].DependsOnTaskID != tasks[0].ID {
		t.Fatalf("dependsOnIndex not remapped")
	}
	if tasks[2].DependsOnTaskID != nil {
		t.Fatalf("unresolvable index should be dropped")
	}

	updated, err := store.GetEvent(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if updated.TemplateID == nil || *updated.TemplateID != tpl.ID {
		t.Fatalf("template id not recorded: %v", updated.TemplateID)
	}

	again, err := store.GetTemplate(context.Background(), tpl.ID)
	if err != nil {
		t.Fatalf("GetTemplate: %v", err)
	}
	if len(again.Items) != 3 {
		t.Fatalf("template items changed: %#v", again.Items)
	}
}

func TestInstantiateTemplateIsAtomic(t *testing.T) {
	store := testsupport.OpenStore(t)
	tpl := seedTemplate(t, store, []models.TaskTemplateItem{
		{Title: "Loose", SortOrder: 1},
		{Title: "Egg", SortOrder: 2, DependsOnIndex: testsupport.Ptr(3)},
		{Title: "Chicken", SortOrder: 3, DependsOnIndex: testsupport.Ptr(2)},
	})
	event := testsupport.MustEvent(t, store, models.Event{})
	ctx := context.Background()

	if _, err := New(store, nil).InstantiateTemplate(ctx, event.ID, tpl.ID, "planner"); !errors.Is(err, apperr.ErrDependencyCycle) {
		t.Fatalf("expected cycle error, got %v", err)
	}
	tasks, err := store.ListTasksByEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("ListTasksByEvent: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("partial task set left behind: %d", len(tasks))
	}
	got, err := store.GetEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if got.TemplateID != nil {
		t.Fatalf("template id recorded despite failure")
	}
}

func TestInstantiateTemplateRejectsArchivedTarget(t *testing.T) {
	store := testsupport.OpenStore(t)
	tpl := seedTemplate(t, store, []models.TaskTemplateItem{{Title: "Only", SortOrder: 1}})
	event := testsupport.MustEvent(t, store, models.Event{Status: models.EventCompleted, IsArchived: true})

	if _, err := New(store, nil).InstantiateTemplate(context.Background(), event.ID, tpl.ID, "planner"); !errors.Is(err, apperr.ErrArchivedEvent) {
		t.Fatalf("expected archived error, got %v", err)
	}
	if _, err := New(store, nil).InstantiateTemplate(context.Background(), event.ID, 999, "planner"); !errors.Is(err, apperr.ErrArchivedEvent) {
		t.Fatalf("archive check comes first, got %v", err)
	}
}

func TestCloneSeries(t *testing.T) {
	store := testsupport.OpenStore(t)
	source, _ := seedSource(t, store)
	g := New(store, nil)
	ctx := context.Background()

	events, err := g.CloneSeries(ctx, source.ID, SeriesOptions{
		Rule:  "RRULE:FREQ=WEEKLY;COUNT=3",
		First: testsupport.Date(t, "2025-09-10"),
		Actor: "planner",
	})
	if err != nil {
		t.Fatalf("CloneSeries: %v", err)
	}
	want := []string{"2025-09-10", "2025-09-17", "2025-09-24"}
	if len(events) != len(want) {
		t.Fatalf("got %d events", len(events))
	}
	for i, e := range events {
		if got := e.EventDate.Format(models.DateLayout); got != want[i] {
			t.Fatalf("event %d dated %s, want %s", i, got, want[i])
		}
		tasks, err := store.ListTasksByEvent(ctx, e.ID)
		if err != nil {
			t.Fatalf("ListTasksByEvent: %v", err)
		}
		if len(tasks) != 4 {
			t.Fatalf("event %d has %d tasks", e.ID, len(tasks))
		}
		wantFirst := e.EventDate.AddDate(0, 0, -7).Format(models.DateLayout)
		if day(tasks[0].DueDate) != wantFirst {
			t.Fatalf("first task due %s, want %s", day(tasks[0].DueDate), wantFirst)
		}
	}
}

func TestCloneSeriesRejectsOversizedRule(t *testing.T) {
	store := testsupport.OpenStore(t)
	source, _ := seedSource(t, store)
	g := New(store, nil)

	tests := []struct {
		name string
		opts SeriesOptions
	}{
		{"unbounded", SeriesOptions{Rule: "FREQ=DAILY", First: testsupport.Date(t, "2025-09-10"), Max: 5}},
		{"garbage", SeriesOptions{Rule: "FREQ=SOMETIMES", First: testsupport.Date(t, "2025-09-10")}},
		{"no anchor", SeriesOptions{Rule: "FREQ=DAILY;COUNT=2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := g.CloneSeries(context.Background(), source.ID, tt.opts); !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
