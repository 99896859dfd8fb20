// Package testsupport holds fixtures shared by package tests.
package testsupport

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"catering/internal/models"
	"catering/internal/storage/sqlite"
)

// OpenStore opens a migrated store in a temporary directory.
func OpenStore(t testing.TB) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "catering-test.db"), nil, sqlite.Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// At parses an RFC3339 timestamp.
func At(t testing.TB, value string) time.Time {
	t.Helper()
	out, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return out
}

// Date parses a YYYY-MM-DD date.
func Date(t testing.TB, value string) time.Time {
	t.Helper()
	out, err := models.ParseDate(value)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return out
}

// MustEvent inserts an event, defaulting the name and date when unset.
func MustEvent(t testing.TB, store *sqlite.Store, e models.Event) models.Event {
	t.Helper()
	if e.Name == "" {
		e.Name = "Wedding reception"
	}
	if e.EventDate.IsZero() {
		e.EventDate = Date(t, "2025-06-01")
	}
	out, err := store.CreateEvent(context.Background(), e)
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return out
}

// MustResource inserts an available staff resource.
func MustResource(t testing.TB, store *sqlite.Store, name string) models.Resource {
	t.Helper()
	out, err := store.CreateResource(context.Background(), models.Resource{
		Name:        name,
		Category:    models.ResourceStaff,
		IsAvailable: true,
	})
	if err != nil {
		t.Fatalf("create resource: %v", err)
	}
	return out
}

// MustTask inserts a task.
func MustTask(t testing.TB, store *sqlite.Store, task models.Task) models.Task {
	t.Helper()
	if task.Title == "" {
		task.Title = "Prep"
	}
	out, err := store.CreateTask(context.Background(), task)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return out
}

// MustBook commits a schedule entry without any overlap check.
func MustBook(t testing.TB, store *sqlite.Store, resourceID, eventID int64, taskID *int64, start, end time.Time) models.ScheduleEntry {
	t.Helper()
	out, err := store.CreateScheduleEntry(context.Background(), models.ScheduleEntry{
		ResourceID: resourceID,
		EventID:    eventID,
		TaskID:     taskID,
		StartTime:  start,
		EndTime:    end,
	})
	if err != nil {
		t.Fatalf("book resource: %v", err)
	}
	return out
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
