package conflict

import (
	"context"
	"errors"
	"testing"
	"time"

	"catering/internal/apperr"
	"catering/internal/models"
	"catering/internal/testsupport"
)

func TestOverlapsMatchesHalfOpenDefinition(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	h := func(n int) time.Time { return base.Add(time.Duration(n) * time.Hour) }

	// Exhaustive over small hour grids: overlap iff s1 < e2 && s2 < e1.
	for s1 := 0; s1 < 6; s1++ {
		for e1 := s1 + 1; e1 <= 6; e1++ {
			for s2 := 0; s2 < 6; s2++ {
				for e2 := s2 + 1; e2 <= 6; e2++ {
					want := s1 < e2 && s2 < e1
					if got := Overlaps(h(s1), h(e1), h(s2), h(e2)); got != want {
						t.Fatalf("Overlaps([%d,%d),[%d,%d)) = %v, want %v", s1, e1, s2, e2, got, want)
					}
				}
			}
		}
	}
}

func TestCheckBoundaryCases(t *testing.T) {
	store := testsupport.OpenStore(t)
	svc := New(store, nil)
	ctx := context.Background()

	event := testsupport.MustEvent(t, store, models.Event{})
	chef := testsupport.MustResource(t, store, "Chef Ana")
	testsupport.MustBook(t, store, chef.ID, event.ID, nil,
		testsupport.At(t, "2025-06-01T09:00:00Z"), testsupport.At(t, "2025-06-01T17:00:00Z"))

	tests := []struct {
		name  string
		start string
		end   string
		want  int
	}{
		{"adjacent after", "2025-06-01T17:00:00Z", "2025-06-01T21:00:00Z", 0},
		{"adjacent before", "2025-06-01T05:00:00Z", "2025-06-01T09:00:00Z", 0},
		{"exact duplicate", "2025-06-01T09:00:00Z", "2025-06-01T17:00:00Z", 1},
		{"contained", "2025-06-01T10:00:00Z", "2025-06-01T11:00:00Z", 1},
		{"containing", "2025-06-01T08:00:00Z", "2025-06-01T18:00:00Z", 1},
		{"partial tail", "2025-06-01T16:59:00Z", "2025-06-01T18:00:00Z", 1},
		{"other day", "2025-06-02T09:00:00Z", "2025-06-02T17:00:00Z", 0},
		{"half microsecond into start", "2025-06-01T08:00:00Z", "2025-06-01T09:00:00.0000005Z", 1},
		{"half microsecond before end", "2025-06-01T16:59:59.9999995Z", "2025-06-01T18:00:00Z", 1},
		{"one nanosecond after end", "2025-06-01T17:00:00.000000001Z", "2025-06-01T18:00:00Z", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Check(ctx, Query{
				ResourceIDs: []int64{chef.ID},
				Start:       testsupport.At(t, tt.start),
				End:         testsupport.At(t, tt.end),
			})
			if err != nil {
				t.Fatalf("check: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("got %d conflicts, want %d: %#v", len(got), tt.want, got)
			}
			if tt.want == 1 {
				c := got[0]
				if c.ResourceName != "Chef Ana" || c.EventName != event.Name {
					t.Fatalf("missing denormalized context: %#v", c)
				}
			}
		})
	}
}

func TestCheckOrdersByResourceThenStart(t *testing.T) {
	store := testsupport.OpenStore(t)
	svc := New(store, nil)
	ctx := context.Background()

	event := testsupport.MustEvent(t, store, models.Event{})
	a := testsupport.MustResource(t, store, "Tent")
	b := testsupport.MustResource(t, store, "Van")
	task := testsupport.MustTask(t, store, models.Task{EventID: event.ID, Title: "Load van"})

	testsupport.MustBook(t, store, b.ID, event.ID, &task.ID, testsupport.At(t, "2025-06-01T12:00:00Z"), testsupport.At(t, "2025-06-01T13:00:00Z"))
	testsupport.MustBook(t, store, b.ID, event.ID, nil, testsupport.At(t, "2025-06-01T08:00:00Z"), testsupport.At(t, "2025-06-01T10:00:00Z"))
	testsupport.MustBook(t, store, a.ID, event.ID, nil, testsupport.At(t, "2025-06-01T11:00:00Z"), testsupport.At(t, "2025-06-01T12:00:00Z"))

	got, err := svc.Check(ctx, Query{
		ResourceIDs: []int64{b.ID, a.ID, b.ID},
		Start:       testsupport.At(t, "2025-06-01T00:00:00Z"),
		End:         testsupport.At(t, "2025-06-02T00:00:00Z"),
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 conflicts, got %d", len(got))
	}
	if got[0].ResourceID != a.ID || got[1].ResourceID != b.ID || got[2].ResourceID != b.ID {
		t.Fatalf("unexpected resource order: %#v", got)
	}
	if !got[1].ExistingStartTime.Before(got[2].ExistingStartTime) {
		t.Fatalf("entries for one resource must be ordered by start time")
	}
	if got[2].TaskTitle == nil || *got[2].TaskTitle != "Load van" {
		t.Fatalf("expected task title on task-bound entry: %#v", got[2])
	}

	grouped := Group(got)
	if len(grouped[a.ID]) != 1 || len(grouped[b.ID]) != 2 {
		t.Fatalf("unexpected grouping: %#v", grouped)
	}
}

func TestCheckExcludesEditedEntry(t *testing.T) {
	store := testsupport.OpenStore(t)
	svc := New(store, nil)

	event := testsupport.MustEvent(t, store, models.Event{})
	chef := testsupport.MustResource(t, store, "Chef")
	entry := testsupport.MustBook(t, store, chef.ID, event.ID, nil,
		testsupport.At(t, "2025-06-01T09:00:00Z"), testsupport.At(t, "2025-06-01T17:00:00Z"))

	got, err := svc.Check(context.Background(), Query{
		ResourceIDs:    []int64{chef.ID},
		Start:          testsupport.At(t, "2025-06-01T10:00:00Z"),
		End:            testsupport.At(t, "2025-06-01T12:00:00Z"),
		ExcludeEntryID: &entry.ID,
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("excluded entry must not be reported: %#v", got)
	}
}

func TestCheckUnknownResourceIsEmpty(t *testing.T) {
	store := testsupport.OpenStore(t)
	svc := New(store, nil)

	got, err := svc.Check(context.Background(), Query{
		ResourceIDs: []int64{4242},
		Start:       testsupport.At(t, "2025-06-01T09:00:00Z"),
		End:         testsupport.At(t, "2025-06-01T10:00:00Z"),
	})
	if err != nil {
		t.Fatalf("unknown resource must not error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", got)
	}
}

func TestCheckValidation(t *testing.T) {
	store := testsupport.OpenStore(t)
	svc := New(store, nil)
	nine := testsupport.At(t, "2025-06-01T09:00:00Z")

	tests := []struct {
		name string
		q    Query
	}{
		{"empty ids", Query{Start: nine, End: nine.Add(time.Hour)}},
		{"start equals end", Query{ResourceIDs: []int64{1}, Start: nine, End: nine}},
		{"start after end", Query{ResourceIDs: []int64{1}, Start: nine.Add(time.Hour), End: nine}},
		{"missing start", Query{ResourceIDs: []int64{1}, End: nine}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Check(context.Background(), tt.q)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCheckStoreFailureIsUnavailable(t *testing.T) {
	store := testsupport.OpenStore(t)
	svc := New(store, nil)
	_ = store.Close()

	_, err := svc.Check(context.Background(), Query{
		ResourceIDs: []int64{1},
		Start:       testsupport.At(t, "2025-06-01T09:00:00Z"),
		End:         testsupport.At(t, "2025-06-01T10:00:00Z"),
	})
	if !errors.Is(err, apperr.ErrServiceUnavailable) {
		t.Fatalf("expected service unavailable, got %v", err)
	}
}

func TestAvailabilityOrdersAndClips(t *testing.T) {
	store := testsupport.OpenStore(t)
	svc := New(store, nil)

	event := testsupport.MustEvent(t, store, models.Event{})
	chef := testsupport.MustResource(t, store, "Chef")
	testsupport.MustBook(t, store, chef.ID, event.ID, nil, testsupport.At(t, "2025-06-03T09:00:00Z"), testsupport.At(t, "2025-06-03T12:00:00Z"))
	testsupport.MustBook(t, store, chef.ID, event.ID, nil, testsupport.At(t, "2025-06-01T22:00:00Z"), testsupport.At(t, "2025-06-02T02:00:00Z"))
	testsupport.MustBook(t, store, chef.ID, event.ID, nil, testsupport.At(t, "2025-06-05T09:00:00Z"), testsupport.At(t, "2025-06-05T12:00:00Z"))

	got, err := svc.Availability(context.Background(), chef.ID,
		testsupport.At(t, "2025-06-02T00:00:00Z"), testsupport.At(t, "2025-06-04T00:00:00Z"))
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %#v", got)
	}
	if !got[0].StartTime.Before(got[1].StartTime) {
		t.Fatalf("entries must be ascending: %#v", got)
	}

	empty, err := svc.Availability(context.Background(), chef.ID,
		testsupport.At(t, "2025-07-01T00:00:00Z"), testsupport.At(t, "2025-07-02T00:00:00Z"))
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty availability, got %#v, %v", empty, err)
	}
}
