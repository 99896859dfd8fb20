package models

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used for event and due dates.
const DateLayout = "2006-01-02"

// EventStatus is a stage of the event lifecycle.
type EventStatus string

const (
	EventInquiry     EventStatus = "inquiry"
	EventPlanning    EventStatus = "planning"
	EventPreparation EventStatus = "preparation"
	EventInProgress  EventStatus = "in_progress"
	EventCompleted   EventStatus = "completed"
	EventFollowUp    EventStatus = "follow_up"
)

// EventStatuses lists the lifecycle stages in canonical order.
var EventStatuses = []EventStatus{
	EventInquiry,
	EventPlanning,
	EventPreparation,
	EventInProgress,
	EventCompleted,
	EventFollowUp,
}

// IsValid reports whether s is one of the known lifecycle stages.
func (s EventStatus) IsValid() bool {
	for _, known := range EventStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// TaskStatus is the execution state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
)

// IsValid reports whether s is a supported task status.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted:
		return true
	}
	return false
}

// Event is a catered occasion for a client.
type Event struct {
	ID                int64       `json:"id"`
	ClientID          int64       `json:"client_id"`
	Name              string      `json:"name"`
	EventDate         time.Time   `json:"event_date"`
	StartTime         string      `json:"start_time,omitempty"`
	EndTime           string      `json:"end_time,omitempty"`
	Location          string      `json:"location"`
	AttendeeCount     int         `json:"attendee_count"`
	Notes             string      `json:"notes"`
	Status            EventStatus `json:"status"`
	IsArchived        bool        `json:"is_archived"`
	ArchivedAt        *time.Time  `json:"archived_at,omitempty"`
	ClonedFromEventID *int64      `json:"cloned_from_event_id,omitempty"`
	TemplateID        *int64      `json:"template_id,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// Window returns the half-open time range the event occupies. Without both
// clock times the whole event day is used; an end at or before the start
// rolls over to the following day.
func (e Event) Window() (time.Time, time.Time) {
	day := DateOnly(e.EventDate)
	start, okStart := parseClock(e.StartTime)
	end, okEnd := parseClock(e.EndTime)
	if !okStart || !okEnd {
		return day, day.Add(24 * time.Hour)
	}
	from := day.Add(start)
	to := day.Add(end)
	if !to.After(from) {
		to = to.Add(24 * time.Hour)
	}
	return from, to
}

// StatusChange is one append-only entry of an event's status history.
type StatusChange struct {
	ID         int64       `json:"id"`
	EventID    int64       `json:"event_id"`
	FromStatus EventStatus `json:"from_status"`
	ToStatus   EventStatus `json:"to_status"`
	ChangedBy  string      `json:"changed_by"`
	ChangedAt  time.Time   `json:"changed_at"`
	Notes      string      `json:"notes,omitempty"`
}

// Task is a unit of preparation work belonging to an event.
type Task struct {
	ID              int64      `json:"id"`
	EventID         int64      `json:"event_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Category        string     `json:"category"`
	Status          TaskStatus `json:"status"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	AssignedTo      *int64     `json:"assigned_to,omitempty"`
	DependsOnTaskID *int64     `json:"depends_on_task_id,omitempty"`
	IsOverdue       bool       `json:"is_overdue"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", value)
	}
	return t, nil
}

// ParseInstant accepts an RFC3339 instant or a YYYY-MM-DD day. dayOnly
// reports which form was given so callers can widen an end bound to the
// following midnight.
func ParseInstant(value string) (t time.Time, dayOnly bool, err error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false, fmt.Errorf("value is required")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), false, nil
	}
	t, err = ParseDate(value)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// ValidClock reports whether value is empty or a HH:MM clock time.
func ValidClock(value string) bool {
	if value == "" {
		return true
	}
	_, ok := parseClock(value)
	return ok
}

func parseClock(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, false
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, true
}
