// Package lifecycle moves events through their status stages and enforces
// the archive freeze.
package lifecycle

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"catering/internal/apperr"
	"catering/internal/models"
	"catering/internal/storage/sqlite"
)

// CanTransition reports whether to is the single next stage after from.
func CanTransition(from, to models.EventStatus) bool {
	for i, s := range models.EventStatuses {
		if s == from {
			return i+1 < len(models.EventStatuses) && models.EventStatuses[i+1] == to
		}
	}
	return false
}

// EnsureMutable rejects writes touching an archived event.
func EnsureMutable(op string, e models.Event) error {
	if e.IsArchived {
		return apperr.New(apperr.KindArchivedEvent, op, "event %d is archived", e.ID)
	}
	return nil
}

// NewEvent holds the fields a caller supplies when creating an event.
type NewEvent struct {
	ClientID      int64
	Name          string
	EventDate     time.Time
	StartTime     string
	EndTime       string
	Location      string
	AttendeeCount int
	Notes         string
}

// EventChanges is a partial edit; nil fields are left untouched.
type EventChanges struct {
	ClientID      *int64
	Name          *string
	EventDate     *time.Time
	StartTime     *string
	EndTime       *string
	Location      *string
	AttendeeCount *int
	Notes         *string
	Status        *models.EventStatus
}

// Machine applies lifecycle operations against the store.
type Machine struct {
	store  *sqlite.Store
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Machine.
func New(store *sqlite.Store, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{store: store, logger: logger, now: time.Now}
}

// Create inserts an event at inquiry and opens its status history.
func (m *Machine) Create(ctx context.Context, in NewEvent, actor string) (models.Event, error) {
	const op = "lifecycle.Create"
	e := models.Event{
		ClientID:      in.ClientID,
		Name:          in.Name,
		EventDate:     in.EventDate,
		StartTime:     strings.TrimSpace(in.StartTime),
		EndTime:       strings.TrimSpace(in.EndTime),
		Location:      in.Location,
		AttendeeCount: in.AttendeeCount,
		Notes:         in.Notes,
		Status:        models.EventInquiry,
	}
	if err := validateFields(op, e); err != nil {
		return models.Event{}, err
	}
	e.EventDate = models.DateOnly(e.EventDate)

	var created models.Event
	err := m.store.InTx(ctx, func(tx *sqlite.Store) error {
		var err error
		if created, err = tx.CreateEvent(ctx, e); err != nil {
			return err
		}
		_, err = tx.AppendStatusChange(ctx, models.StatusChange{
			EventID:   created.ID,
			ToStatus:  models.EventInquiry,
			ChangedBy: actor,
			ChangedAt: m.now(),
		})
		return err
	})
	if err != nil {
		return models.Event{}, err
	}
	m.logger.Info("event created", slog.Int64("event_id", created.ID), slog.String("actor", actor))
	return created, nil
}

// Transition advances an event exactly one stage and logs the move.
func (m *Machine) Transition(ctx context.Context, eventID int64, to models.EventStatus, actor, notes string) (models.Event, error) {
	const op = "lifecycle.Transition"
	if !to.IsValid() {
		return models.Event{}, apperr.Validation(op, "unknown status %q", to)
	}

	var updated models.Event
	err := m.store.InTx(ctx, func(tx *sqlite.Store) error {
		e, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if err := EnsureMutable(op, e); err != nil {
			return err
		}
		if !CanTransition(e.Status, to) {
			return apperr.New(apperr.KindInvalidTransition, op, "cannot move event %d from %s to %s", e.ID, e.Status, to)
		}
		from := e.Status
		e.Status = to
		if updated, err = tx.UpdateEvent(ctx, e); err != nil {
			return err
		}
		_, err = tx.AppendStatusChange(ctx, models.StatusChange{
			EventID:    e.ID,
			FromStatus: from,
			ToStatus:   to,
			ChangedBy:  actor,
			ChangedAt:  m.now(),
			Notes:      strings.TrimSpace(notes),
		})
		return err
	})
	if err != nil {
		return models.Event{}, err
	}
	m.logger.Info("event status changed",
		slog.Int64("event_id", eventID),
		slog.String("to", string(to)),
		slog.String("actor", actor))
	return updated, nil
}

// Archive freezes a completed event.
func (m *Machine) Archive(ctx context.Context, eventID int64, actor string) (models.Event, error) {
	const op = "lifecycle.Archive"
	var archived models.Event
	err := m.store.InTx(ctx, func(tx *sqlite.Store) error {
		e, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if err := EnsureMutable(op, e); err != nil {
			return err
		}
		if e.Status != models.EventCompleted {
			return apperr.New(apperr.KindInvalidTransition, op, "event %d is %s; only completed events can be archived", e.ID, e.Status)
		}
		now := m.now().UTC()
		e.IsArchived = true
		e.ArchivedAt = &now
		archived, err = tx.UpdateEvent(ctx, e)
		return err
	})
	if err != nil {
		return models.Event{}, err
	}
	m.logger.Info("event archived", slog.Int64("event_id", eventID), slog.String("actor", actor))
	return archived, nil
}

// Update edits descriptive fields. Status only changes through Transition.
func (m *Machine) Update(ctx context.Context, eventID int64, ch EventChanges) (models.Event, error) {
	const op = "lifecycle.Update"
	var updated models.Event
	err := m.store.InTx(ctx, func(tx *sqlite.Store) error {
		e, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if err := EnsureMutable(op, e); err != nil {
			return err
		}
		if ch.Status != nil && *ch.Status != e.Status {
			return apperr.Validation(op, "status changes go through the status transition")
		}
		apply(&e, ch)
		if err := validateFields(op, e); err != nil {
			return err
		}
		e.EventDate = models.DateOnly(e.EventDate)
		updated, err = tx.UpdateEvent(ctx, e)
		return err
	})
	if err != nil {
		return models.Event{}, err
	}
	return updated, nil
}

// Get returns one event.
func (m *Machine) Get(ctx context.Context, eventID int64) (models.Event, error) {
	return m.store.GetEvent(ctx, eventID)
}

// History lists an event's status changes, oldest first.
func (m *Machine) History(ctx context.Context, eventID int64) ([]models.StatusChange, error) {
	if _, err := m.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return m.store.ListStatusHistory(ctx, eventID)
}

func apply(e *models.Event, ch EventChanges) {
	if ch.ClientID != nil {
		e.ClientID = *ch.ClientID
	}
	if ch.Name != nil {
		e.Name = *ch.Name
	}
	if ch.EventDate != nil {
		e.EventDate = *ch.EventDate
	}
	if ch.StartTime != nil {
		e.StartTime = strings.TrimSpace(*ch.StartTime)
	}
	if ch.EndTime != nil {
		e.EndTime = strings.TrimSpace(*ch.EndTime)
	}
	if ch.Location != nil {
		e.Location = *ch.Location
	}
	if ch.AttendeeCount != nil {
		e.AttendeeCount = *ch.AttendeeCount
	}
	if ch.Notes != nil {
		e.Notes = *ch.Notes
	}
}

func validateFields(op string, e models.Event) error {
	if strings.TrimSpace(e.Name) == "" {
		return apperr.Validation(op, "name must not be empty")
	}
	if e.EventDate.IsZero() {
		return apperr.Validation(op, "event_date is required")
	}
	if !models.ValidClock(e.StartTime) || !models.ValidClock(e.EndTime) {
		return apperr.Validation(op, "start_time and end_time must be HH:MM")
	}
	if e.AttendeeCount < 0 {
		return apperr.Validation(op, "attendee_count must not be negative")
	}
	return nil
}
