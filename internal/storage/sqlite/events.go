package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"catering/internal/apperr"
	"catering/internal/models"
)

const eventColumns = `id, client_id, name, event_date, start_time, end_time, location, attendee_count, notes,
        status, is_archived, archived_at, cloned_from_event_id, template_id, created_at, updated_at`

// CreateEvent inserts an event row as given, including status and lineage.
func (s *Store) CreateEvent(ctx context.Context, e models.Event) (models.Event, error) {
	if strings.TrimSpace(e.Name) == "" {
		return models.Event{}, apperr.Validation("store.CreateEvent", "event name must not be empty")
	}
	if e.EventDate.IsZero() {
		return models.Event{}, apperr.Validation("store.CreateEvent", "event date is required")
	}
	if e.Status == "" {
		e.Status = models.EventInquiry
	}

	res, err := s.q.ExecContext(ctx, `INSERT INTO events(client_id, name, event_date, start_time, end_time, location, attendee_count, notes,
        status, is_archived, archived_at, cloned_from_event_id, template_id) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ClientID, strings.TrimSpace(e.Name), formatDate(e.EventDate), e.StartTime, e.EndTime,
		strings.TrimSpace(e.Location), e.AttendeeCount, e.Notes,
		string(e.Status), boolInt(e.IsArchived), nullTime(e.ArchivedAt), nullInt(e.ClonedFromEventID), nullInt(e.TemplateID))
	if err != nil {
		return models.Event{}, fmt.Errorf("insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Event{}, fmt.Errorf("event id: %w", err)
	}
	return s.GetEvent(ctx, id)
}

// GetEvent fetches a single event by id.
func (s *Store) GetEvent(ctx context.Context, id int64) (models.Event, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Event{}, apperr.NotFound("store.GetEvent", "event %d not found", id)
	}
	if err != nil {
		return models.Event{}, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// UpdateEvent writes every mutable column of e.
func (s *Store) UpdateEvent(ctx context.Context, e models.Event) (models.Event, error) {
	res, err := s.q.ExecContext(ctx, `UPDATE events SET client_id = ?, name = ?, event_date = ?, start_time = ?, end_time = ?,
        location = ?, attendee_count = ?, notes = ?, status = ?, is_archived = ?, archived_at = ?, template_id = ?,
        updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		e.ClientID, strings.TrimSpace(e.Name), formatDate(e.EventDate), e.StartTime, e.EndTime,
		strings.TrimSpace(e.Location), e.AttendeeCount, e.Notes, string(e.Status), boolInt(e.IsArchived),
		nullTime(e.ArchivedAt), nullInt(e.TemplateID), e.ID)
	if err != nil {
		return models.Event{}, fmt.Errorf("update event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return models.Event{}, err
	}
	if affected == 0 {
		return models.Event{}, apperr.NotFound("store.UpdateEvent", "event %d not found", e.ID)
	}
	return s.GetEvent(ctx, e.ID)
}

// AppendStatusChange records one lifecycle transition.
func (s *Store) AppendStatusChange(ctx context.Context, c models.StatusChange) (models.StatusChange, error) {
	if c.ChangedAt.IsZero() {
		c.ChangedAt = time.Now()
	}
	res, err := s.q.ExecContext(ctx, `INSERT INTO event_status_history(event_id, from_status, to_status, changed_by, changed_at, notes)
        VALUES(?, ?, ?, ?, ?, ?)`,
		c.EventID, string(c.FromStatus), string(c.ToStatus), c.ChangedBy, formatTime(c.ChangedAt), c.Notes)
	if err != nil {
		return models.StatusChange{}, fmt.Errorf("insert status change: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return models.StatusChange{}, fmt.Errorf("status change id: %w", err)
	}
	c.ChangedAt = c.ChangedAt.UTC().Truncate(time.Microsecond)
	return c, nil
}

// ListStatusHistory returns the status history of an event, oldest first.
func (s *Store) ListStatusHistory(ctx context.Context, eventID int64) ([]models.StatusChange, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, event_id, from_status, to_status, changed_by, changed_at, notes
        FROM event_status_history WHERE event_id = ? ORDER BY id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	defer rows.Close()

	history := make([]models.StatusChange, 0)
	for rows.Next() {
		var c models.StatusChange
		var from, to, changedAt string
		if err := rows.Scan(&c.ID, &c.EventID, &from, &to, &c.ChangedBy, &changedAt, &c.Notes); err != nil {
			return nil, fmt.Errorf("scan status change: %w", err)
		}
		c.FromStatus = models.EventStatus(from)
		c.ToStatus = models.EventStatus(to)
		if c.ChangedAt, err = parseTime(changedAt); err != nil {
			return nil, err
		}
		history = append(history, c)
	}
	return history, rows.Err()
}

func scanEvent(sc scanner) (models.Event, error) {
	var e models.Event
	var eventDate, status string
	var archived int
	var archivedAt sql.NullString
	var clonedFrom, templateID sql.NullInt64
	if err := sc.Scan(&e.ID, &e.ClientID, &e.Name, &eventDate, &e.StartTime, &e.EndTime, &e.Location, &e.AttendeeCount, &e.Notes,
		&status, &archived, &archivedAt, &clonedFrom, &templateID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return models.Event{}, err
	}
	var err error
	if e.EventDate, err = parseDate(eventDate); err != nil {
		return models.Event{}, err
	}
	if e.ArchivedAt, err = parseNullTime(archivedAt); err != nil {
		return models.Event{}, err
	}
	e.Status = models.EventStatus(status)
	e.IsArchived = archived == 1
	e.ClonedFromEventID = intPtr(clonedFrom)
	e.TemplateID = intPtr(templateID)
	return e, nil
}
