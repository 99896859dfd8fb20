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

// ErrOverlap is returned by CreateScheduleEntryGuarded when the resource
// already holds an overlapping entry.
var ErrOverlap = errors.New("schedule entry overlaps an existing booking")

const conflictQuery = `SELECT se.id, se.resource_id, r.name, se.event_id, e.name, se.task_id, t.title, se.start_time, se.end_time
        FROM schedule_entries se
        JOIN resources r ON r.id = se.resource_id
        JOIN events e ON e.id = se.event_id
        LEFT JOIN tasks t ON t.id = se.task_id`

// FindOverlaps returns every entry of the given resources whose window
// overlaps [start, end), ordered by resource id then start time.
func (s *Store) FindOverlaps(ctx context.Context, resourceIDs []int64, start, end time.Time, excludeEntryID *int64) ([]models.Conflict, error) {
	if len(resourceIDs) == 0 {
		return []models.Conflict{}, nil
	}

	args := make([]any, 0, len(resourceIDs)+3)
	for _, id := range resourceIDs {
		args = append(args, id)
	}
	clauses := []string{
		`se.resource_id IN (` + placeholders(len(resourceIDs)) + `)`,
		`se.start_time < ?`,
		`se.end_time > ?`,
	}
	args = append(args, formatTime(end), formatTime(start))
	if excludeEntryID != nil {
		clauses = append(clauses, `se.id != ?`)
		args = append(args, *excludeEntryID)
	}

	query := conflictQuery + ` WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY se.resource_id, se.start_time, se.id`
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find overlaps: %w", err)
	}
	defer rows.Close()

	conflicts := make([]models.Conflict, 0)
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conflict: %w", err)
		}
		conflicts = append(conflicts, c)
	}
	return conflicts, rows.Err()
}

// ListAvailability returns the entries of a resource intersecting
// [start, end) ordered by start time.
func (s *Store) ListAvailability(ctx context.Context, resourceID int64, start, end time.Time) ([]models.AvailabilityEntry, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT se.id, se.event_id, e.name, se.start_time, se.end_time, t.title
        FROM schedule_entries se
        JOIN events e ON e.id = se.event_id
        LEFT JOIN tasks t ON t.id = se.task_id
        WHERE se.resource_id = ? AND se.start_time < ? AND se.end_time > ?
        ORDER BY se.start_time, se.id`, resourceID, formatTime(end), formatTime(start))
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	defer rows.Close()

	entries := make([]models.AvailabilityEntry, 0)
	for rows.Next() {
		var a models.AvailabilityEntry
		var startRaw, endRaw string
		var title sql.NullString
		if err := rows.Scan(&a.ScheduleEntryID, &a.EventID, &a.EventName, &startRaw, &endRaw, &title); err != nil {
			return nil, fmt.Errorf("scan availability: %w", err)
		}
		if a.StartTime, err = parseTime(startRaw); err != nil {
			return nil, err
		}
		if a.EndTime, err = parseTime(endRaw); err != nil {
			return nil, err
		}
		if title.Valid {
			v := title.String
			a.TaskTitle = &v
		}
		entries = append(entries, a)
	}
	return entries, rows.Err()
}

// CreateScheduleEntry commits a time block for a resource. It does not look
// at existing bookings.
func (s *Store) CreateScheduleEntry(ctx context.Context, e models.ScheduleEntry) (models.ScheduleEntry, error) {
	if err := validateEntry(e); err != nil {
		return models.ScheduleEntry{}, err
	}
	res, err := s.q.ExecContext(ctx, `INSERT INTO schedule_entries(resource_id, event_id, task_id, start_time, end_time, notes) VALUES(?, ?, ?, ?, ?, ?)`,
		e.ResourceID, e.EventID, nullInt(e.TaskID), formatTime(e.StartTime), formatTime(e.EndTime), strings.TrimSpace(e.Notes))
	if err != nil {
		return models.ScheduleEntry{}, fmt.Errorf("insert schedule entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.ScheduleEntry{}, fmt.Errorf("schedule entry id: %w", err)
	}
	return s.GetScheduleEntry(ctx, id)
}

// CreateScheduleEntryGuarded inserts the entry only when the resource has no
// overlapping booking, checked in the same statement. It returns ErrOverlap
// otherwise.
func (s *Store) CreateScheduleEntryGuarded(ctx context.Context, e models.ScheduleEntry) (models.ScheduleEntry, error) {
	if err := validateEntry(e); err != nil {
		return models.ScheduleEntry{}, err
	}
	start, end := formatTime(e.StartTime), formatTime(e.EndTime)
	res, err := s.q.ExecContext(ctx, `INSERT INTO schedule_entries(resource_id, event_id, task_id, start_time, end_time, notes)
        SELECT ?, ?, ?, ?, ?, ?
        WHERE NOT EXISTS (
            SELECT 1 FROM schedule_entries WHERE resource_id = ? AND start_time < ? AND end_time > ?
        )`,
		e.ResourceID, e.EventID, nullInt(e.TaskID), start, end, strings.TrimSpace(e.Notes),
		e.ResourceID, end, start)
	if err != nil {
		return models.ScheduleEntry{}, fmt.Errorf("insert schedule entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return models.ScheduleEntry{}, err
	}
	if affected == 0 {
		return models.ScheduleEntry{}, ErrOverlap
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.ScheduleEntry{}, fmt.Errorf("schedule entry id: %w", err)
	}
	return s.GetScheduleEntry(ctx, id)
}

// GetScheduleEntry fetches a single entry by id.
func (s *Store) GetScheduleEntry(ctx context.Context, id int64) (models.ScheduleEntry, error) {
	row := s.q.QueryRowContext(ctx, `SELECT id, resource_id, event_id, task_id, start_time, end_time, notes, created_at
        FROM schedule_entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ScheduleEntry{}, apperr.NotFound("store.GetScheduleEntry", "schedule entry %d not found", id)
	}
	if err != nil {
		return models.ScheduleEntry{}, fmt.Errorf("get schedule entry: %w", err)
	}
	return e, nil
}

// ListScheduleEntriesForTask returns the entries booked for a task.
func (s *Store) ListScheduleEntriesForTask(ctx context.Context, taskID int64) ([]models.ScheduleEntry, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, resource_id, event_id, task_id, start_time, end_time, notes, created_at
        FROM schedule_entries WHERE task_id = ? ORDER BY resource_id, start_time, id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list schedule entries: %w", err)
	}
	defer rows.Close()

	entries := make([]models.ScheduleEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountScheduleEntries returns how many entries a resource holds.
func (s *Store) CountScheduleEntries(ctx context.Context, resourceID int64) (int, error) {
	var n int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM schedule_entries WHERE resource_id = ?`, resourceID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count schedule entries: %w", err)
	}
	return n, nil
}

// DeleteTaskAssignment removes the entries binding a resource to a task.
func (s *Store) DeleteTaskAssignment(ctx context.Context, taskID, resourceID int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM schedule_entries WHERE task_id = ? AND resource_id = ?`, taskID, resourceID)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.NotFound("store.DeleteTaskAssignment", "resource %d is not assigned to task %d", resourceID, taskID)
	}
	return nil
}

// DeleteScheduleEntriesForTask removes every entry booked for a task.
func (s *Store) DeleteScheduleEntriesForTask(ctx context.Context, taskID int64) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM schedule_entries WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("delete schedule entries: %w", err)
	}
	return nil
}

func validateEntry(e models.ScheduleEntry) error {
	if !e.StartTime.Before(e.EndTime) {
		return apperr.Validation("store.CreateScheduleEntry", "start time must be before end time")
	}
	return nil
}

func scanEntry(sc scanner) (models.ScheduleEntry, error) {
	var e models.ScheduleEntry
	var taskID sql.NullInt64
	var startRaw, endRaw string
	if err := sc.Scan(&e.ID, &e.ResourceID, &e.EventID, &taskID, &startRaw, &endRaw, &e.Notes, &e.CreatedAt); err != nil {
		return models.ScheduleEntry{}, err
	}
	var err error
	if e.StartTime, err = parseTime(startRaw); err != nil {
		return models.ScheduleEntry{}, err
	}
	if e.EndTime, err = parseTime(endRaw); err != nil {
		return models.ScheduleEntry{}, err
	}
	e.TaskID = intPtr(taskID)
	return e, nil
}

func scanConflict(sc scanner) (models.Conflict, error) {
	var c models.Conflict
	var taskID sql.NullInt64
	var title sql.NullString
	var startRaw, endRaw string
	if err := sc.Scan(&c.ScheduleEntryID, &c.ResourceID, &c.ResourceName, &c.EventID, &c.EventName, &taskID, &title, &startRaw, &endRaw); err != nil {
		return models.Conflict{}, err
	}
	var err error
	if c.ExistingStartTime, err = parseTime(startRaw); err != nil {
		return models.Conflict{}, err
	}
	if c.ExistingEndTime, err = parseTime(endRaw); err != nil {
		return models.Conflict{}, err
	}
	c.TaskID = intPtr(taskID)
	if title.Valid {
		v := title.String
		c.TaskTitle = &v
	}
	return c, nil
}
