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

const taskColumns = `id, event_id, title, description, category, status, due_date, assigned_to, depends_on_task_id,
        is_overdue, completed_at, created_at, updated_at`

// CreateTask inserts a new task for an event.
func (s *Store) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	if strings.TrimSpace(t.Title) == "" {
		return models.Task{}, apperr.Validation("store.CreateTask", "task title must not be empty")
	}
	if !t.Status.IsValid() {
		t.Status = models.TaskPending
	}

	res, err := s.q.ExecContext(ctx, `INSERT INTO tasks(event_id, title, description, category, status, due_date, assigned_to,
        depends_on_task_id, is_overdue, completed_at) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.EventID, strings.TrimSpace(t.Title), strings.TrimSpace(t.Description), strings.TrimSpace(t.Category), string(t.Status),
		nullDate(t.DueDate), nullInt(t.AssignedTo), nullInt(t.DependsOnTaskID), boolInt(t.IsOverdue), nullTime(t.CompletedAt))
	if err != nil {
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Task{}, fmt.Errorf("task id: %w", err)
	}
	return s.GetTask(ctx, id)
}

// GetTask retrieves a task by id.
func (s *Store) GetTask(ctx context.Context, id int64) (models.Task, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, apperr.NotFound("store.GetTask", "task %d not found", id)
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListTasksByEvent returns the tasks of an event in creation order.
func (s *Store) ListTasksByEvent(ctx context.Context, eventID int64) ([]models.Task, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE event_id = ? ORDER BY id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]models.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTask writes every mutable column of t.
func (s *Store) UpdateTask(ctx context.Context, t models.Task) (models.Task, error) {
	if strings.TrimSpace(t.Title) == "" {
		return models.Task{}, apperr.Validation("store.UpdateTask", "task title must not be empty")
	}
	res, err := s.q.ExecContext(ctx, `UPDATE tasks SET title = ?, description = ?, category = ?, status = ?, due_date = ?,
        assigned_to = ?, depends_on_task_id = ?, is_overdue = ?, completed_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		strings.TrimSpace(t.Title), strings.TrimSpace(t.Description), strings.TrimSpace(t.Category), string(t.Status),
		nullDate(t.DueDate), nullInt(t.AssignedTo), nullInt(t.DependsOnTaskID), boolInt(t.IsOverdue), nullTime(t.CompletedAt), t.ID)
	if err != nil {
		return models.Task{}, fmt.Errorf("update task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return models.Task{}, err
	}
	if affected == 0 {
		return models.Task{}, apperr.NotFound("store.UpdateTask", "task %d not found", t.ID)
	}
	return s.GetTask(ctx, t.ID)
}

// DeleteTask removes a task by id.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.NotFound("store.DeleteTask", "task %d not found", id)
	}
	return nil
}

// ClearDependents nulls depends_on_task_id on every task pointing at id and
// returns how many rows changed.
func (s *Store) ClearDependents(ctx context.Context, id int64) (int64, error) {
	res, err := s.q.ExecContext(ctx, `UPDATE tasks SET depends_on_task_id = NULL, updated_at = CURRENT_TIMESTAMP WHERE depends_on_task_id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("clear dependents: %w", err)
	}
	return res.RowsAffected()
}

// MarkOverdue flags incomplete tasks of live events due before today and
// clears the flag everywhere else. It returns the number of rows flagged and
// cleared.
func (s *Store) MarkOverdue(ctx context.Context, today time.Time) (int64, int64, error) {
	day := formatDate(today)
	res, err := s.q.ExecContext(ctx, `UPDATE tasks SET is_overdue = 1
        WHERE is_overdue = 0 AND status != 'completed' AND due_date IS NOT NULL AND due_date < ?
          AND event_id IN (SELECT id FROM events WHERE is_archived = 0)`, day)
	if err != nil {
		return 0, 0, fmt.Errorf("flag overdue: %w", err)
	}
	flagged, err := res.RowsAffected()
	if err != nil {
		return 0, 0, err
	}

	res, err = s.q.ExecContext(ctx, `UPDATE tasks SET is_overdue = 0
        WHERE is_overdue = 1 AND (status = 'completed' OR due_date IS NULL OR due_date >= ?)
          AND event_id IN (SELECT id FROM events WHERE is_archived = 0)`, day)
	if err != nil {
		return 0, 0, fmt.Errorf("clear overdue: %w", err)
	}
	cleared, err := res.RowsAffected()
	if err != nil {
		return 0, 0, err
	}
	return flagged, cleared, nil
}

func scanTask(sc scanner) (models.Task, error) {
	var t models.Task
	var status string
	var dueDate, completedAt sql.NullString
	var assignedTo, dependsOn sql.NullInt64
	var overdue int
	if err := sc.Scan(&t.ID, &t.EventID, &t.Title, &t.Description, &t.Category, &status, &dueDate, &assignedTo, &dependsOn,
		&overdue, &completedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return models.Task{}, err
	}
	var err error
	if t.DueDate, err = parseNullDate(dueDate); err != nil {
		return models.Task{}, err
	}
	if t.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return models.Task{}, err
	}
	t.Status = models.TaskStatus(status)
	t.AssignedTo = intPtr(assignedTo)
	t.DependsOnTaskID = intPtr(dependsOn)
	t.IsOverdue = overdue == 1
	return t, nil
}
