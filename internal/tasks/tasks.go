// Package tasks is the write path for an event's tasks. Every operation
// checks the archive freeze and the dependency rules inside one
// transaction.
package tasks

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"catering/internal/apperr"
	"catering/internal/depgraph"
	"catering/internal/lifecycle"
	"catering/internal/models"
	"catering/internal/storage/sqlite"
)

// NewTask describes a task to create.
type NewTask struct {
	Title           string
	Description     string
	Category        string
	DueDate         *time.Time
	AssignedTo      *int64
	DependsOnTaskID *int64
}

// Changes is a partial task edit. Nil pointers leave a field untouched; the
// Clear flags null the matching field.
type Changes struct {
	Title           *string
	Description     *string
	Category        *string
	DueDate         *time.Time
	ClearDueDate    bool
	AssignedTo      *int64
	ClearAssignee   bool
	DependsOnTaskID *int64
	ClearDependency bool
}

// Service applies task writes.
type Service struct {
	store  *sqlite.Store
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Service.
func New(store *sqlite.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// Create adds a pending task to a mutable event.
func (s *Service) Create(ctx context.Context, eventID int64, in NewTask) (models.Task, error) {
	const op = "tasks.Create"
	if strings.TrimSpace(in.Title) == "" {
		return models.Task{}, apperr.Validation(op, "title must not be empty")
	}

	var created models.Task
	err := s.store.InTx(ctx, func(tx *sqlite.Store) error {
		if _, err := mutableEvent(ctx, tx, op, eventID); err != nil {
			return err
		}
		task := models.Task{
			EventID:         eventID,
			Title:           in.Title,
			Description:     in.Description,
			Category:        in.Category,
			Status:          models.TaskPending,
			DueDate:         dateOnly(in.DueDate),
			AssignedTo:      in.AssignedTo,
			DependsOnTaskID: in.DependsOnTaskID,
		}
		if task.DependsOnTaskID != nil {
			if err := depgraph.ValidateDependency(ctx, tx, task, *task.DependsOnTaskID); err != nil {
				return err
			}
		}
		var err error
		created, err = tx.CreateTask(ctx, task)
		return err
	})
	if err != nil {
		return models.Task{}, err
	}
	s.logger.Debug("task created", slog.Int64("event_id", eventID), slog.Int64("task_id", created.ID))
	return created, nil
}

// Update edits a task's descriptive fields and its predecessor.
func (s *Service) Update(ctx context.Context, taskID int64, ch Changes) (models.Task, error) {
	const op = "tasks.Update"
	var updated models.Task
	err := s.store.InTx(ctx, func(tx *sqlite.Store) error {
		task, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if _, err := mutableEvent(ctx, tx, op, task.EventID); err != nil {
			return err
		}

		if ch.Title != nil {
			if strings.TrimSpace(*ch.Title) == "" {
				return apperr.Validation(op, "title must not be empty")
			}
			task.Title = *ch.Title
		}
		if ch.Description != nil {
			task.Description = *ch.Description
		}
		if ch.Category != nil {
			task.Category = *ch.Category
		}
		switch {
		case ch.ClearDueDate:
			task.DueDate = nil
		case ch.DueDate != nil:
			task.DueDate = dateOnly(ch.DueDate)
		}
		switch {
		case ch.ClearAssignee:
			task.AssignedTo = nil
		case ch.AssignedTo != nil:
			task.AssignedTo = ch.AssignedTo
		}
		switch {
		case ch.ClearDependency:
			task.DependsOnTaskID = nil
		case ch.DependsOnTaskID != nil:
			if err := depgraph.ValidateDependency(ctx, tx, task, *ch.DependsOnTaskID); err != nil {
				return err
			}
			task.DependsOnTaskID = ch.DependsOnTaskID
		}

		updated, err = tx.UpdateTask(ctx, task)
		return err
	})
	if err != nil {
		return models.Task{}, err
	}
	return updated, nil
}

// SetStatus moves a task to status. Completing requires a completed
// predecessor and stamps completedAt; leaving completed clears it.
func (s *Service) SetStatus(ctx context.Context, taskID int64, status models.TaskStatus) (models.Task, error) {
	const op = "tasks.SetStatus"
	if !status.IsValid() {
		return models.Task{}, apperr.Validation(op, "unknown task status %q", status)
	}

	var updated models.Task
	err := s.store.InTx(ctx, func(tx *sqlite.Store) error {
		task, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if _, err := mutableEvent(ctx, tx, op, task.EventID); err != nil {
			return err
		}
		if status == task.Status {
			updated = task
			return nil
		}

		if status == models.TaskCompleted {
			if err := depgraph.CheckCompletable(ctx, tx, task); err != nil {
				return err
			}
			now := s.now().UTC()
			task.CompletedAt = &now
			task.IsOverdue = false
		} else {
			task.CompletedAt = nil
		}
		task.Status = status

		updated, err = tx.UpdateTask(ctx, task)
		return err
	})
	if err != nil {
		return models.Task{}, err
	}
	s.logger.Info("task status changed", slog.Int64("task_id", taskID), slog.String("status", string(status)))
	return updated, nil
}

// Delete removes a task and its bookings. Tasks that depended on it lose
// the dependency instead of being deleted.
func (s *Service) Delete(ctx context.Context, taskID int64) error {
	const op = "tasks.Delete"
	var cleared int64
	err := s.store.InTx(ctx, func(tx *sqlite.Store) error {
		task, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if _, err := mutableEvent(ctx, tx, op, task.EventID); err != nil {
			return err
		}
		if err := tx.DeleteScheduleEntriesForTask(ctx, taskID); err != nil {
			return err
		}
		if cleared, err = tx.ClearDependents(ctx, taskID); err != nil {
			return err
		}
		return tx.DeleteTask(ctx, taskID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("task deleted", slog.Int64("task_id", taskID), slog.Int64("dependents_cleared", cleared))
	return nil
}

// ListByEvent returns an event's tasks in creation order.
func (s *Service) ListByEvent(ctx context.Context, eventID int64) ([]models.Task, error) {
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.store.ListTasksByEvent(ctx, eventID)
}

func mutableEvent(ctx context.Context, tx *sqlite.Store, op string, eventID int64) (models.Event, error) {
	e, err := tx.GetEvent(ctx, eventID)
	if err != nil {
		return models.Event{}, err
	}
	return e, lifecycle.EnsureMutable(op, e)
}

func dateOnly(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := models.DateOnly(*t)
	return &d
}
