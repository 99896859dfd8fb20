// Package assign books resources onto a task's event window.
//
// The conflict check runs before the write and is advisory: two callers can
// both see a free window and both book it. Strict mode adds an overlap guard
// to the insert itself, which closes that gap for non-forced writes.
package assign

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"catering/internal/apperr"
	"catering/internal/conflict"
	"catering/internal/lifecycle"
	"catering/internal/models"
	"catering/internal/storage/sqlite"
)

// Checker answers conflict queries. Both *conflict.Service and
// *schedclient.Client satisfy it.
type Checker interface {
	Check(ctx context.Context, q conflict.Query) ([]models.Conflict, error)
}

// Options tune the orchestrator.
type Options struct {
	// Strict guards every non-forced insert with an in-statement overlap
	// check.
	Strict bool
}

// Request asks for resources to be booked on a task.
type Request struct {
	TaskID      int64
	ResourceIDs []int64
	Force       bool
	Actor       string
	Notes       string
}

// ResourceConflicts lists the bookings that kept one resource unassigned.
type ResourceConflicts struct {
	ResourceID int64             `json:"resourceId"`
	Conflicts  []models.Conflict `json:"conflicts"`
}

// Result reports the outcome per resource.
type Result struct {
	Assigned  []models.ScheduleEntry `json:"assigned"`
	Conflicts []ResourceConflicts    `json:"conflicts"`
	// Degraded is set when the conflict check could not run and the write
	// went ahead under force.
	Degraded bool `json:"degraded"`
	// Forced lists resources written over known conflicts.
	Forced []int64 `json:"forced,omitempty"`
}

// Complete reports whether every requested resource was assigned.
func (r Result) Complete() bool { return len(r.Conflicts) == 0 }

// Orchestrator applies the assignment policy.
type Orchestrator struct {
	store   *sqlite.Store
	checker Checker
	logger  *slog.Logger
	strict  bool
}

// New constructs an Orchestrator.
func New(store *sqlite.Store, checker Checker, logger *slog.Logger, opts Options) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{store: store, checker: checker, logger: logger, strict: opts.Strict}
}

// AssignResources books each requested resource for the window of the
// task's event.
//
// A resource without conflicts is booked. A conflicted resource is reported
// back unless Force is set, in which case it is booked and the override is
// logged. If the conflict check itself fails, nothing is written unless
// Force is set; a forced write without a check is flagged Degraded.
func (o *Orchestrator) AssignResources(ctx context.Context, req Request) (Result, error) {
	const op = "assign.AssignResources"
	ids := dedupe(req.ResourceIDs)
	if len(ids) == 0 {
		return Result{}, apperr.Validation(op, "resourceIds must not be empty")
	}

	_, event, err := loadMutable(ctx, o.store, op, req.TaskID)
	if err != nil {
		return Result{}, err
	}
	missing, err := o.store.MissingResources(ctx, ids)
	if err != nil {
		return Result{}, err
	}
	if len(missing) > 0 {
		return Result{}, apperr.NotFound(op, "unknown resources %v", missing)
	}

	start, end := event.Window()
	result := Result{Assigned: []models.ScheduleEntry{}, Conflicts: []ResourceConflicts{}}

	found, err := o.checker.Check(ctx, conflict.Query{ResourceIDs: ids, Start: start, End: end})
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrServiceUnavailable) && req.Force:
		result.Degraded = true
		o.logger.Warn("conflict check unavailable; writing without confirmation",
			slog.Int64("task_id", req.TaskID),
			slog.Any("resource_ids", ids),
			slog.String("actor", req.Actor),
			slog.Time("start", start),
			slog.Time("end", end),
			slog.Bool("force", true))
	case errors.Is(err, apperr.ErrServiceUnavailable):
		o.logger.Warn("conflict check unavailable; assignment aborted",
			slog.Int64("task_id", req.TaskID),
			slog.Any("resource_ids", ids),
			slog.Bool("force", false))
		return Result{}, err
	default:
		return Result{}, err
	}
	byResource := conflict.Group(found)

	err = o.store.InTx(ctx, func(tx *sqlite.Store) error {
		if _, _, err := loadMutable(ctx, tx, op, req.TaskID); err != nil {
			return err
		}
		for _, id := range ids {
			existing := byResource[id]
			if len(existing) > 0 && !req.Force {
				result.Conflicts = append(result.Conflicts, ResourceConflicts{ResourceID: id, Conflicts: existing})
				continue
			}

			entry := models.ScheduleEntry{
				ResourceID: id,
				EventID:    event.ID,
				TaskID:     &req.TaskID,
				StartTime:  start,
				EndTime:    end,
				Notes:      strings.TrimSpace(req.Notes),
			}
			var created models.ScheduleEntry
			var err error
			if o.strict && !req.Force {
				created, err = tx.CreateScheduleEntryGuarded(ctx, entry)
				if errors.Is(err, sqlite.ErrOverlap) {
					late, ferr := tx.FindOverlaps(ctx, []int64{id}, start, end, nil)
					if ferr != nil {
						return ferr
					}
					result.Conflicts = append(result.Conflicts, ResourceConflicts{ResourceID: id, Conflicts: late})
					continue
				}
			} else {
				created, err = tx.CreateScheduleEntry(ctx, entry)
			}
			if err != nil {
				return err
			}

			if len(existing) > 0 {
				result.Forced = append(result.Forced, id)
				o.logger.Warn("resource double-booked by force",
					slog.Int64("resource_id", id),
					slog.Any("conflicting_entries", entryIDs(existing)),
					slog.Int64("task_id", req.TaskID),
					slog.String("actor", req.Actor),
					slog.Time("start", start),
					slog.Time("end", end),
					slog.Bool("force", true))
			}
			result.Assigned = append(result.Assigned, created)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	o.logger.Info("resources assigned",
		slog.Int64("task_id", req.TaskID),
		slog.Int("assigned", len(result.Assigned)),
		slog.Int("conflicted", len(result.Conflicts)),
		slog.Bool("degraded", result.Degraded),
		slog.Bool("force", req.Force))
	return result, nil
}

// Unassign removes a resource's bookings for a task.
func (o *Orchestrator) Unassign(ctx context.Context, taskID, resourceID int64, actor string) error {
	const op = "assign.Unassign"
	err := o.store.InTx(ctx, func(tx *sqlite.Store) error {
		if _, _, err := loadMutable(ctx, tx, op, taskID); err != nil {
			return err
		}
		return tx.DeleteTaskAssignment(ctx, taskID, resourceID)
	})
	if err != nil {
		return err
	}
	o.logger.Info("resource unassigned",
		slog.Int64("task_id", taskID),
		slog.Int64("resource_id", resourceID),
		slog.String("actor", actor))
	return nil
}

func loadMutable(ctx context.Context, s *sqlite.Store, op string, taskID int64) (models.Task, models.Event, error) {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return models.Task{}, models.Event{}, err
	}
	event, err := s.GetEvent(ctx, task.EventID)
	if err != nil {
		return models.Task{}, models.Event{}, err
	}
	if err := lifecycle.EnsureMutable(op, event); err != nil {
		return models.Task{}, models.Event{}, err
	}
	return task, event, nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func entryIDs(conflicts []models.Conflict) []int64 {
	out := make([]int64, len(conflicts))
	for i, c := range conflicts {
		out[i] = c.ScheduleEntryID
	}
	return out
}
