// Package depgraph validates task dependencies.
//
// A task has at most one predecessor, so the dependency relation is a forest
// of simple chains and cycle detection is a walk up one chain.
package depgraph

import (
	"context"
	"errors"

	"catering/internal/apperr"
	"catering/internal/models"
)

// TaskLookup fetches tasks by id. *sqlite.Store satisfies it, including a
// transaction-bound store.
type TaskLookup interface {
	GetTask(ctx context.Context, id int64) (models.Task, error)
}

// ValidateDependency checks that task may depend on dependsOnID: the target
// exists, belongs to the same event, is not the task itself, and no chain
// above it leads back to the task. task.ID is zero for a task not yet stored.
func ValidateDependency(ctx context.Context, lookup TaskLookup, task models.Task, dependsOnID int64) error {
	const op = "depgraph.ValidateDependency"
	if task.ID != 0 && dependsOnID == task.ID {
		return apperr.New(apperr.KindDependencyCycle, op, "task %d cannot depend on itself", task.ID)
	}

	target, err := lookup.GetTask(ctx, dependsOnID)
	if err != nil {
		return err
	}
	if target.EventID != task.EventID {
		return apperr.Validation(op, "task %d belongs to another event", dependsOnID)
	}

	seen := map[int64]bool{target.ID: true}
	cur := target
	for cur.DependsOnTaskID != nil {
		next := *cur.DependsOnTaskID
		if task.ID != 0 && next == task.ID {
			return apperr.New(apperr.KindDependencyCycle, op, "depending on task %d would close a cycle through task %d", dependsOnID, task.ID)
		}
		if seen[next] {
			return apperr.New(apperr.KindDependencyCycle, op, "existing dependency loop through task %d", next)
		}
		seen[next] = true

		cur, err = lookup.GetTask(ctx, next)
		if errors.Is(err, apperr.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// CheckCompletable rejects completing a task whose predecessor is not
// completed.
func CheckCompletable(ctx context.Context, lookup TaskLookup, task models.Task) error {
	if task.DependsOnTaskID == nil {
		return nil
	}
	pred, err := lookup.GetTask(ctx, *task.DependsOnTaskID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if pred.Status != models.TaskCompleted {
		return apperr.New(apperr.KindDependencyNotSatisfied, "depgraph.CheckCompletable",
			"task %d waits on task %d (%s)", task.ID, pred.ID, pred.Status)
	}
	return nil
}

// Order returns keys with every predecessor ahead of its dependents,
// otherwise keeping the input order. parent reports a key's predecessor;
// predecessors not present in keys are ignored. A loop yields a
// DependencyCycle error.
func Order[K comparable](keys []K, parent func(K) (K, bool)) ([]K, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	present := make(map[K]bool, len(keys))
	for _, k := range keys {
		present[k] = true
	}

	state := make(map[K]int, len(keys))
	out := make([]K, 0, len(keys))
	for _, k := range keys {
		if state[k] == done {
			continue
		}
		// Walk up to the first placed or absent ancestor, then emit the
		// chain top-down.
		var chain []K
		cur := k
		for {
			switch state[cur] {
			case visiting:
				return nil, apperr.New(apperr.KindDependencyCycle, "depgraph.Order", "dependency loop at %v", cur)
			case done:
			default:
				state[cur] = visiting
				chain = append(chain, cur)
				if p, ok := parent(cur); ok && present[p] {
					cur = p
					continue
				}
			}
			break
		}
		for i := len(chain) - 1; i >= 0; i-- {
			state[chain[i]] = done
			out = append(out, chain[i])
		}
	}
	return out, nil
}
