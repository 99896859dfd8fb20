package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"catering/internal/apperr"
	"catering/internal/models"
)

const resourceColumns = `id, name, category, is_available, notes, created_at`

// CreateResource persists a bookable resource.
func (s *Store) CreateResource(ctx context.Context, r models.Resource) (models.Resource, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return models.Resource{}, apperr.Validation("store.CreateResource", "resource name must not be empty")
	}
	if !r.Category.IsValid() {
		return models.Resource{}, apperr.Validation("store.CreateResource", "unknown resource category %q", r.Category)
	}

	res, err := s.q.ExecContext(ctx, `INSERT INTO resources(name, category, is_available, notes) VALUES(?, ?, ?, ?)`,
		name, string(r.Category), boolInt(r.IsAvailable), strings.TrimSpace(r.Notes))
	if err != nil {
		return models.Resource{}, fmt.Errorf("insert resource: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Resource{}, fmt.Errorf("resource id: %w", err)
	}
	return s.GetResource(ctx, id)
}

// GetResource fetches a single resource by id.
func (s *Store) GetResource(ctx context.Context, id int64) (models.Resource, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = ?`, id)
	r, err := scanResource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Resource{}, apperr.NotFound("store.GetResource", "resource %d not found", id)
	}
	if err != nil {
		return models.Resource{}, fmt.Errorf("get resource: %w", err)
	}
	return r, nil
}

// ListResources returns all resources ordered by id.
func (s *Store) ListResources(ctx context.Context) ([]models.Resource, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+resourceColumns+` FROM resources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	resources := make([]models.Resource, 0)
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		resources = append(resources, r)
	}
	return resources, rows.Err()
}

// MissingResources returns the ids in ids that have no resource row.
func (s *Store) MissingResources(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.q.QueryContext(ctx, `SELECT id FROM resources WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("lookup resources: %w", err)
	}
	defer rows.Close()

	found := make(map[int64]struct{}, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan resource id: %w", err)
		}
		found[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []int64
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func scanResource(sc scanner) (models.Resource, error) {
	var r models.Resource
	var category string
	var available int
	if err := sc.Scan(&r.ID, &r.Name, &category, &available, &r.Notes, &r.CreatedAt); err != nil {
		return models.Resource{}, err
	}
	r.Category = models.ResourceCategory(category)
	r.IsAvailable = available == 1
	return r, nil
}
