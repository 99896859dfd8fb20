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

// CreateTemplate persists a template and its items in one transaction.
func (s *Store) CreateTemplate(ctx context.Context, tpl models.TaskTemplate) (models.TaskTemplate, error) {
	name := strings.TrimSpace(tpl.Name)
	if name == "" {
		return models.TaskTemplate{}, apperr.Validation("store.CreateTemplate", "template name must not be empty")
	}

	var id int64
	err := s.InTx(ctx, func(tx *Store) error {
		res, err := tx.q.ExecContext(ctx, `INSERT INTO task_templates(name, description) VALUES(?, ?)`, name, strings.TrimSpace(tpl.Description))
		if err != nil {
			return fmt.Errorf("insert template: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("template id: %w", err)
		}
		for _, item := range tpl.Items {
			if strings.TrimSpace(item.Title) == "" {
				return apperr.Validation("store.CreateTemplate", "template item %d has an empty title", item.SortOrder)
			}
			var dependsOn any
			if item.DependsOnIndex != nil {
				dependsOn = *item.DependsOnIndex
			}
			if _, err := tx.q.ExecContext(ctx, `INSERT INTO task_template_items(template_id, title, description, category, days_offset,
                depends_on_index, sort_order) VALUES(?, ?, ?, ?, ?, ?, ?)`,
				id, strings.TrimSpace(item.Title), strings.TrimSpace(item.Description), strings.TrimSpace(item.Category),
				item.DaysOffset, dependsOn, item.SortOrder); err != nil {
				return fmt.Errorf("insert template item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return models.TaskTemplate{}, err
	}
	return s.GetTemplate(ctx, id)
}

// GetTemplate fetches a template with its items ordered by sort order.
func (s *Store) GetTemplate(ctx context.Context, id int64) (models.TaskTemplate, error) {
	var tpl models.TaskTemplate
	err := s.q.QueryRowContext(ctx, `SELECT id, name, description, created_at FROM task_templates WHERE id = ?`, id).
		Scan(&tpl.ID, &tpl.Name, &tpl.Description, &tpl.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TaskTemplate{}, apperr.NotFound("store.GetTemplate", "template %d not found", id)
	}
	if err != nil {
		return models.TaskTemplate{}, fmt.Errorf("get template: %w", err)
	}
	if tpl.Items, err = s.listTemplateItems(ctx, id); err != nil {
		return models.TaskTemplate{}, err
	}
	return tpl, nil
}

// GetTemplateByName fetches a template by its unique name.
func (s *Store) GetTemplateByName(ctx context.Context, name string) (models.TaskTemplate, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, `SELECT id FROM task_templates WHERE name = ?`, strings.TrimSpace(name)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TaskTemplate{}, apperr.NotFound("store.GetTemplateByName", "template %q not found", name)
	}
	if err != nil {
		return models.TaskTemplate{}, fmt.Errorf("get template: %w", err)
	}
	return s.GetTemplate(ctx, id)
}

// ListTemplates returns all templates without their items.
func (s *Store) ListTemplates(ctx context.Context) ([]models.TaskTemplate, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, name, description, created_at FROM task_templates ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	templates := make([]models.TaskTemplate, 0)
	for rows.Next() {
		var tpl models.TaskTemplate
		if err := rows.Scan(&tpl.ID, &tpl.Name, &tpl.Description, &tpl.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}

func (s *Store) listTemplateItems(ctx context.Context, templateID int64) ([]models.TaskTemplateItem, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, template_id, title, description, category, days_offset, depends_on_index, sort_order
        FROM task_template_items WHERE template_id = ? ORDER BY sort_order, id`, templateID)
	if err != nil {
		return nil, fmt.Errorf("list template items: %w", err)
	}
	defer rows.Close()

	items := make([]models.TaskTemplateItem, 0)
	for rows.Next() {
		var item models.TaskTemplateItem
		var dependsOn sql.NullInt64
		if err := rows.Scan(&item.ID, &item.TemplateID, &item.Title, &item.Description, &item.Category,
			&item.DaysOffset, &dependsOn, &item.SortOrder); err != nil {
			return nil, fmt.Errorf("scan template item: %w", err)
		}
		if dependsOn.Valid {
			v := int(dependsOn.Int64)
			item.DependsOnIndex = &v
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
