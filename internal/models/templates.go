package models

import "time"

// TaskTemplate is a reusable, dateless task list.
type TaskTemplate struct {
	ID          int64              `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Items       []TaskTemplateItem `json:"items"`
	CreatedAt   time.Time          `json:"created_at"`
}

// TaskTemplateItem is one task definition inside a template. DaysOffset is
// relative to the anchor event date and DependsOnIndex names another item's
// SortOrder in the same template.
type TaskTemplateItem struct {
	ID             int64  `json:"id"`
	TemplateID     int64  `json:"template_id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Category       string `json:"category"`
	DaysOffset     int    `json:"days_offset"`
	DependsOnIndex *int   `json:"depends_on_index,omitempty"`
	SortOrder      int    `json:"sort_order"`
}
