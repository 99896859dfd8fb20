// Package catalog reads task templates from TOML files and imports them.
//
// A catalog looks like:
//
//	[[template]]
//	name = "Standard wedding"
//
//	[[template.item]]
//	title = "Tasting"
//	days_offset = -30
//	sort_order = 1
//
//	[[template.item]]
//	title = "Final headcount"
//	days_offset = -7
//	sort_order = 2
//	depends_on = 1
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"catering/internal/apperr"
	"catering/internal/depgraph"
	"catering/internal/models"
	"catering/internal/storage/sqlite"
)

// File is a parsed catalog.
type File struct {
	Templates []Template `toml:"template"`
}

// Template is one catalog entry.
type Template struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
	Items       []Item `toml:"item"`
}

// Item is a dateless task definition. DependsOn names another item's
// sort_order in the same template.
type Item struct {
	Title       string `toml:"title"`
	Description string `toml:"description"`
	Category    string `toml:"category"`
	DaysOffset  int    `toml:"days_offset"`
	DependsOn   *int   `toml:"depends_on"`
	SortOrder   int    `toml:"sort_order"`
}

// Result lists what an import did by template name.
type Result struct {
	Created []string
	Skipped []string
}

// Load reads and validates a catalog file.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog text. Items without a sort_order take
// their 1-based position.
func Parse(data []byte) (File, error) {
	const op = "catalog.Parse"
	var f File
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return File{}, apperr.Validation(op, "parse catalog: %v", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return File{}, apperr.Validation(op, "unknown keys: %s", strings.Join(keys, ", "))
	}

	for ti := range f.Templates {
		for ii := range f.Templates[ti].Items {
			if f.Templates[ti].Items[ii].SortOrder == 0 {
				f.Templates[ti].Items[ii].SortOrder = ii + 1
			}
		}
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Validate checks names, sort orders, references and cycles.
func (f File) Validate() error {
	const op = "catalog.Validate"
	names := make(map[string]bool, len(f.Templates))
	for _, tpl := range f.Templates {
		name := strings.TrimSpace(tpl.Name)
		if name == "" {
			return apperr.Validation(op, "template without a name")
		}
		if names[name] {
			return apperr.Validation(op, "template %q defined twice", name)
		}
		names[name] = true

		bySort := make(map[int]Item, len(tpl.Items))
		keys := make([]int, 0, len(tpl.Items))
		for _, item := range tpl.Items {
			if strings.TrimSpace(item.Title) == "" {
				return apperr.Validation(op, "template %q: item %d has no title", name, item.SortOrder)
			}
			if _, dup := bySort[item.SortOrder]; dup {
				return apperr.Validation(op, "template %q: sort_order %d used twice", name, item.SortOrder)
			}
			bySort[item.SortOrder] = item
			keys = append(keys, item.SortOrder)
		}
		for _, item := range tpl.Items {
			if item.DependsOn == nil {
				continue
			}
			if _, ok := bySort[*item.DependsOn]; !ok {
				return apperr.Validation(op, "template %q: item %d depends on missing item %d", name, item.SortOrder, *item.DependsOn)
			}
		}
		sort.Ints(keys)
		if _, err := depgraph.Order(keys, func(k int) (int, bool) {
			p := bySort[k].DependsOn
			if p == nil {
				return 0, false
			}
			return *p, true
		}); err != nil {
			return apperr.Validation(op, "template %q: %s", name, apperr.Message(err))
		}
	}
	return nil
}

// Import stores every template whose name is not taken yet, all in one
// transaction. Existing templates are left as they are.
func Import(ctx context.Context, store *sqlite.Store, f File, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := f.Validate(); err != nil {
		return Result{}, err
	}

	var res Result
	err := store.InTx(ctx, func(tx *sqlite.Store) error {
		for _, tpl := range f.Templates {
			name := strings.TrimSpace(tpl.Name)
			_, err := tx.GetTemplateByName(ctx, name)
			if err == nil {
				res.Skipped = append(res.Skipped, name)
				continue
			}
			if !errors.Is(err, apperr.ErrNotFound) {
				return err
			}
			if _, err := tx.CreateTemplate(ctx, toModel(tpl)); err != nil {
				return err
			}
			res.Created = append(res.Created, name)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	logger.Info("template catalog imported",
		slog.Int("created", len(res.Created)),
		slog.Int("skipped", len(res.Skipped)))
	return res, nil
}

func toModel(tpl Template) models.TaskTemplate {
	out := models.TaskTemplate{
		Name:        strings.TrimSpace(tpl.Name),
		Description: tpl.Description,
		Items:       make([]models.TaskTemplateItem, 0, len(tpl.Items)),
	}
	for _, item := range tpl.Items {
		out.Items = append(out.Items, models.TaskTemplateItem{
			Title:          item.Title,
			Description:    item.Description,
			Category:       item.Category,
			DaysOffset:     item.DaysOffset,
			DependsOnIndex: item.DependsOn,
			SortOrder:      item.SortOrder,
		})
	}
	return out
}
