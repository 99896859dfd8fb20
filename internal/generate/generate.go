// Package generate creates task sets from an existing event or a template.
//
// Due dates are always recomputed from an anchor date. Generated tasks start
// pending and unassigned whatever state their source was in, and each
// generation is all or nothing.
package generate

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"catering/internal/apperr"
	"catering/internal/depgraph"
	"catering/internal/lifecycle"
	"catering/internal/models"
	"catering/internal/storage/sqlite"
)

// DefaultMaxSeries caps how many events one series clone may create.
const DefaultMaxSeries = 52

// CloneOptions date the clone and optionally override copied fields.
type CloneOptions struct {
	EventDate     time.Time
	Name          *string
	StartTime     *string
	EndTime       *string
	Location      *string
	AttendeeCount *int
	Notes         *string
	ClientID      *int64
	Actor         string
}

// SeriesOptions expand an RRULE into clone dates.
type SeriesOptions struct {
	// Rule is an RFC 5545 recurrence rule such as "FREQ=WEEKLY;COUNT=4".
	Rule string
	// First anchors the rule; it is the first clone's date.
	First time.Time
	Max   int
	Actor string
}

// Generator clones events and instantiates templates.
type Generator struct {
	store  *sqlite.Store
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Generator.
func New(store *sqlite.Store, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{store: store, logger: logger, now: time.Now}
}

// CloneEvent copies an event and its tasks onto a new date. The source may
// be in any state, archived included.
func (g *Generator) CloneEvent(ctx context.Context, sourceID int64, opts CloneOptions) (models.Event, []models.Task, error) {
	const op = "generate.CloneEvent"
	if opts.EventDate.IsZero() {
		return models.Event{}, nil, apperr.Validation(op, "event date is required")
	}

	var event models.Event
	var tasks []models.Task
	err := g.store.InTx(ctx, func(tx *sqlite.Store) error {
		var err error
		event, tasks, err = g.clone(ctx, tx, op, sourceID, opts)
		return err
	})
	if err != nil {
		return models.Event{}, nil, err
	}
	g.logger.Info("event cloned",
		slog.Int64("source_event_id", sourceID),
		slog.Int64("event_id", event.ID),
		slog.Int("tasks", len(tasks)),
		slog.String("actor", opts.Actor))
	return event, tasks, nil
}

// CloneSeries clones the source once per occurrence of a recurrence rule,
// in one transaction.
func (g *Generator) CloneSeries(ctx context.Context, sourceID int64, opts SeriesOptions) ([]models.Event, error) {
	const op = "generate.CloneSeries"
	dates, err := expandRule(op, opts)
	if err != nil {
		return nil, err
	}

	events := make([]models.Event, 0, len(dates))
	err = g.store.InTx(ctx, func(tx *sqlite.Store) error {
		for _, d := range dates {
			e, _, err := g.clone(ctx, tx, op, sourceID, CloneOptions{EventDate: d, Actor: opts.Actor})
			if err != nil {
				return err
			}
			events = append(events, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	g.logger.Info("event series cloned",
		slog.Int64("source_event_id", sourceID),
		slog.Int("events", len(events)),
		slog.String("rule", opts.Rule),
		slog.String("actor", opts.Actor))
	return events, nil
}

// InstantiateTemplate adds a template's items as tasks of an existing event
// and records the template on the event.
func (g *Generator) InstantiateTemplate(ctx context.Context, eventID, templateID int64, actor string) ([]models.Task, error) {
	const op = "generate.InstantiateTemplate"
	var created []models.Task
	err := g.store.InTx(ctx, func(tx *sqlite.Store) error {
		event, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if err := lifecycle.EnsureMutable(op, event); err != nil {
			return err
		}
		tpl, err := tx.GetTemplate(ctx, templateID)
		if err != nil {
			return err
		}
		if created, err = instantiate(ctx, tx, op, event, tpl.Items); err != nil {
			return err
		}
		event.TemplateID = &tpl.ID
		_, err = tx.UpdateEvent(ctx, event)
		return err
	})
	if err != nil {
		return nil, err
	}
	g.logger.Info("template instantiated",
		slog.Int64("event_id", eventID),
		slog.Int64("template_id", templateID),
		slog.Int("tasks", len(created)),
		slog.String("actor", actor))
	return created, nil
}

func (g *Generator) clone(ctx context.Context, tx *sqlite.Store, op string, sourceID int64, opts CloneOptions) (models.Event, []models.Task, error) {
	source, err := tx.GetEvent(ctx, sourceID)
	if err != nil {
		return models.Event{}, nil, err
	}
	sourceTasks, err := tx.ListTasksByEvent(ctx, sourceID)
	if err != nil {
		return models.Event{}, nil, err
	}

	target := models.Event{
		ClientID:          source.ClientID,
		Name:              source.Name,
		EventDate:         models.DateOnly(opts.EventDate),
		StartTime:         source.StartTime,
		EndTime:           source.EndTime,
		Location:          source.Location,
		AttendeeCount:     source.AttendeeCount,
		Notes:             source.Notes,
		Status:            models.EventInquiry,
		ClonedFromEventID: &source.ID,
	}
	override(&target, opts)
	if !models.ValidClock(target.StartTime) || !models.ValidClock(target.EndTime) {
		return models.Event{}, nil, apperr.Validation(op, "start_time and end_time must be HH:MM")
	}
	if target.AttendeeCount < 0 {
		return models.Event{}, nil, apperr.Validation(op, "attendee_count must not be negative")
	}

	created, err := tx.CreateEvent(ctx, target)
	if err != nil {
		return models.Event{}, nil, err
	}
	if _, err := tx.AppendStatusChange(ctx, models.StatusChange{
		EventID:   created.ID,
		ToStatus:  models.EventInquiry,
		ChangedBy: opts.Actor,
		ChangedAt: g.now(),
		Notes:     "cloned from event " + strconv.FormatInt(source.ID, 10),
	}); err != nil {
		return models.Event{}, nil, err
	}

	tasks, err := cloneTasks(ctx, tx, source, created, sourceTasks)
	if err != nil {
		return models.Event{}, nil, err
	}
	return created, tasks, nil
}

// cloneTasks recreates sourceTasks on target, predecessors first.
func cloneTasks(ctx context.Context, tx *sqlite.Store, source, target models.Event, sourceTasks []models.Task) ([]models.Task, error) {
	byID := make(map[int64]models.Task, len(sourceTasks))
	ids := make([]int64, 0, len(sourceTasks))
	for _, t := range sourceTasks {
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}
	order, err := depgraph.Order(ids, func(id int64) (int64, bool) {
		p := byID[id].DependsOnTaskID
		if p == nil {
			return 0, false
		}
		return *p, true
	})
	if err != nil {
		return nil, err
	}

	anchor := models.DateOnly(source.EventDate)
	remap := make(map[int64]int64, len(order))
	out := make([]models.Task, 0, len(order))
	for _, id := range order {
		src := byID[id]
		t := fresh(target.ID, src.Title, src.Description, src.Category)
		if src.DueDate != nil {
			due := models.DateOnly(target.EventDate).Add(models.DateOnly(*src.DueDate).Sub(anchor))
			t.DueDate = &due
		}
		if src.DependsOnTaskID != nil {
			// Predecessors outside the source event have no image here.
			if newID, ok := remap[*src.DependsOnTaskID]; ok {
				t.DependsOnTaskID = &newID
			}
		}
		created, err := tx.CreateTask(ctx, t)
		if err != nil {
			return nil, err
		}
		remap[src.ID] = created.ID
		out = append(out, created)
	}
	sortByID(out)
	return out, nil
}

func instantiate(ctx context.Context, tx *sqlite.Store, op string, event models.Event, items []models.TaskTemplateItem) ([]models.Task, error) {
	bySort := make(map[int]models.TaskTemplateItem, len(items))
	keys := make([]int, 0, len(items))
	for _, item := range items {
		if _, dup := bySort[item.SortOrder]; dup {
			return nil, apperr.Validation(op, "template has duplicate sort order %d", item.SortOrder)
		}
		bySort[item.SortOrder] = item
		keys = append(keys, item.SortOrder)
	}
	sort.Ints(keys)
	order, err := depgraph.Order(keys, func(k int) (int, bool) {
		p := bySort[k].DependsOnIndex
		if p == nil {
			return 0, false
		}
		return *p, true
	})
	if err != nil {
		return nil, err
	}

	anchor := models.DateOnly(event.EventDate)
	remap := make(map[int]int64, len(order))
	out := make([]models.Task, 0, len(order))
	for _, k := range order {
		item := bySort[k]
		t := fresh(event.ID, item.Title, item.Description, item.Category)
		due := anchor.AddDate(0, 0, item.DaysOffset)
		t.DueDate = &due
		if item.DependsOnIndex != nil {
			if newID, ok := remap[*item.DependsOnIndex]; ok {
				t.DependsOnTaskID = &newID
			}
		}
		created, err := tx.CreateTask(ctx, t)
		if err != nil {
			return nil, err
		}
		remap[k] = created.ID
		out = append(out, created)
	}
	sortByID(out)
	return out, nil
}

// fresh returns a task in its initial execution state.
func fresh(eventID int64, title, description, category string) models.Task {
	return models.Task{
		EventID:     eventID,
		Title:       title,
		Description: description,
		Category:    category,
		Status:      models.TaskPending,
	}
}

func override(e *models.Event, opts CloneOptions) {
	if opts.Name != nil && strings.TrimSpace(*opts.Name) != "" {
		e.Name = *opts.Name
	}
	if opts.StartTime != nil {
		e.StartTime = strings.TrimSpace(*opts.StartTime)
	}
	if opts.EndTime != nil {
		e.EndTime = strings.TrimSpace(*opts.EndTime)
	}
	if opts.Location != nil {
		e.Location = *opts.Location
	}
	if opts.AttendeeCount != nil {
		e.AttendeeCount = *opts.AttendeeCount
	}
	if opts.Notes != nil {
		e.Notes = *opts.Notes
	}
	if opts.ClientID != nil {
		e.ClientID = *opts.ClientID
	}
}

func expandRule(op string, opts SeriesOptions) ([]time.Time, error) {
	if opts.First.IsZero() {
		return nil, apperr.Validation(op, "first date is required")
	}
	raw := strings.TrimPrefix(strings.TrimSpace(opts.Rule), "RRULE:")
	if raw == "" {
		return nil, apperr.Validation(op, "recurrence rule is required")
	}
	rule, err := rrule.StrToRRule(raw)
	if err != nil {
		return nil, apperr.Validation(op, "invalid recurrence rule: %v", err)
	}
	rule.DTStart(models.DateOnly(opts.First))

	limit := opts.Max
	if limit <= 0 {
		limit = DefaultMaxSeries
	}
	next := rule.Iterator()
	dates := make([]time.Time, 0)
	for {
		d, ok := next()
		if !ok {
			break
		}
		if len(dates) == limit {
			return nil, apperr.Validation(op, "rule yields more than %d dates", limit)
		}
		dates = append(dates, models.DateOnly(d))
	}
	if len(dates) == 0 {
		return nil, apperr.Validation(op, "rule yields no dates")
	}
	return dates, nil
}

func sortByID(tasks []models.Task) {
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
}
