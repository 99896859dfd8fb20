// Package conflict answers whether booking a resource for a time window
// collides with its existing commitments.
//
// Windows are half-open: [start, end). Two bookings that merely touch, one
// ending exactly when the other starts, do not conflict. The answer is
// advisory: nothing here prevents a conflicting entry from being written
// after the check returns.
package conflict

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"catering/internal/apperr"
	"catering/internal/models"
	"catering/internal/storage/sqlite"
)

// Query is a request to check a set of resources against a window.
type Query struct {
	ResourceIDs    []int64
	Start          time.Time
	End            time.Time
	ExcludeEntryID *int64
}

// Service runs conflict and availability lookups against the schedule store.
type Service struct {
	store  *sqlite.Store
	logger *slog.Logger
}

// New constructs a Service.
func New(store *sqlite.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) share any instant.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Check returns every booking of the requested resources overlapping the
// window, ordered by resource then start time. Unknown resources and
// resources without bookings contribute nothing.
func (s *Service) Check(ctx context.Context, q Query) ([]models.Conflict, error) {
	const op = "conflict.Check"
	if len(q.ResourceIDs) == 0 {
		return nil, apperr.Validation(op, "resourceIds must not be empty")
	}
	if err := validateWindow(op, q.Start, q.End); err != nil {
		return nil, err
	}

	ids := uniqueIDs(q.ResourceIDs)
	conflicts, err := s.store.FindOverlaps(ctx, ids, q.Start, q.End, q.ExcludeEntryID)
	if err != nil {
		s.logger.Error("conflict lookup failed",
			slog.Int("resources", len(ids)),
			slog.Time("start", q.Start),
			slog.Time("end", q.End),
			slog.String("error", err.Error()))
		return nil, apperr.Wrap(apperr.KindServiceUnavailable, op, err)
	}
	return conflicts, nil
}

// Availability lists the bookings of a resource intersecting [start, end).
func (s *Service) Availability(ctx context.Context, resourceID int64, start, end time.Time) ([]models.AvailabilityEntry, error) {
	const op = "conflict.Availability"
	if resourceID <= 0 {
		return nil, apperr.Validation(op, "resourceId must be positive")
	}
	if err := validateWindow(op, start, end); err != nil {
		return nil, err
	}

	entries, err := s.store.ListAvailability(ctx, resourceID, start, end)
	if err != nil {
		s.logger.Error("availability lookup failed",
			slog.Int64("resource_id", resourceID),
			slog.Time("start", start),
			slog.Time("end", end),
			slog.String("error", err.Error()))
		return nil, apperr.Wrap(apperr.KindServiceUnavailable, op, err)
	}
	return entries, nil
}

// Group splits an ordered conflict list per resource id.
func Group(conflicts []models.Conflict) map[int64][]models.Conflict {
	out := make(map[int64][]models.Conflict)
	for _, c := range conflicts {
		out[c.ResourceID] = append(out[c.ResourceID], c)
	}
	return out
}

func validateWindow(op string, start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return apperr.Validation(op, "start and end are required")
	}
	if !start.Before(end) {
		return apperr.Validation(op, "start must be before end")
	}
	return nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CheckRequest is the wire body of a conflict check.
type CheckRequest struct {
	ResourceIDs            []int64   `json:"resourceIds" binding:"required"`
	StartTime              time.Time `json:"startTime"`
	EndTime                time.Time `json:"endTime"`
	ExcludeScheduleEntryID *int64    `json:"excludeScheduleEntryId,omitempty"`
}

// Query converts the wire body to a Query.
func (r CheckRequest) Query() Query {
	return Query{
		ResourceIDs:    r.ResourceIDs,
		Start:          r.StartTime,
		End:            r.EndTime,
		ExcludeEntryID: r.ExcludeScheduleEntryID,
	}
}

// CheckResponse lists conflicts ordered by resource then start time.
type CheckResponse struct {
	Conflicts []models.Conflict `json:"conflicts"`
}

// AvailabilityResponse lists a resource's bookings in a range.
type AvailabilityResponse struct {
	Entries []models.AvailabilityEntry `json:"entries"`
}
