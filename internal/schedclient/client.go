// Package schedclient calls the conflict detection service over HTTP.
//
// Every call carries a short timeout. A transport failure, a timeout, a 5xx
// response or an unreadable body all surface as a ServiceUnavailable error,
// never as an empty conflict list.
package schedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"catering/internal/apperr"
	"catering/internal/conflict"
	"catering/internal/httpx"
	"catering/internal/models"
)

// DefaultTimeout bounds a single call to the service.
const DefaultTimeout = 300 * time.Millisecond

// Client talks to a conflict detection service.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// New constructs a Client for the service at baseURL.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: timeout,
		logger:  logger,
	}
}

// Check asks the service for conflicts in q's window.
func (c *Client) Check(ctx context.Context, q conflict.Query) ([]models.Conflict, error) {
	const op = "schedclient.Check"
	body, err := json.Marshal(conflict.CheckRequest{
		ResourceIDs:            q.ResourceIDs,
		StartTime:              q.Start.UTC(),
		EndTime:                q.End.UTC(),
		ExcludeScheduleEntryID: q.ExcludeEntryID,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, err)
	}

	var resp conflict.CheckResponse
	if err := c.do(ctx, op, http.MethodPost, "/check-conflicts", bytes.NewReader(body), &resp); err != nil {
		return nil, err
	}
	if resp.Conflicts == nil {
		resp.Conflicts = []models.Conflict{}
	}
	return resp.Conflicts, nil
}

// Availability fetches a resource's bookings intersecting [start, end).
func (c *Client) Availability(ctx context.Context, resourceID int64, start, end time.Time) ([]models.AvailabilityEntry, error) {
	const op = "schedclient.Availability"
	query := url.Values{}
	query.Set("resourceId", strconv.FormatInt(resourceID, 10))
	query.Set("startDate", start.UTC().Format(time.RFC3339))
	query.Set("endDate", end.UTC().Format(time.RFC3339))

	var resp conflict.AvailabilityResponse
	if err := c.do(ctx, op, http.MethodGet, "/resource-availability?"+query.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// Health reports whether the service answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	var resp map[string]string
	return c.do(ctx, "schedclient.Health", http.MethodGet, "/health", nil, &resp)
}

func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("conflict service unreachable",
			slog.String("op", op),
			slog.Duration("elapsed", time.Since(started)),
			slog.String("error", err.Error()))
		return apperr.Wrap(apperr.KindServiceUnavailable, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return apperr.Wrap(apperr.KindServiceUnavailable, op, fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return apperr.Wrap(apperr.KindServiceUnavailable, op, fmt.Errorf("service answered %d", resp.StatusCode))
	case resp.StatusCode >= http.StatusBadRequest:
		return decodeError(op, resp.StatusCode, raw)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.Wrap(apperr.KindServiceUnavailable, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func decodeError(op string, status int, raw []byte) error {
	var body httpx.ErrorBody
	if err := json.Unmarshal(raw, &body); err != nil || body.Error.Code == "" {
		return apperr.Wrap(apperr.KindServiceUnavailable, op, fmt.Errorf("service answered %d", status))
	}
	return apperr.New(apperr.KindFromCode(body.Error.Code), op, "%s", body.Error.Message)
}
