// Package billing reads subscription end dates from the billing service.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrNoSubscription means the fighter has no subscription on record.
var ErrNoSubscription = errors.New("billing: no subscription")

// Client calls the billing service REST API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	// Loc is the gym timezone. Timestamped end dates are read as the date they fall
	// on there.
	Loc *time.Location
}

// New creates a client with a short timeout; punches wait on it. A nil loc means UTC.
func New(baseURL string, loc *time.Location) *Client {
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 5 * time.Second},
		Loc:     loc,
	}
}

// EndDate returns the calendar date the fighter's subscription ends, as midnight UTC.
// A zero time means the subscription is open ended.
func (c *Client) EndDate(ctx context.Context, fighterID string) (time.Time, error) {
	endpoint := c.BaseURL + "/subscriptions/fighter/" + url.PathEscape(fighterID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return time.Time{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("billing request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return time.Time{}, ErrNoSubscription
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return time.Time{}, fmt.Errorf("billing service error %s: %s", resp.Status, string(body))
	}

	var out struct {
		EndDate *string `json:"endDate"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return time.Time{}, fmt.Errorf("decode billing response: %w", err)
	}
	if out.EndDate == nil || *out.EndDate == "" {
		return time.Time{}, nil
	}
	return parseDate(*out.EndDate, c.Loc)
}

// parseDate accepts YYYY-MM-DD, kept as written, or an RFC 3339 instant, which maps to
// its date in loc. Services that store "ends 11 Mar" as local midnight serialize it as
// the previous evening in UTC.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("billing endDate %q: %w", s, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

// Memory holds subscription end dates in process, for the memory backend and tests.
type Memory struct {
	openEnded bool

	mu   sync.RWMutex
	ends map[string]time.Time
}

// NewMemory creates an in-process source. With openEnded, fighters without an entry
// are treated as having an open-ended subscription instead of none.
func NewMemory(openEnded bool) *Memory {
	return &Memory{openEnded: openEnded, ends: make(map[string]time.Time)}
}

// Set records the end date for a fighter.
func (m *Memory) Set(fighterID string, end time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	y, mo, d := end.Date()
	m.ends[fighterID] = time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

func (m *Memory) EndDate(_ context.Context, fighterID string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	end, ok := m.ends[fighterID]
	if !ok {
		if m.openEnded {
			return time.Time{}, nil
		}
		return time.Time{}, ErrNoSubscription
	}
	return end, nil
}
