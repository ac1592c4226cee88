package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ListOptions narrows a listing to a server-side date range, matching the
// backend's start_date/end_date query parameters.
type ListOptions struct {
	From time.Time
	To   time.Time
}

// ListEvents fetches one page. cursor is the opaque Next URL from a previous
// page; pass "" for the first page. The returned Page's Next is "" when the
// collection is exhausted.
func (c *Client) ListEvents(ctx context.Context, cursor string, opts *ListOptions) (*Page, error) {
	target := cursor
	if target == "" {
		target = c.url("/events/")
		if opts != nil && !opts.From.IsZero() && !opts.To.IsZero() {
			q := url.Values{}
			q.Set("start_date", opts.From.Format("2006-01-02"))
			q.Set("end_date", opts.To.Format("2006-01-02"))
			target += "?" + q.Encode()
		}
	}

	var page Page
	if err := c.do(ctx, http.MethodGet, target, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListAllEvents accumulates pages while the server reports a next cursor,
// one page in flight at a time.
func (c *Client) ListAllEvents(ctx context.Context, opts *ListOptions) ([]Event, error) {
	var all []Event
	cursor := ""
	for {
		page, err := c.ListEvents(ctx, cursor, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Results...)
		if page.Next == "" {
			return all, nil
		}
		cursor = page.Next
	}
}

// CreateEvent validates and posts a new event, returning the stored record
// with its server-assigned id.
func (c *Client) CreateEvent(ctx context.Context, ev Event) (*Event, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	var created Event
	if err := c.do(ctx, http.MethodPost, c.url("/events/"), ev, &created); err != nil {
		return nil, err
	}
	c.log.Info().Int64("event_id", created.ID).Str("title", created.Title).Msg("event created")
	return &created, nil
}

// UpdateEvent replaces an existing event.
func (c *Client) UpdateEvent(ctx context.Context, ev Event) (*Event, error) {
	if ev.ID == 0 {
		return nil, fmt.Errorf("update event: missing id")
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	var updated Event
	path := fmt.Sprintf("/events/%d/", ev.ID)
	if err := c.do(ctx, http.MethodPut, c.url(path), ev, &updated); err != nil {
		return nil, err
	}
	c.log.Info().Int64("event_id", ev.ID).Msg("event updated")
	return &updated, nil
}

// DeleteEvent removes an event by id.
func (c *Client) DeleteEvent(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/events/%d/", id)
	if err := c.do(ctx, http.MethodDelete, c.url(path), nil, nil); err != nil {
		return err
	}
	c.log.Info().Int64("event_id", id).Msg("event deleted")
	return nil
}
