package gh

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Page is one slice of the user directory. NextSince is nil when the stream
// is exhausted.
type Page struct {
	Users     []User
	NextSince *int
}

// ListUsers fetches one directory page starting at the given cursor. An empty
// or non-list response means end of stream. The next cursor is since plus the
// page size; upstream IDs are not contiguous, so this is a deliberate
// approximation and callers must also stop on short pages.
func (c *Client) ListUsers(ctx context.Context, since int) (Page, error) {
	url := fmt.Sprintf("%s/users?since=%d&per_page=%d", c.cfg.BaseURL, since, c.cfg.PerPage)
	resp, err := c.Get(ctx, url)
	if err != nil {
		return Page{}, fmt.Errorf("list users: %w", err)
	}

	var users []User
	if err := json.Unmarshal(resp.Body, &users); err != nil {
		// Error payloads decode as objects, not lists; treat as end of stream.
		c.logger.Warn("directory page was not a list",
			zap.Int("since", since),
			zap.Int("status", resp.StatusCode),
		)
		return Page{}, nil
	}
	if len(users) == 0 {
		return Page{}, nil
	}

	next := since + c.cfg.PerPage
	return Page{Users: users, NextSince: &next}, nil
}

// PageSize reports the configured directory page size.
func (c *Client) PageSize() int {
	return c.cfg.PerPage
}
