// Package feed polls the external gift-availability endpoint.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Gift is one limited-supply gift currently listed by the feed.
// Gifts are transient; nothing about them is persisted.
type Gift struct {
	ID     string `json:"id"`
	Supply int64  `json:"supply"`
	Price  int64  `json:"price"`
}

// response is the feed's wire envelope.
type response struct {
	Status   string `json:"status"`
	Error    string `json:"error"`
	NewGifts []Gift `json:"new_gifts"`
}

// Client fetches the current gift listing over HTTP.
type Client struct {
	url    string
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a feed client for the given endpoint.
func NewClient(url string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		url:    url,
		http:   &http.Client{Timeout: timeout},
		logger: logger.With("component", "feed"),
	}
}

// Poll performs one fetch of the feed and returns the gifts it lists.
// An empty slice means the feed answered but listed nothing new. Any
// transport, decode, or feed-reported failure is returned as an error;
// the caller decides how to back off. Poll never retries internally.
func (c *Client) Poll(ctx context.Context) ([]Gift, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned HTTP %d", resp.StatusCode)
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode feed response: %w", err)
	}

	if body.Status != "ok" {
		if body.Error != "" {
			return nil, fmt.Errorf("feed reported failure: %s", body.Error)
		}
		return nil, fmt.Errorf("feed reported status %q", body.Status)
	}

	c.logger.DebugContext(ctx, "Feed polled", "gifts", len(body.NewGifts))
	return body.NewGifts, nil
}
