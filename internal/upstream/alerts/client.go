package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"news_aggregator/internal/upstream/httpjson"
)

// Client reads active alerts from the regional alerts feed. The feed is
// bound to a single region by its URL.
type Client struct {
	http    *httpjson.Client
	baseURL string
}

func New(baseURL string, cfg httpjson.Config, logger *slog.Logger) *Client {
	return &Client{
		http:    httpjson.New(cfg, logger.With("upstream", "alerts")),
		baseURL: baseURL,
	}
}

// Active returns the raw alert list payload.
func (c *Client) Active(ctx context.Context) (json.RawMessage, error) {
	body, err := c.http.Get(ctx, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("fetch alerts: %w", err)
	}
	return body, nil
}
