package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"news_aggregator/internal/domain"
	"news_aggregator/internal/registry"
	"news_aggregator/internal/upstream/httpjson"
)

type response struct {
	Sources []json.RawMessage `json:"sources"`
}

type entry struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Client lists candidate sources from an external directory API that
// requires a bearer token.
type Client struct {
	http   *httpjson.Client
	url    string
	name   string
	logger *slog.Logger
}

var _ registry.Directory = (*Client)(nil)

func New(name, url string, cfg httpjson.Config, logger *slog.Logger) *Client {
	logger = logger.With("upstream", "directory")
	return &Client{
		http:   httpjson.New(cfg, logger),
		url:    url,
		name:   name,
		logger: logger,
	}
}

func (c *Client) Name() string {
	return c.name
}

// ListSources returns every entry that decodes. Malformed entries are logged
// and skipped; only a response that cannot be decoded at all is an error.
func (c *Client) ListSources(ctx context.Context) ([]domain.DirectoryEntry, error) {
	var resp response
	if err := c.http.GetInto(ctx, c.url, &resp); err != nil {
		return nil, fmt.Errorf("list directory sources: %w", err)
	}

	entries := make([]domain.DirectoryEntry, 0, len(resp.Sources))
	for i, raw := range resp.Sources {
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			c.logger.Warn("skipping malformed directory entry", "index", i, "error", err)
			continue
		}
		entries = append(entries, domain.DirectoryEntry{Name: e.Name, URL: e.URL})
	}
	return entries, nil
}
