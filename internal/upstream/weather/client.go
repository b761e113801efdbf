package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"news_aggregator/internal/upstream/httpjson"
)

// Config holds weather API configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Units   string
	HTTP    httpjson.Config
}

// Client reads current conditions from an OpenWeatherMap-compatible API.
type Client struct {
	http    *httpjson.Client
	baseURL string
	apiKey  string
	units   string
}

func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		http:    httpjson.New(cfg.HTTP, logger.With("upstream", "weather")),
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		units:   cfg.Units,
	}
}

// Current returns the raw upstream payload for location.
func (c *Client) Current(ctx context.Context, location string) (json.RawMessage, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse weather base url: %w", err)
	}

	q := u.Query()
	q.Set("q", location)
	if c.apiKey != "" {
		q.Set("appid", c.apiKey)
	}
	if c.units != "" {
		q.Set("units", c.units)
	}
	u.RawQuery = q.Encode()

	body, err := c.http.Get(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("fetch weather for %q: %w", location, err)
	}
	return body, nil
}
