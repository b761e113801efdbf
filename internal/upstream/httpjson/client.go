// Package httpjson is the shared GET client behind every upstream JSON API:
// per-request timeout, bounded retries with exponential backoff, and
// non-2xx responses mapped to domain.ErrUpstreamFetch.
package httpjson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"news_aggregator/internal/domain"
)

const maxBodyBytes = 4 << 20

// Config holds client configuration.
type Config struct {
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	UserAgent      string
	BearerToken    string
}

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

func (e *StatusError) Unwrap() error {
	return domain.ErrUpstreamFetch
}

type Client struct {
	httpClient     *http.Client
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	userAgent      string
	bearerToken    string
	logger         *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "NewsAggregator/1.0"
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		userAgent:      cfg.UserAgent,
		bearerToken:    cfg.BearerToken,
		logger:         logger,
	}
}

// Get fetches url and returns the raw JSON body. The body is checked to be
// well-formed JSON but otherwise left opaque.
func (c *Client) Get(ctx context.Context, url string) (json.RawMessage, error) {
	var body []byte
	var err error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		body, err = c.doRequest(ctx, url)
		if err == nil {
			return body, nil
		}

		if !retryable(err) || attempt == c.maxAttempts {
			break
		}

		backoff := c.calculateBackoff(attempt)
		c.logger.Warn("request failed, retrying",
			"url", url,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamFetch, ctx.Err())
		case <-time.After(backoff):
		}
	}

	if c.maxAttempts > 1 {
		return nil, fmt.Errorf("after %d attempts: %w", c.maxAttempts, err)
	}
	return nil, err
}

// GetInto fetches url and decodes the JSON body into v.
func (c *Client) GetInto(ctx context.Context, url string, v any) error {
	body, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: decode response: %w", domain.ErrUpstreamFetch, err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: execute request: %w", domain.ErrUpstreamFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", domain.ErrUpstreamFetch, err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: response from %s is not valid JSON", domain.ErrUpstreamFetch, url)
	}

	return body, nil
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if c.maxBackoff > 0 && backoff > c.maxBackoff {
		backoff = c.maxBackoff
	}
	return backoff
}

// 4xx responses other than 429 are not retried.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == http.StatusTooManyRequests
	}
	return errors.Is(err, domain.ErrUpstreamFetch)
}
