package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"news_aggregator/internal/domain"
	"news_aggregator/internal/validate"
)

// maxDrainBytes bounds how much of a response body is discarded before close.
const maxDrainBytes = 64 << 10

// HTTPProber checks a source URL's format and, when enabled, that it answers
// with a 2xx status.
type HTTPProber struct {
	client            *http.Client
	checkReachability bool
	userAgent         string
}

var _ Prober = (*HTTPProber)(nil)

func NewHTTPProber(timeout time.Duration, checkReachability bool, userAgent string) *HTTPProber {
	return &HTTPProber{
		client:            &http.Client{Timeout: timeout},
		checkReachability: checkReachability,
		userAgent:         userAgent,
	}
}

func (p *HTTPProber) Check(ctx context.Context, url string) error {
	if !validate.IsValidURL(url) {
		return fmt.Errorf("%w: invalid url %q", domain.ErrValidation, url)
	}
	if !p.checkReachability {
		return nil
	}

	status, err := p.do(ctx, http.MethodHead, url)
	if err == nil && (status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented) {
		status, err = p.do(ctx, http.MethodGet, url)
	}
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("%w: %s answered %d", domain.ErrUpstreamFetch, url, status)
	}
	return nil
}

func (p *HTTPProber) do(ctx context.Context, method, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: create request: %w", domain.ErrValidation, err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %s: %w", domain.ErrUpstreamFetch, method, url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	return resp.StatusCode, nil
}
