// Package feed retrieves one RSS/Atom/JSON feed and turns its entries into
// candidate articles.
package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"news_aggregator/internal/domain"
	"news_aggregator/internal/validate"
)

const (
	defaultTitle      = "No Title"
	unknownSourceName = "Unknown Source"
	maxFeedBytes      = 10 << 20
)

// Config holds fetcher configuration.
type Config struct {
	Timeout   time.Duration
	UserAgent string
}

type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	logger     *slog.Logger
	now        func() time.Time
}

func New(cfg Config, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		userAgent: cfg.UserAgent,
		maxBytes:  maxFeedBytes,
		logger:    logger.With("component", "feed"),
		now:       time.Now,
	}
}

// Fetch downloads and parses feedURL. Transport failures and non-2xx
// responses are returned as errors wrapping domain.ErrUpstreamFetch; a body
// that cannot be parsed as a feed yields no articles and no error.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string, sourceID int64) ([]domain.Article, error) {
	body, err := f.download(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		f.logger.Warn("malformed feed",
			"source_id", sourceID,
			"feed_url", feedURL,
			"error", err,
		)
		return []domain.Article{}, nil
	}

	fetchedAt := f.now().UTC()
	meta := &domain.TransparencyMetadata{
		SourceName: strings.TrimSpace(parsed.Title),
		FeedURL:    feedURL,
		FetchedAt:  fetchedAt,
	}
	if meta.SourceName == "" {
		meta.SourceName = unknownSourceName
	}

	articles := make([]domain.Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		article, ok := f.normalize(item, sourceID, fetchedAt, meta)
		if !ok {
			continue
		}
		articles = append(articles, article)
	}

	f.logger.Debug("fetched feed",
		"source_id", sourceID,
		"feed_url", feedURL,
		"entries", len(parsed.Items),
		"articles", len(articles),
	)

	return articles, nil
}

func (f *Fetcher) download(ctx context.Context, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %w", domain.ErrUpstreamFetch, feedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: fetch %s: unexpected status %d", domain.ErrUpstreamFetch, feedURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrUpstreamFetch, feedURL, err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("%w: fetch %s: feed larger than %d bytes", domain.ErrUpstreamFetch, feedURL, f.maxBytes)
	}
	return body, nil
}

func (f *Fetcher) normalize(item *gofeed.Item, sourceID int64, fetchedAt time.Time, meta *domain.TransparencyMetadata) (domain.Article, bool) {
	link := strings.TrimSpace(item.Link)
	if !validate.IsValidURL(link) {
		f.logger.Debug("skipping entry with invalid link", "source_id", sourceID, "link", link)
		return domain.Article{}, false
	}

	title := strings.TrimSpace(validate.Sanitize(htmlToText(item.Title)))
	if title == "" {
		title = defaultTitle
	}

	content := item.Description
	if strings.TrimSpace(content) == "" {
		content = item.Content
	}

	article := domain.Article{
		Title:        title,
		Content:      htmlToText(content),
		URL:          link,
		PublishedAt:  publishedAt(item),
		FetchedAt:    fetchedAt,
		SourceID:     sourceID,
		Transparency: meta,
		Keywords:     keywords(item.Categories),
	}
	return article, true
}

func publishedAt(item *gofeed.Item) *time.Time {
	switch {
	case item.PublishedParsed != nil:
		t := item.PublishedParsed.UTC()
		return &t
	case item.UpdatedParsed != nil:
		t := item.UpdatedParsed.UTC()
		return &t
	default:
		return nil
	}
}

func keywords(categories []string) *string {
	var kept []string
	seen := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		c = strings.TrimSpace(validate.Sanitize(c))
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		kept = append(kept, c)
	}
	if len(kept) == 0 {
		return nil
	}
	joined := strings.Join(kept, ", ")
	return &joined
}

// htmlToText drops markup and collapses whitespace. Plain text passes
// through unchanged apart from whitespace.
func htmlToText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
