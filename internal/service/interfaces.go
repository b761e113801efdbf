package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"encoding/json"
	"time"

	"news_aggregator/internal/cache"
	"news_aggregator/internal/domain"
)

type SourceLister interface {
	ListActive(ctx context.Context) ([]domain.Source, error)
}

type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string, sourceID int64) ([]domain.Article, error)
}

type ArticleStore interface {
	InsertIfAbsent(ctx context.Context, article *domain.Article) (bool, error)
}

type FetchStateStore interface {
	Record(ctx context.Context, sourceID int64, fetchedAt time.Time, added int, fetchErr error) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, runID string, article *domain.Article) error
}

type Cache interface {
	GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch cache.FetchFunc) ([]byte, error)
	Invalidate(ctx context.Context, key string) (bool, error)
}

type WeatherAPI interface {
	Current(ctx context.Context, location string) (json.RawMessage, error)
}

type AlertAPI interface {
	Active(ctx context.Context) (json.RawMessage, error)
}
