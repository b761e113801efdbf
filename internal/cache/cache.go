// Package cache implements the cache-aside read path shared by every
// externally fetched, frequently re-requested payload.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"news_aggregator/internal/domain"
)

// FetchFunc loads the value from its origin on a cache miss.
type FetchFunc func(ctx context.Context) ([]byte, error)

type Cache struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Cache {
	return &Cache{
		store:  store,
		logger: logger.With("component", "cache"),
	}
}

var lower = cases.Lower(language.Und)

// Key builds a namespaced key "<namespace>:<subject>" with the subject
// trimmed and lower-cased.
func Key(namespace, subject string) string {
	return namespace + ":" + lower.String(strings.TrimSpace(subject))
}

// GetOrFetch returns the cached value for key, or calls fetch and caches its
// result for ttl. Fetch errors are returned and nothing is cached. A ttl of
// zero or less returns the fetched value without caching it. Concurrent
// misses on one key may both fetch; the last write wins.
func (c *Cache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) ([]byte, error) {
	value, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, unavailable("get", key, err)
	}
	if ok {
		c.logger.Debug("cache hit", "key", key)
		return value, nil
	}

	c.logger.Debug("cache miss", "key", key)

	value, err = fetch(ctx)
	if err != nil {
		return nil, err
	}

	if ttl <= 0 {
		return value, nil
	}

	if err := c.store.Set(ctx, key, value, ttl); err != nil {
		c.logger.Warn("failed to cache fetched value", "key", key, "error", err)
		return value, nil
	}
	return value, nil
}

// Invalidate removes key and reports whether it existed.
func (c *Cache) Invalidate(ctx context.Context, key string) (bool, error) {
	existed, err := c.store.Delete(ctx, key)
	if err != nil {
		return false, unavailable("delete", key, err)
	}
	return existed, nil
}

// Ping checks that the backing store is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return unavailable("ping", "", err)
	}
	return nil
}

func unavailable(op, key string, err error) error {
	if errors.Is(err, domain.ErrCacheUnavailable) {
		return fmt.Errorf("cache %s %q: %w", op, key, err)
	}
	return fmt.Errorf("cache %s %q: %w: %w", op, key, domain.ErrCacheUnavailable, err)
}
