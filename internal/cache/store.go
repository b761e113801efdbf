package cache

//go:generate mockgen -source=store.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"
)

// Store is a key-value store with per-key expiry. Implementations report an
// unreachable backend with errors wrapping domain.ErrCacheUnavailable.
type Store interface {
	// Get reports false when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete reports whether the key existed.
	Delete(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}
