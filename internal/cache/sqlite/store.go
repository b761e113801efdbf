// Package sqlite provides an embedded cache store backed by SQLite, for
// single-node deployments without Redis.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"news_aggregator/internal/cache"
	"news_aggregator/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	cache_key  TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries (expires_at);`

type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ cache.Store = (*Store)(nil)

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("%w: ping sqlite db: %w", domain.ErrCacheUnavailable, err)
	}

	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}

	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil || s.sqlDB == nil {
		return nil, false, fmt.Errorf("%w: storage is not configured", domain.ErrCacheUnavailable)
	}

	var payload []byte
	var expiresAt int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT payload, expires_at FROM cache_entries WHERE cache_key = ?`,
		key,
	).Scan(&payload, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: get cache entry: %w", domain.ErrCacheUnavailable, err)
	}

	if s.now().UnixMilli() >= expiresAt {
		_, _ = s.sqlDB.ExecContext(ctx,
			`DELETE FROM cache_entries WHERE cache_key = ? AND expires_at = ?`,
			key, expiresAt,
		)
		return nil, false, nil
	}
	return payload, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("%w: storage is not configured", domain.ErrCacheUnavailable)
	}

	expiresAt := s.now().Add(ttl).UnixMilli()
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO cache_entries (cache_key, payload, expires_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
		    payload = excluded.payload,
		    expires_at = excluded.expires_at`,
		key, value, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("%w: put cache entry: %w", domain.ErrCacheUnavailable, err)
	}
	return nil
}

// Delete reports true only for a live entry; an expired row is removed but
// counts as absent.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("%w: storage is not configured", domain.ErrCacheUnavailable)
	}

	res, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE cache_key = ? AND expires_at > ?`,
		key, s.now().UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("%w: delete cache entry: %w", domain.ErrCacheUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: delete cache entry: %w", domain.ErrCacheUnavailable, err)
	}

	_, _ = s.sqlDB.ExecContext(ctx, `DELETE FROM cache_entries WHERE cache_key = ?`, key)
	return n > 0, nil
}

// Purge removes every expired entry and returns how many were removed.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at <= ?`,
		s.now().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("purge cache entries: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("%w: storage is not configured", domain.ErrCacheUnavailable)
	}
	if err := s.sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCacheUnavailable, err)
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}
