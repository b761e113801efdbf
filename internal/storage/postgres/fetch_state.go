package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"news_aggregator/internal/domain"
)

type FetchStateStore struct {
	db *sqlx.DB
}

func NewFetchStateStore(db *sqlx.DB) *FetchStateStore {
	return &FetchStateStore{db: db}
}

func (s *FetchStateStore) Get(ctx context.Context, sourceID int64) (*domain.FetchState, error) {
	var state domain.FetchState
	query := `
		SELECT source_id, last_fetched_at, last_success_at, last_error, total_added
		FROM source_fetch_state
		WHERE source_id = $1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &state, query, sourceID)
	if errors.Is(err, sql.ErrNoRows) {
		// never fetched
		return &domain.FetchState{SourceID: sourceID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get fetch state %d: %w", sourceID, err)
	}
	return &state, nil
}

// Record stores the outcome of one fetch attempt. added is accumulated into
// the running total; a nil fetchErr also moves last_success_at and clears
// last_error.
func (s *FetchStateStore) Record(ctx context.Context, sourceID int64, fetchedAt time.Time, added int, fetchErr error) error {
	var (
		lastSuccess *time.Time
		lastError   *string
	)
	if fetchErr == nil {
		lastSuccess = &fetchedAt
	} else {
		msg := fetchErr.Error()
		lastError = &msg
	}

	query := `
		INSERT INTO source_fetch_state (source_id, last_fetched_at, last_success_at, last_error, total_added)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (source_id) DO UPDATE SET
			last_fetched_at = EXCLUDED.last_fetched_at,
			last_success_at = COALESCE(EXCLUDED.last_success_at, source_fetch_state.last_success_at),
			last_error = EXCLUDED.last_error,
			total_added = source_fetch_state.total_added + EXCLUDED.total_added`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		sourceID,
		fetchedAt,
		lastSuccess,
		lastError,
		added,
	)
	if err != nil {
		return fmt.Errorf("record fetch state %d: %w", sourceID, err)
	}
	return nil
}
