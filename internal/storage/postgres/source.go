package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"news_aggregator/internal/domain"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var sourceColumns = []string{
	"id", "name", "website", "status", "reliability_score",
	"discovered_by", "discovery_timestamp", "last_validated",
}

type SourceStore struct {
	db *sqlx.DB
}

func NewSourceStore(db *sqlx.DB) *SourceStore {
	return &SourceStore{db: db}
}

// InsertIfAbsent stores source and sets its ID. It reports false, leaving the
// existing row untouched, when the website is already registered.
func (s *SourceStore) InsertIfAbsent(ctx context.Context, source *domain.Source) (bool, error) {
	query := `
		INSERT INTO sources (
			name, website, status, reliability_score, discovered_by, discovery_timestamp
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
		ON CONFLICT (website) DO NOTHING
		RETURNING id`

	var id int64
	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		source.Name,
		source.Website,
		source.Status,
		source.ReliabilityScore,
		source.DiscoveredBy,
		source.DiscoveredAt,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert source %s: %w", source.Website, err)
	}

	source.ID = id
	return true, nil
}

func (s *SourceStore) ListByStatus(ctx context.Context, status domain.SourceStatus) ([]domain.Source, error) {
	return s.list(ctx, sq.Eq{"status": status})
}

func (s *SourceStore) ListAll(ctx context.Context) ([]domain.Source, error) {
	return s.list(ctx, nil)
}

func (s *SourceStore) list(ctx context.Context, where sq.Sqlizer) ([]domain.Source, error) {
	builder := psql.Select(sourceColumns...).
		From("sources").
		OrderBy("reliability_score DESC", "id")
	if where != nil {
		builder = builder.Where(where)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sources query: %w", err)
	}

	sources := []domain.Source{}
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &sources, query, args...); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return sources, nil
}

func (s *SourceStore) UpdateValidation(ctx context.Context, id int64, status domain.SourceStatus, validatedAt time.Time) error {
	query, args, err := psql.Update("sources").
		Set("status", status).
		Set("last_validated", validatedAt).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build validation update: %w", err)
	}
	return s.execOne(ctx, id, query, args...)
}

func (s *SourceStore) UpdateReliabilityScore(ctx context.Context, id int64, score int) error {
	query, args, err := psql.Update("sources").
		Set("reliability_score", score).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build score update: %w", err)
	}
	return s.execOne(ctx, id, query, args...)
}

func (s *SourceStore) execOne(ctx context.Context, id int64, query string, args ...any) error {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update source %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update source %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("source %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
