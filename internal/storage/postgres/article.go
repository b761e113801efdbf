package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"news_aggregator/internal/domain"
)

var articleColumns = []string{
	"id", "title", "content", "url", "published_at", "fetched_at",
	"source_id", "transparency_metadata", "keywords",
}

type ArticleStore struct {
	db *sqlx.DB
}

func NewArticleStore(db *sqlx.DB) *ArticleStore {
	return &ArticleStore{db: db}
}

// InsertIfAbsent stores article and sets its ID. An article whose URL is
// already stored is skipped and false is returned.
func (s *ArticleStore) InsertIfAbsent(ctx context.Context, article *domain.Article) (bool, error) {
	query := `
		INSERT INTO articles (
			title, content, url, published_at, fetched_at,
			source_id, transparency_metadata, keywords
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
		ON CONFLICT (url) DO NOTHING
		RETURNING id`

	var id int64
	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		article.Title,
		article.Content,
		article.URL,
		article.PublishedAt,
		article.FetchedAt,
		article.SourceID,
		article.Transparency,
		article.Keywords,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert article %s: %w", article.URL, err)
	}

	article.ID = id
	return true, nil
}

// ListBySource returns the newest articles of one source, undated ones last.
func (s *ArticleStore) ListBySource(ctx context.Context, sourceID int64, limit int) ([]domain.Article, error) {
	builder := psql.Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"source_id": sourceID}).
		OrderBy("published_at DESC NULLS LAST", "id DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build articles query: %w", err)
	}

	articles := []domain.Article{}
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &articles, query, args...); err != nil {
		return nil, fmt.Errorf("list articles for source %d: %w", sourceID, err)
	}
	return articles, nil
}
