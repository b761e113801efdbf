package registry

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"news_aggregator/internal/domain"
)

type SourceStore interface {
	// InsertIfAbsent reports false when a source with the same website exists.
	InsertIfAbsent(ctx context.Context, source *domain.Source) (bool, error)
	ListByStatus(ctx context.Context, status domain.SourceStatus) ([]domain.Source, error)
	ListAll(ctx context.Context) ([]domain.Source, error)
	UpdateValidation(ctx context.Context, id int64, status domain.SourceStatus, validatedAt time.Time) error
	UpdateReliabilityScore(ctx context.Context, id int64, score int) error
}

type Prober interface {
	Check(ctx context.Context, url string) error
}

type Directory interface {
	Name() string
	ListSources(ctx context.Context) ([]domain.DirectoryEntry, error)
}
