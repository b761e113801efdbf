package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"news_aggregator/internal/domain"
	"news_aggregator/internal/validate"
)

const tracerName = "news_aggregator/internal/service"

type AggregationConfig struct {
	Workers      int
	FetchTimeout time.Duration
}

// AggregationService pulls every active source's feed into the article store.
type AggregationService struct {
	sources    SourceLister
	fetcher    FeedFetcher
	articles   ArticleStore
	fetchState FetchStateStore
	txManager  TransactionManager
	publisher  Publisher
	tracer     trace.Tracer
	logger     *slog.Logger
	config     AggregationConfig

	now      func() time.Time
	newRunID func() string
}

// NewAggregationService wires the pipeline. publisher may be nil.
func NewAggregationService(
	sources SourceLister,
	fetcher FeedFetcher,
	articles ArticleStore,
	fetchState FetchStateStore,
	txManager TransactionManager,
	publisher Publisher,
	logger *slog.Logger,
	cfg AggregationConfig,
) *AggregationService {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &AggregationService{
		sources:    sources,
		fetcher:    fetcher,
		articles:   articles,
		fetchState: fetchState,
		txManager:  txManager,
		publisher:  publisher,
		tracer:     otel.Tracer(tracerName),
		logger:     logger.With("component", "aggregator"),
		config:     cfg,
		now:        time.Now,
		newRunID:   uuid.NewString,
	}
}

type sourceOutcome struct {
	added         int
	publishErrors int
	err           error
}

// Aggregate runs one pass over all active sources. Only a failure to list
// sources aborts the run; a failing source is logged, recorded in the result's
// failures and does not affect the others. TotalArticlesAdded counts committed
// inserts, so a repeated run over unchanged feeds adds zero.
func (s *AggregationService) Aggregate(ctx context.Context) (*domain.AggregateResult, error) {
	start := s.now()
	runID := s.newRunID()
	logger := s.logger.With("run_id", runID)

	ctx, span := s.tracer.Start(ctx, "aggregate", trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	sources, err := s.sources.ListActive(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list active sources")
		return nil, fmt.Errorf("list active sources: %w", err)
	}

	logger.Info("starting aggregation", "sources", len(sources), "workers", s.config.Workers)

	result := &domain.AggregateResult{RunID: runID}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.config.Workers)

	for _, src := range sources {
		g.Go(func() error {
			outcome := s.aggregateSource(ctx, runID, src)

			mu.Lock()
			defer mu.Unlock()
			result.SourcesProcessed++
			result.TotalArticlesAdded += outcome.added
			result.PublishErrors += outcome.publishErrors
			if outcome.err != nil {
				result.Failures = append(result.Failures, domain.SourceFailure{
					SourceID: src.ID,
					Name:     src.Name,
					Website:  src.Website,
					Error:    outcome.err.Error(),
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	result.Duration = s.now().Sub(start)

	span.SetAttributes(
		attribute.Int("articles_added", result.TotalArticlesAdded),
		attribute.Int("sources_failed", len(result.Failures)),
	)

	logger.Info("aggregation completed",
		"sources", result.SourcesProcessed,
		"added", result.TotalArticlesAdded,
		"failed", len(result.Failures),
		"publish_errors", result.PublishErrors,
		"duration", result.Duration,
	)

	return result, nil
}

func (s *AggregationService) aggregateSource(ctx context.Context, runID string, src domain.Source) (outcome sourceOutcome) {
	ctx, span := s.tracer.Start(ctx, "aggregate.source", trace.WithAttributes(
		attribute.Int64("source_id", src.ID),
		attribute.String("source_url", src.Website),
	))
	defer span.End()

	logger := s.logger.With("run_id", runID, "source_id", src.ID, "source", src.Name)

	defer func() {
		if outcome.err != nil {
			span.RecordError(outcome.err)
			span.SetStatus(codes.Error, "source failed")
		}
		span.SetAttributes(attribute.Int("articles_added", outcome.added))
	}()

	if !validate.IsValidURL(src.Website) {
		logger.Warn("skipping source with invalid feed url", "url", src.Website)
		return sourceOutcome{err: fmt.Errorf("%w: invalid feed url %q", domain.ErrValidation, src.Website)}
	}

	fetchedAt := s.now()
	articles, err := s.fetch(ctx, src)
	if err != nil {
		logger.Error("failed to fetch feed", "error", err)
		s.recordFetch(ctx, logger, src.ID, fetchedAt, 0, err)
		return sourceOutcome{err: fmt.Errorf("fetch feed: %w", err)}
	}

	inserted, err := s.persist(ctx, articles)
	if err != nil {
		logger.Error("failed to persist articles", "error", err, "candidates", len(articles))
		s.recordFetch(ctx, logger, src.ID, fetchedAt, 0, err)
		return sourceOutcome{err: err}
	}

	logger.Debug("source aggregated", "candidates", len(articles), "added", len(inserted))

	outcome.added = len(inserted)
	outcome.publishErrors = s.publish(ctx, logger, runID, inserted)
	s.recordFetch(ctx, logger, src.ID, fetchedAt, outcome.added, nil)
	return outcome
}

func (s *AggregationService) fetch(ctx context.Context, src domain.Source) ([]domain.Article, error) {
	if s.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.FetchTimeout)
		defer cancel()
	}
	return s.fetcher.Fetch(ctx, src.Website, src.ID)
}

// persist stores one source's candidates in a single transaction and returns
// those that were new. Candidates whose URL is already stored are skipped.
// Inserts are issued in URL order so that concurrent sources sharing URLs
// take row locks in the same order.
func (s *AggregationService) persist(ctx context.Context, articles []domain.Article) ([]*domain.Article, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	ordered := make([]*domain.Article, len(articles))
	for i := range articles {
		ordered[i] = &articles[i]
	}
	slices.SortStableFunc(ordered, func(a, b *domain.Article) int {
		return strings.Compare(a.URL, b.URL)
	})

	var inserted []*domain.Article
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		inserted = inserted[:0]
		for _, article := range ordered {
			ok, err := s.articles.InsertIfAbsent(txCtx, article)
			if err != nil {
				return fmt.Errorf("%w: insert article %s: %w", domain.ErrPersistence, article.URL, err)
			}
			if ok {
				inserted = append(inserted, article)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

func (s *AggregationService) publish(ctx context.Context, logger *slog.Logger, runID string, articles []*domain.Article) int {
	if s.publisher == nil {
		return 0
	}

	failed := 0
	for _, article := range articles {
		if err := s.publisher.Publish(ctx, runID, article); err != nil {
			logger.Warn("failed to publish article", "article_id", article.ID, "error", err)
			failed++
		}
	}
	return failed
}

func (s *AggregationService) recordFetch(ctx context.Context, logger *slog.Logger, sourceID int64, fetchedAt time.Time, added int, fetchErr error) {
	if err := s.fetchState.Record(ctx, sourceID, fetchedAt, added, fetchErr); err != nil {
		logger.Warn("failed to record fetch state", "error", err)
	}
}
