package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"news_aggregator/internal/cache"
	"news_aggregator/internal/cache/redis"
	"news_aggregator/internal/cache/sqlite"
	"news_aggregator/internal/config"
	"news_aggregator/internal/feed"
	"news_aggregator/internal/publisher"
	"news_aggregator/internal/registry"
	"news_aggregator/internal/service"
	"news_aggregator/internal/storage/postgres"
	"news_aggregator/internal/upstream/alerts"
	"news_aggregator/internal/upstream/directory"
	"news_aggregator/internal/upstream/httpjson"
	"news_aggregator/internal/upstream/weather"
)

type needs uint8

const (
	needDB needs = 1 << iota
	needCache
	needPublisher
)

// app holds the collaborators a command needs. Only what was asked for is
// connected; the rest stays nil.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	db         *sqlx.DB
	cacheStore cache.Store
	purger     *sqlite.Store
	rabbitMQ   *publisher.RabbitMQ

	cache      *cache.Cache
	sources    *postgres.SourceStore
	articles   *postgres.ArticleStore
	fetchState *postgres.FetchStateStore
	registry   *registry.Registry
	aggregator *service.AggregationService
	weather    *service.WeatherService
	alerts     *service.AlertService

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, n needs) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if n&needDB != 0 {
		if err := a.connectDB(ctx); err != nil {
			return nil, err
		}
		a.wireRegistry()
	}

	if n&needCache != 0 {
		if err := a.connectCache(ctx); err != nil {
			return nil, err
		}
		a.wireExternal()
	}

	if n&needPublisher != 0 && cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to rabbitmq: %w", err)
		}
		a.rabbitMQ = rabbitMQ
		a.closers = append(a.closers, rabbitMQ.Close)
	}

	if n&needDB != 0 {
		a.wireAggregator()
	}

	return a, nil
}

func (a *app) connectDB(ctx context.Context) error {
	db, err := sqlx.ConnectContext(ctx, "postgres", a.cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, db.Close)
	a.logger.Info("connected to database")

	a.sources = postgres.NewSourceStore(db)
	a.articles = postgres.NewArticleStore(db)
	a.fetchState = postgres.NewFetchStateStore(db)
	return nil
}

func (a *app) connectCache(ctx context.Context) error {
	switch a.cfg.Cache.Driver {
	case config.CacheDriverSQLite:
		store, err := sqlite.Open(a.cfg.Cache.SQLite.Path)
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		a.cacheStore = store
		a.purger = store
	default:
		store, err := redis.Connect(ctx, redis.Config{
			Addr:        a.cfg.Cache.Redis.Addr,
			Password:    a.cfg.Cache.Redis.Password,
			DB:          a.cfg.Cache.Redis.DB,
			DialTimeout: a.cfg.Cache.Redis.DialTimeout,
		})
		if err != nil {
			return fmt.Errorf("connect to cache: %w", err)
		}
		a.cacheStore = store
	}
	a.closers = append(a.closers, a.cacheStore.Close)
	a.logger.Info("connected to cache", "driver", a.cfg.Cache.Driver)

	a.cache = cache.New(a.cacheStore, a.logger)
	return nil
}

func (a *app) wireRegistry() {
	cfg := a.cfg
	prober := registry.NewHTTPProber(cfg.Validation.Timeout, cfg.Validation.CheckReachability, cfg.Feeds.UserAgent)

	// A nil *directory.Client must not reach the registry as a non-nil interface.
	var dir registry.Directory
	if cfg.Directory.URL != "" {
		dir = directory.New(cfg.Directory.Name, cfg.Directory.URL, httpjson.Config{
			Timeout:     cfg.Directory.Timeout,
			UserAgent:   cfg.Feeds.UserAgent,
			BearerToken: cfg.Directory.APIKey,
		}, a.logger)
	}

	a.registry = registry.New(a.sources, prober, dir, a.logger)
}

func (a *app) wireAggregator() {
	var pub service.Publisher
	if a.rabbitMQ != nil {
		pub = a.rabbitMQ
	}

	fetcher := feed.New(feed.Config{
		Timeout:   a.cfg.Feeds.Timeout,
		UserAgent: a.cfg.Feeds.UserAgent,
	}, a.logger)

	a.aggregator = service.NewAggregationService(
		a.registry,
		fetcher,
		a.articles,
		a.fetchState,
		postgres.NewTransactionManager(a.db),
		pub,
		a.logger,
		service.AggregationConfig{
			Workers:      a.cfg.Feeds.Workers,
			FetchTimeout: a.cfg.Feeds.Timeout,
		},
	)
}

func (a *app) wireExternal() {
	cfg := a.cfg

	weatherClient := weather.New(weather.Config{
		BaseURL: cfg.Weather.BaseURL,
		APIKey:  cfg.Weather.APIKey,
		Units:   cfg.Weather.Units,
		HTTP:    httpConfig(cfg.Weather.Timeout, cfg.Weather.Retry, cfg.Feeds.UserAgent),
	}, a.logger)
	a.weather = service.NewWeatherService(weatherClient, a.cache, cfg.Weather.TTL, a.logger)

	alertsClient := alerts.New(cfg.Alerts.BaseURL,
		httpConfig(cfg.Alerts.Timeout, cfg.Alerts.Retry, cfg.Feeds.UserAgent),
		a.logger,
	)
	a.alerts = service.NewAlertService(alertsClient, a.cache, cfg.Alerts.Region, cfg.Alerts.TTL, a.logger)
}

func httpConfig(timeout time.Duration, retry config.RetryConfig, userAgent string) httpjson.Config {
	return httpjson.Config{
		Timeout:        timeout,
		MaxAttempts:    retry.MaxAttempts,
		InitialBackoff: retry.InitialBackoff,
		MaxBackoff:     retry.MaxBackoff,
		UserAgent:      userAgent,
	}
}

// Close releases connections in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("failed to close resource", "error", err)
		}
	}
	a.closers = nil
}
