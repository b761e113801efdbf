package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"news_aggregator/internal/cache"
	"news_aggregator/internal/domain"
)

const DefaultWeatherTTL = time.Hour

type WeatherService struct {
	api    WeatherAPI
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewWeatherService(api WeatherAPI, c Cache, ttl time.Duration, logger *slog.Logger) *WeatherService {
	if ttl <= 0 {
		ttl = DefaultWeatherTTL
	}
	return &WeatherService{
		api:    api,
		cache:  c,
		ttl:    ttl,
		logger: logger.With("component", "weather"),
	}
}

// Fetch returns current weather for location, served from cache for up to
// the configured TTL.
func (s *WeatherService) Fetch(ctx context.Context, location string) (json.RawMessage, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("%w: location is required", domain.ErrValidation)
	}

	key := cache.Key("weather", location)
	data, err := s.cache.GetOrFetch(ctx, key, s.ttl, func(ctx context.Context) ([]byte, error) {
		s.logger.Info("fetching weather", "location", location)
		return s.api.Current(ctx, location)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch weather for %s: %w", location, err)
	}
	return json.RawMessage(data), nil
}
