package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"news_aggregator/internal/cache"
)

const (
	DefaultAlertRegion = "Lewiston"

	MinAlertTTL = 5 * time.Minute
	MaxAlertTTL = 10 * time.Minute
)

var errNoAlerts = errors.New("no active alerts")

// AlertService serves regional emergency alerts. Only one region is
// supported; requests for any other region are answered for that one.
type AlertService struct {
	api    AlertAPI
	cache  Cache
	region string
	ttl    time.Duration
	logger *slog.Logger
}

// NewAlertService clamps ttl into [MinAlertTTL, MaxAlertTTL]. An empty region
// means DefaultAlertRegion.
func NewAlertService(api AlertAPI, c Cache, region string, ttl time.Duration, logger *slog.Logger) *AlertService {
	region = strings.TrimSpace(region)
	if region == "" {
		region = DefaultAlertRegion
	}
	return &AlertService{
		api:    api,
		cache:  c,
		region: region,
		ttl:    min(max(ttl, MinAlertTTL), MaxAlertTTL),
		logger: logger.With("component", "alerts"),
	}
}

func (s *AlertService) Region() string {
	return s.region
}

// Fetch returns the active alerts. An empty alert list is returned but not
// cached, so the next call asks upstream again.
func (s *AlertService) Fetch(ctx context.Context, region string) (json.RawMessage, error) {
	region = s.resolveRegion(region)
	key := cache.Key("alerts", region)

	var empty json.RawMessage
	data, err := s.cache.GetOrFetch(ctx, key, s.ttl, func(ctx context.Context) ([]byte, error) {
		alerts, err := s.api.Active(ctx)
		if err != nil {
			return nil, err
		}
		if isEmptyList(alerts) {
			empty = alerts
			return nil, errNoAlerts
		}
		s.logger.Info("fetched alerts", "region", region)
		return alerts, nil
	})
	if errors.Is(err, errNoAlerts) {
		s.logger.Info("no alerts found", "region", region)
		return empty, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch alerts for %s: %w", region, err)
	}
	return json.RawMessage(data), nil
}

// Clear drops the cached alerts and reports whether an entry existed.
func (s *AlertService) Clear(ctx context.Context, region string) (bool, error) {
	region = s.resolveRegion(region)

	existed, err := s.cache.Invalidate(ctx, cache.Key("alerts", region))
	if err != nil {
		return false, fmt.Errorf("clear alerts for %s: %w", region, err)
	}
	if existed {
		s.logger.Info("alerts cache cleared", "region", region)
	}
	return existed, nil
}

func (s *AlertService) resolveRegion(region string) string {
	if strings.EqualFold(strings.TrimSpace(region), s.region) {
		return s.region
	}
	s.logger.Warn("unsupported alert region, using default", "requested", region, "region", s.region)
	return s.region
}

func isEmptyList(data []byte) bool {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return true
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return false
	}
	return len(items) == 0
}
