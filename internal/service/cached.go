package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/aniladanir/weather-service/internal/cache"
	"github.com/aniladanir/weather-service/internal/domain"
)

// CacheTTL configures memoization per lookup kind. A zero ttl disables caching of that kind.
type CacheTTL struct {
	Geocode  time.Duration
	Forecast time.Duration
}

func (t CacheTTL) Enabled() bool {
	return t.Geocode > 0 || t.Forecast > 0
}

type cachedWeatherService struct {
	next   WeatherService
	cache  cache.Cache
	ttl    CacheTTL
	logger *slog.Logger
}

// NewCachedWeatherService memoizes lookups of next in c. Cache failures are
// logged and the lookup falls through to next.
func NewCachedWeatherService(next WeatherService, c cache.Cache, ttl CacheTTL, logger *slog.Logger) WeatherService {
	return &cachedWeatherService{
		next:   next,
		cache:  c,
		ttl:    ttl,
		logger: logger,
	}
}

func geocodeKey(toponym string) string {
	return "geocode:" + strings.ToLower(strings.TrimSpace(toponym))
}

func forecastKey(lat, lon float64) string {
	return fmt.Sprintf("forecast:%.4f,%.4f", lat, lon)
}

func (s *cachedWeatherService) QueryToponym(ctx context.Context, toponym string) ([]domain.Location, error) {
	if s.ttl.Geocode <= 0 {
		return s.next.QueryToponym(ctx, toponym)
	}

	key := geocodeKey(toponym)
	if locations, ok := lookup[[]domain.Location](ctx, s, key); ok {
		return slices.Clone(locations), nil
	}

	locations, err := s.next.QueryToponym(ctx, toponym)
	if err != nil {
		return nil, err
	}
	// a place that is unknown today may be known tomorrow
	if len(locations) > 0 {
		s.store(ctx, key, slices.Clone(locations), s.ttl.Geocode)
	}
	return locations, nil
}

func (s *cachedWeatherService) Forecast(ctx context.Context, lat, lon float64) ([]domain.Forecast, error) {
	if s.ttl.Forecast <= 0 {
		return s.next.Forecast(ctx, lat, lon)
	}

	key := forecastKey(lat, lon)
	if forecasts, ok := lookup[[]domain.Forecast](ctx, s, key); ok {
		return slices.Clone(forecasts), nil
	}

	forecasts, err := s.next.Forecast(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, slices.Clone(forecasts), s.ttl.Forecast)
	return forecasts, nil
}

func (s *cachedWeatherService) store(ctx context.Context, key string, val any, ttl time.Duration) {
	if err := s.cache.Set(ctx, key, val, ttl); err != nil {
		s.logger.Error("failed to write cache", "key", key, "error", err.Error())
	}
}

// lookup reads key from the cache. Backends that serialize values hand back
// generic json shapes, those are converted to T through a json round trip.
func lookup[T any](ctx context.Context, s *cachedWeatherService, key string) (T, bool) {
	var zero T

	opt, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Error("failed to read cache", "key", key, "error", err.Error())
		return zero, false
	}
	val, ok := opt.Get()
	if !ok {
		return zero, false
	}

	if typed, ok := val.(T); ok {
		return typed, true
	}

	raw, err := json.Marshal(val)
	if err != nil {
		s.logger.Error("failed to convert cached value", "key", key, "error", err.Error())
		return zero, false
	}
	var typed T
	if err := json.Unmarshal(raw, &typed); err != nil {
		s.logger.Error("failed to convert cached value", "key", key, "error", err.Error())
		return zero, false
	}
	return typed, true
}
