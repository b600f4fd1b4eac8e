package usecases

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/samirrijal/vastmap/internal/core/domain"
	"github.com/samirrijal/vastmap/internal/core/ports"
	"github.com/samirrijal/vastmap/internal/pkg/metrics"
)

const weatherCacheKey = "weather:current"

// WeatherService caches a single current-conditions value with a TTL.
// Deliberately much simpler than the vehicle pipeline: one value, one
// guard, fetch on demand, stale value on upstream failure.
type WeatherService struct {
	source    ports.WeatherSource
	cache     ports.CacheService   // optional, shared across processes
	publisher ports.EventPublisher // optional, feeds the ws weather channel
	ttl       time.Duration

	mu      sync.Mutex
	current *domain.Weather

	now func() time.Time
}

// NewWeatherService creates the weather lookup. cache and publisher may
// be nil.
func NewWeatherService(source ports.WeatherSource, cache ports.CacheService, publisher ports.EventPublisher, ttl time.Duration) *WeatherService {
	return &WeatherService{source: source, cache: cache, publisher: publisher, ttl: ttl, now: time.Now}
}

// Current returns the cached reading while fresh, otherwise fetches a
// new one. On upstream failure the stale reading is returned if one
// exists.
func (s *WeatherService) Current(ctx context.Context) (*domain.Weather, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.now().Sub(s.current.FetchedAt) < s.ttl {
		metrics.CacheHits.WithLabelValues("weather").Inc()
		return s.current, nil
	}

	// Valkey first: another process may have fetched recently.
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, weatherCacheKey); err == nil {
			var w domain.Weather
			if json.Unmarshal(data, &w) == nil && s.now().Sub(w.FetchedAt) < s.ttl {
				metrics.CacheHits.WithLabelValues("weather").Inc()
				s.current = &w
				return s.current, nil
			}
		}
	}
	metrics.CacheMisses.WithLabelValues("weather").Inc()

	w, err := s.source.Fetch(ctx)
	if err != nil {
		if s.current != nil {
			return s.current, nil // degraded: stale beats nothing
		}
		return nil, err
	}
	w.FetchedAt = s.now()
	s.current = w

	if s.cache != nil {
		if data, err := json.Marshal(w); err == nil {
			_ = s.cache.Set(ctx, weatherCacheKey, data, int(s.ttl.Seconds()))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishWeather(ctx, w); err != nil {
			slog.Debug("weather broadcast failed", "error", err)
		}
	}

	return s.current, nil
}
