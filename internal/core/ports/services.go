package ports

import (
	"context"

	"github.com/samirrijal/vastmap/internal/core/domain"
)

// SnapshotStore holds the latest published vehicle snapshot.
// Publish replaces the snapshot wholesale; Read never blocks on a fetch
// in progress and returns an empty snapshot before the first publish.
type SnapshotStore interface {
	Publish(s *domain.Snapshot)
	Read() *domain.Snapshot
}

// EventPublisher broadcasts domain events to a message broker.
type EventPublisher interface {
	PublishSnapshot(ctx context.Context, s *domain.Snapshot) error
	PublishWeather(ctx context.Context, w *domain.Weather) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
