package http

import (
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/vastmap/internal/adapters/valkey"
	"github.com/samirrijal/vastmap/internal/core/domain"
	"github.com/samirrijal/vastmap/internal/core/ports"
	"github.com/samirrijal/vastmap/internal/core/usecases"
)

// Dependencies holds everything the HTTP handlers need. NATS and Cache
// are optional; handlers degrade rather than fail when they are nil.
type Dependencies struct {
	Snapshots ports.SnapshotStore
	Weather   *usecases.WeatherService
	Routes    []domain.RouteShape
	NATS      *nats.Conn
	Cache     *valkey.Cache
	StartedAt time.Time
}
