package ports

import (
	"context"

	"github.com/samirrijal/vastmap/internal/core/domain"
)

// TokenSource provides a currently valid upstream bearer token.
// Implementations refresh lazily and may return a previously issued
// token when a refresh fails; an error means no token has ever been
// obtained.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// PositionSource fetches raw vehicle positions for one grid cell.
// FetchCell never returns an error: a cell that cannot be fetched after
// bounded retries yields an empty slice so one bad cell cannot abort a
// refresh cycle.
type PositionSource interface {
	FetchCell(ctx context.Context, cell domain.GridCell) []domain.RawVehicle
}

// WeatherSource fetches current conditions from an external weather API.
type WeatherSource interface {
	Fetch(ctx context.Context) (*domain.Weather, error)
}
