package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/vastmap/internal/core/domain"
	"github.com/samirrijal/vastmap/internal/core/ports"
	"github.com/samirrijal/vastmap/internal/pkg/geospatial"
	"github.com/samirrijal/vastmap/internal/pkg/metrics"
)

// snapshotCacheKey is the cross-process mirror key in Valkey. The TTL is
// short: a mirror older than a few cycles is worthless.
const (
	snapshotCacheKey = "vehicles:snapshot"
	snapshotCacheTTL = 10 // seconds
)

// AggregatorService runs one full refresh cycle: token check, grid
// fetch under bounded concurrency, dedup, normalize, publish.
type AggregatorService struct {
	tokens    ports.TokenSource
	positions ports.PositionSource
	store     ports.SnapshotStore
	publisher ports.EventPublisher // optional, best-effort broadcast
	cache     ports.CacheService   // optional, cross-process mirror

	bbox     domain.Bounds
	gridSize int
	workers  int

	tracer trace.Tracer
}

// NewAggregatorService creates the orchestrator. publisher and cache may
// be nil; both are degraded collaborators, never required for a cycle.
func NewAggregatorService(
	tokens ports.TokenSource,
	positions ports.PositionSource,
	store ports.SnapshotStore,
	publisher ports.EventPublisher,
	cache ports.CacheService,
	bbox domain.Bounds,
	gridSize, workers int,
) *AggregatorService {
	if gridSize < 1 {
		gridSize = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &AggregatorService{
		tokens:    tokens,
		positions: positions,
		store:     store,
		publisher: publisher,
		cache:     cache,
		bbox:      bbox,
		gridSize:  gridSize,
		workers:   workers,
		tracer:    otel.Tracer("vastmap/aggregator"),
	}
}

// Refresh executes one cycle and publishes the resulting snapshot.
// Individual cell failures contribute zero records and never abort the
// cycle; a token failure aborts without publishing, preserving the
// prior snapshot.
func (s *AggregatorService) Refresh(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "refresh")
	defer span.End()

	start := time.Now()

	// Gate on a usable token before fanning out.
	if _, err := s.tokens.Token(ctx); err != nil {
		metrics.RefreshCycles.WithLabelValues("auth_failure").Inc()
		return fmt.Errorf("refresh: %w", err)
	}

	cells := geospatial.Cells(s.bbox, s.gridSize)

	var (
		mu  sync.Mutex
		raw []domain.RawVehicle
	)
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.workers)

	for _, cell := range cells {
		wg.Add(1)
		go func(cell domain.GridCell) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			records := s.positions.FetchCell(ctx, cell)
			if len(records) == 0 {
				return
			}
			mu.Lock()
			raw = append(raw, records...)
			mu.Unlock()
		}(cell)
	}
	wg.Wait()

	vehicles := Normalize(Dedupe(raw))

	snapshot := &domain.Snapshot{
		Vehicles:  vehicles,
		FetchedAt: time.Now(),
		Count:     len(vehicles),
	}
	s.store.Publish(snapshot)

	metrics.RefreshCycles.WithLabelValues("ok").Inc()
	metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	metrics.VehiclesPublished.Set(float64(snapshot.Count))

	s.broadcast(ctx, snapshot)
	return nil
}

// broadcast mirrors the snapshot to NATS and Valkey, best effort.
func (s *AggregatorService) broadcast(ctx context.Context, snapshot *domain.Snapshot) {
	if s.publisher != nil {
		if err := s.publisher.PublishSnapshot(ctx, snapshot); err != nil {
			slog.Debug("snapshot broadcast failed", "error", err)
		}
	}
	if s.cache != nil {
		if data, err := json.Marshal(snapshot); err == nil {
			_ = s.cache.Set(ctx, snapshotCacheKey, data, snapshotCacheTTL)
		}
	}
}

// Dedupe keeps one record per detailsReference, first seen wins. A
// vehicle near a cell boundary legitimately appears in two adjacent
// cells, so the tie-break is arbitrary. Records without a reference are
// all kept; they get a synthesized id during normalization instead.
func Dedupe(records []domain.RawVehicle) []domain.RawVehicle {
	seen := make(map[string]bool, len(records))
	out := records[:0:0]
	for _, r := range records {
		ref := r.DetailsReference
		if ref != "" {
			if seen[ref] {
				continue
			}
			seen[ref] = true
		}
		out = append(out, r)
	}
	return out
}

// Normalize maps raw upstream records into the public vehicle schema.
// Records missing coordinates or a line name are dropped silently: the
// upstream commonly omits these for out-of-service vehicles, and a
// per-record log line at this volume would drown everything else.
func Normalize(records []domain.RawVehicle) []domain.Vehicle {
	vehicles := make([]domain.Vehicle, 0, len(records))
	for _, r := range records {
		if r.Latitude == nil || r.Longitude == nil || r.Line.Name == "" {
			continue
		}

		lat := round6(*r.Latitude)
		lon := round6(*r.Longitude)

		vtype := domain.TypeForMode(r.Line.TransportMode)

		color := r.Line.BackgroundColor
		if color == "" {
			color = domain.FallbackColor(vtype)
		}
		fgColor := r.Line.ForegroundColor
		if fgColor == "" {
			fgColor = domain.DefaultForegroundColor
		}

		destination := r.DirectionDetails.ShortDirection
		if destination == "" {
			destination = r.Direction
		}

		id := r.DetailsReference
		if id == "" {
			id = fmt.Sprintf("%s_%v_%v", r.Line.Name, lat, lon)
		}

		vehicles = append(vehicles, domain.Vehicle{
			ID:          id,
			Lat:         lat,
			Lon:         lon,
			Line:        r.Line.Name,
			Type:        vtype,
			Color:       color,
			FgColor:     fgColor,
			Destination: destination,
			IsRealtime:  r.Line.IsRealtimeJourney,
		})
	}
	return vehicles
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
