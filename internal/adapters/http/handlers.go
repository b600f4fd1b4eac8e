package http

import (
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/vastmap/internal/core/domain"
	"github.com/samirrijal/vastmap/internal/pkg/geospatial"
	"github.com/samirrijal/vastmap/internal/pkg/metrics"
)

// VehiclesHandler returns the latest snapshot. Before the first refresh
// completes it serves an empty snapshot, never an error.
// Optional filters: ?type=tram and ?line=6.
func VehiclesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snapshot := deps.Snapshots.Read()

		typeFilter := c.Query("type")
		lineFilter := c.Query("line")
		if typeFilter == "" && lineFilter == "" {
			c.Set("Cache-Control", "no-store")
			return c.JSON(snapshot)
		}

		filtered := make([]domain.Vehicle, 0, len(snapshot.Vehicles))
		for _, v := range snapshot.Vehicles {
			if typeFilter != "" && string(v.Type) != typeFilter {
				continue
			}
			if lineFilter != "" && v.Line != lineFilter {
				continue
			}
			filtered = append(filtered, v)
		}

		c.Set("Cache-Control", "no-store")
		return c.JSON(domain.Snapshot{
			Vehicles:  filtered,
			FetchedAt: snapshot.FetchedAt,
			Count:     len(filtered),
		})
	}
}

// nearbyVehicle is a snapshot vehicle annotated with its distance from
// the query point.
type nearbyVehicle struct {
	domain.Vehicle
	DistanceM float64 `json:"distance_m"`
}

// NearbyVehiclesHandler returns vehicles within a radius of a point,
// nearest first.
func NearbyVehiclesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat := c.QueryFloat("lat", 0)
		lon := c.QueryFloat("lon", 0)
		radius := c.QueryFloat("radius", 1000)

		if lat == 0 || lon == 0 {
			return errBadRequest(c, "lat and lon are required")
		}
		if radius <= 0 || radius > 50000 {
			return errBadRequest(c, "radius must be between 1 and 50000 meters")
		}

		snapshot := deps.Snapshots.Read()
		nearby := make([]nearbyVehicle, 0)
		for _, v := range snapshot.Vehicles {
			d := geospatial.Haversine(lat, lon, v.Lat, v.Lon)
			if d <= radius {
				nearby = append(nearby, nearbyVehicle{Vehicle: v, DistanceM: d})
			}
		}

		sort.Slice(nearby, func(i, j int) bool {
			return nearby[i].DistanceM < nearby[j].DistanceM
		})

		c.Set("Cache-Control", "no-store")
		return c.JSON(fiber.Map{
			"vehicles":   nearby,
			"count":      len(nearby),
			"fetched_at": snapshot.FetchedAt,
		})
	}
}

// RoutesHandler returns the static route geometries. Optional ?line=6
// narrows to one line.
func RoutesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		line := c.Query("line")
		routes := deps.Routes
		if line != "" {
			filtered := make([]domain.RouteShape, 0, 4)
			for _, r := range routes {
				if r.Line == line {
					filtered = append(filtered, r)
				}
			}
			if len(filtered) == 0 {
				return errNotFound(c, "no route geometry for line "+line)
			}
			routes = filtered
		}

		// Geometries only change with a new GTFS extract.
		c.Set("Cache-Control", "public, max-age=86400")
		return c.JSON(fiber.Map{"routes": routes, "count": len(routes)})
	}
}

// WeatherHandler returns the current conditions for the serviced area.
func WeatherHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Weather == nil {
			return errServiceUnavailable(c, "weather not configured")
		}
		w, err := deps.Weather.Current(c.UserContext())
		if err != nil {
			return errServiceUnavailable(c, "weather upstream unavailable")
		}
		return c.JSON(w)
	}
}

// StatsHandler summarizes the current snapshot: totals per vehicle type,
// snapshot age, and service uptime.
func StatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snapshot := deps.Snapshots.Read()

		byType := map[domain.VehicleType]int{}
		realtime := 0
		for _, v := range snapshot.Vehicles {
			byType[v.Type]++
			if v.IsRealtime {
				realtime++
			}
		}

		var ageSeconds float64
		if !snapshot.FetchedAt.IsZero() {
			ageSeconds = time.Since(snapshot.FetchedAt).Seconds()
		}
		metrics.SnapshotAge.Set(ageSeconds)

		c.Set("Cache-Control", "no-store")
		return c.JSON(fiber.Map{
			"vehicles":             snapshot.Count,
			"by_type":              byType,
			"realtime":             realtime,
			"snapshot_age_seconds": ageSeconds,
			"routes":               len(deps.Routes),
			"uptime":               time.Since(deps.StartedAt).String(),
		})
	}
}
