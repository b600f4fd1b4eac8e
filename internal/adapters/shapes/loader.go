// Package shapes loads the pre-extracted tram route geometries the map
// draws under the live vehicles. The file is produced offline by
// cmd/shapes from a GTFS feed and read once at startup; it never
// changes while the service runs.
package shapes

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/samirrijal/vastmap/internal/core/domain"
)

// fileEntry mirrors one value in the shapes file, which is keyed by
// "line_direction".
type fileEntry struct {
	Line      string      `json:"line"`
	Direction string      `json:"direction"`
	Color     string      `json:"color"`
	Coords    [][]float64 `json:"coords"`
}

// Load reads a shapes file and returns the routes sorted by line then
// direction, so responses are stable across restarts.
func Load(path string) ([]domain.RouteShape, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read shapes file: %w", err)
	}

	var entries map[string]fileEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse shapes file %s: %w", path, err)
	}

	routes := make([]domain.RouteShape, 0, len(entries))
	for _, e := range entries {
		if e.Line == "" || len(e.Coords) == 0 {
			continue
		}
		routes = append(routes, domain.RouteShape{
			Line:      e.Line,
			Direction: e.Direction,
			Color:     e.Color,
			Coords:    e.Coords,
		})
	}

	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Line != routes[j].Line {
			return routes[i].Line < routes[j].Line
		}
		return routes[i].Direction < routes[j].Direction
	})

	return routes, nil
}
