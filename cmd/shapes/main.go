// Command shapes extracts tram route geometries from a GTFS feed and
// writes them to the JSON file the API serves at /v1/routes. Run it
// whenever Västtrafik publishes a new feed; the output is committed, so
// the API never needs the multi-hundred-megabyte GTFS zip at runtime.
//
// Usage:
//
//	shapes <gtfs.zip | https://...> [output.json]
package main

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// tramRouteTypes are the GTFS route_type values Västtrafik uses for
// trams: 0 is the standard code, 900 the extended European one.
var tramRouteTypes = map[int]bool{0: true, 900: true}

const fallbackTramColor = "#0074BF"

type routeShape struct {
	Line      string      `json:"line"`
	Direction string      `json:"direction"`
	Color     string      `json:"color"`
	Coords    [][]float64 `json:"coords"`
}

type tramRoute struct {
	line  string
	color string
}

type tripInfo struct {
	line     string
	headsign string
	shapeID  string
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: shapes <gtfs.zip | url> [output.json]")
		os.Exit(2)
	}
	source := os.Args[1]
	output := "tram_routes.json"
	if len(os.Args) > 2 {
		output = os.Args[2]
	}

	body, err := readSource(source)
	if err != nil {
		log.Fatalf("read GTFS: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		log.Fatalf("open zip: %v", err)
	}

	tramRoutes, err := loadTramRoutes(zr)
	if err != nil {
		log.Fatalf("routes.txt: %v", err)
	}
	log.Printf("tram routes: %d", len(tramRoutes))

	trips, keyRoute, err := loadTramTrips(zr, tramRoutes)
	if err != nil {
		log.Fatalf("trips.txt: %v", err)
	}
	log.Printf("tram trips: %d", len(trips))

	shapeIDs := selectShapes(trips)
	log.Printf("selected shapes: %d (one per line and direction)", len(shapeIDs))

	coords, err := loadShapePoints(zr, shapeIDs)
	if err != nil {
		log.Fatalf("shapes.txt: %v", err)
	}

	result := make(map[string]routeShape, len(shapeIDs))
	for key, shapeID := range shapeIDs {
		line, direction, _ := strings.Cut(key, "\x00")
		pts, ok := coords[shapeID]
		if !ok || len(pts) == 0 {
			log.Printf("WARNING: shape %s for %s towards %s has no points", shapeID, line, direction)
			continue
		}
		color := fallbackTramColor
		if r, ok := tramRoutes[keyRoute[key]]; ok && r.color != "" {
			color = r.color
		}
		result[line+"_"+direction] = routeShape{
			Line:      line,
			Direction: direction,
			Color:     color,
			Coords:    pts,
		}
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		log.Fatalf("write %s: %v", output, err)
	}
	log.Printf("wrote %d route geometries to %s", len(result), output)
}

func readSource(source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		log.Printf("downloading GTFS from %s", source)
		client := &http.Client{Timeout: 120 * time.Second}
		resp, err := client.Get(source)
		if err != nil {
			return nil, fmt.Errorf("download: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, source)
		}
		return io.ReadAll(resp.Body)
	}
	return os.ReadFile(source)
}

// loadTramRoutes returns route_id -> line metadata for tram routes only.
func loadTramRoutes(zr *zip.Reader) (map[string]tramRoute, error) {
	f, err := openCSV(zr, "routes.txt")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	header, err := reader.Read()
	if err != nil {
		return nil, err
	}
	cols := indexColumns(header)

	routes := make(map[string]tramRoute)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		routeType, _ := strconv.Atoi(getField(record, cols, "route_type"))
		if !tramRouteTypes[routeType] {
			continue
		}

		routeID := getField(record, cols, "route_id")
		line := getField(record, cols, "route_short_name")
		if line == "" {
			line = getField(record, cols, "route_long_name")
		}
		if routeID == "" || line == "" {
			continue
		}

		color := getField(record, cols, "route_color")
		if color != "" && !strings.HasPrefix(color, "#") {
			color = "#" + color
		}

		routes[routeID] = tramRoute{line: line, color: color}
	}
	return routes, nil
}

// loadTramTrips returns the trips belonging to tram routes, with their
// headsign and shape reference, plus a line+direction key to route_id
// index used for color lookup after shape selection.
func loadTramTrips(zr *zip.Reader, tramRoutes map[string]tramRoute) ([]tripInfo, map[string]string, error) {
	f, err := openCSV(zr, "trips.txt")
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	header, err := reader.Read()
	if err != nil {
		return nil, nil, err
	}
	cols := indexColumns(header)

	keyRoute := make(map[string]string)
	var trips []tripInfo
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		routeID := getField(record, cols, "route_id")
		route, ok := tramRoutes[routeID]
		if !ok {
			continue
		}

		shapeID := getField(record, cols, "shape_id")
		headsign := getField(record, cols, "trip_headsign")
		if shapeID == "" || headsign == "" {
			continue
		}

		keyRoute[route.line+"\x00"+headsign] = routeID

		trips = append(trips, tripInfo{line: route.line, headsign: headsign, shapeID: shapeID})
	}
	return trips, keyRoute, nil
}

// selectShapes picks, for each line and direction, the shape used by
// the most trips. Variant shapes (short workings, depot runs) lose to
// the full-length pattern that dominates the schedule.
func selectShapes(trips []tripInfo) map[string]string {
	counts := make(map[string]map[string]int)
	for _, t := range trips {
		key := t.line + "\x00" + t.headsign
		if counts[key] == nil {
			counts[key] = make(map[string]int)
		}
		counts[key][t.shapeID]++
	}

	selected := make(map[string]string, len(counts))
	for key, byShape := range counts {
		best, bestCount := "", -1
		for shapeID, n := range byShape {
			// Ties break on shape ID so reruns are deterministic.
			if n > bestCount || (n == bestCount && shapeID < best) {
				best, bestCount = shapeID, n
			}
		}
		selected[key] = best
	}
	return selected
}

// loadShapePoints reads shapes.txt and returns ordered [lat, lon]
// polylines for the wanted shape IDs only.
func loadShapePoints(zr *zip.Reader, wanted map[string]string) (map[string][][]float64, error) {
	want := make(map[string]bool, len(wanted))
	for _, id := range wanted {
		want[id] = true
	}

	f, err := openCSV(zr, "shapes.txt")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	header, err := reader.Read()
	if err != nil {
		return nil, err
	}
	cols := indexColumns(header)

	type point struct {
		seq      int
		lat, lon float64
	}
	points := make(map[string][]point)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		shapeID := getField(record, cols, "shape_id")
		if !want[shapeID] {
			continue
		}

		lat, _ := strconv.ParseFloat(getField(record, cols, "shape_pt_lat"), 64)
		lon, _ := strconv.ParseFloat(getField(record, cols, "shape_pt_lon"), 64)
		seq, _ := strconv.Atoi(getField(record, cols, "shape_pt_sequence"))
		if lat == 0 && lon == 0 {
			continue
		}

		points[shapeID] = append(points[shapeID], point{seq: seq, lat: lat, lon: lon})
	}

	coords := make(map[string][][]float64, len(points))
	for shapeID, pts := range points {
		sort.Slice(pts, func(i, j int) bool { return pts[i].seq < pts[j].seq })
		line := make([][]float64, len(pts))
		for i, p := range pts {
			line[i] = []float64{p.lat, p.lon}
		}
		coords[shapeID] = line
	}
	return coords, nil
}

// ---------------------------------------------------------------------------
// CSV helpers
// ---------------------------------------------------------------------------

func openCSV(zr *zip.Reader, name string) (io.ReadCloser, error) {
	for _, f := range zr.File {
		if strings.EqualFold(f.Name, name) {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("file %s not found in zip", name)
}

func indexColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		// Strip BOM from first column
		col = strings.TrimPrefix(col, "\xef\xbb\xbf")
		m[strings.TrimSpace(col)] = i
	}
	return m
}

func getField(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
