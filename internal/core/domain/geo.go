package domain

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// GridCell is one sub-rectangle of a bounding box, identified by its
// (row, col) position in the grid. Cells are recomputed every fetch
// cycle and carry no persisted identity.
type GridCell struct {
	Row    int
	Col    int
	Bounds Bounds
}
