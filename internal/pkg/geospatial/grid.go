package geospatial

import "github.com/samirrijal/vastmap/internal/core/domain"

// Cells divides a bounding box into an n×n grid of non-overlapping,
// jointly-exhaustive cells. The upstream positions API caps results per
// request, so the serviced area is queried cell by cell.
//
// Pure function: deterministic, no side effects. n < 1 is treated as 1.
func Cells(bbox domain.Bounds, n int) []domain.GridCell {
	if n < 1 {
		n = 1
	}

	latStep := (bbox.MaxLat - bbox.MinLat) / float64(n)
	lonStep := (bbox.MaxLon - bbox.MinLon) / float64(n)

	cells := make([]domain.GridCell, 0, n*n)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			cells = append(cells, domain.GridCell{
				Row: row,
				Col: col,
				Bounds: domain.Bounds{
					MinLat: bbox.MinLat + float64(row)*latStep,
					MinLon: bbox.MinLon + float64(col)*lonStep,
					MaxLat: bbox.MinLat + float64(row+1)*latStep,
					MaxLon: bbox.MinLon + float64(col+1)*lonStep,
				},
			})
		}
	}
	return cells
}
