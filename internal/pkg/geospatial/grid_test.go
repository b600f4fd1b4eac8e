package geospatial_test

import (
	"math"
	"testing"

	"github.com/samirrijal/vastmap/internal/core/domain"
	"github.com/samirrijal/vastmap/internal/pkg/geospatial"
)

const tolerance = 1e-9

var gbg = domain.Bounds{MinLat: 57.55, MinLon: 11.70, MaxLat: 57.90, MaxLon: 12.25}

func TestCells_CountAndIndices(t *testing.T) {
	for _, n := range []int{1, 2, 4, 7} {
		cells := geospatial.Cells(gbg, n)
		if len(cells) != n*n {
			t.Fatalf("n=%d: expected %d cells, got %d", n, n*n, len(cells))
		}

		seen := make(map[[2]int]bool)
		for _, c := range cells {
			key := [2]int{c.Row, c.Col}
			if seen[key] {
				t.Errorf("n=%d: duplicate cell (%d,%d)", n, c.Row, c.Col)
			}
			seen[key] = true
		}
	}
}

func TestCells_ExactCoverage(t *testing.T) {
	for _, n := range []int{1, 3, 4} {
		cells := geospatial.Cells(gbg, n)

		for _, c := range cells {
			// Each cell spans exactly one grid step.
			wantLat := (gbg.MaxLat - gbg.MinLat) / float64(n)
			wantLon := (gbg.MaxLon - gbg.MinLon) / float64(n)
			if math.Abs((c.Bounds.MaxLat-c.Bounds.MinLat)-wantLat) > tolerance {
				t.Errorf("n=%d cell (%d,%d): lat span %f, want %f", n, c.Row, c.Col, c.Bounds.MaxLat-c.Bounds.MinLat, wantLat)
			}
			if math.Abs((c.Bounds.MaxLon-c.Bounds.MinLon)-wantLon) > tolerance {
				t.Errorf("n=%d cell (%d,%d): lon span %f, want %f", n, c.Row, c.Col, c.Bounds.MaxLon-c.Bounds.MinLon, wantLon)
			}
		}

		// Outer edges of the grid coincide with the bounding box.
		first := cells[0].Bounds
		last := cells[len(cells)-1].Bounds
		if math.Abs(first.MinLat-gbg.MinLat) > tolerance || math.Abs(first.MinLon-gbg.MinLon) > tolerance {
			t.Errorf("n=%d: grid does not start at bbox corner", n)
		}
		if math.Abs(last.MaxLat-gbg.MaxLat) > tolerance || math.Abs(last.MaxLon-gbg.MaxLon) > tolerance {
			t.Errorf("n=%d: grid does not end at bbox corner", n)
		}
	}
}

func TestCells_NoGapsNoOverlap(t *testing.T) {
	n := 4
	cells := geospatial.Cells(gbg, n)

	// Adjacent cells share edges exactly: cell (r,c) max equals (r+1,c) min.
	byIndex := make(map[[2]int]domain.GridCell)
	for _, c := range cells {
		byIndex[[2]int{c.Row, c.Col}] = c
	}

	for r := 0; r < n-1; r++ {
		for c := 0; c < n; c++ {
			lower := byIndex[[2]int{r, c}]
			upper := byIndex[[2]int{r + 1, c}]
			if math.Abs(lower.Bounds.MaxLat-upper.Bounds.MinLat) > tolerance {
				t.Errorf("lat seam between rows %d and %d at col %d", r, r+1, c)
			}
		}
	}
	for r := 0; r < n; r++ {
		for c := 0; c < n-1; c++ {
			west := byIndex[[2]int{r, c}]
			east := byIndex[[2]int{r, c + 1}]
			if math.Abs(west.Bounds.MaxLon-east.Bounds.MinLon) > tolerance {
				t.Errorf("lon seam between cols %d and %d at row %d", c, c+1, r)
			}
		}
	}
}

func TestCells_MinimumGrid(t *testing.T) {
	cells := geospatial.Cells(gbg, 0)
	if len(cells) != 1 {
		t.Fatalf("expected n<1 to behave as 1, got %d cells", len(cells))
	}
	if cells[0].Bounds != gbg {
		t.Errorf("single cell should equal the bounding box, got %+v", cells[0].Bounds)
	}
}

func TestHaversine_KnownDistance(t *testing.T) {
	// Brunnsparken to Centralstationen, roughly 500 m.
	d := geospatial.Haversine(57.7068, 11.9674, 57.7089, 11.9733)
	if d < 300 || d > 700 {
		t.Errorf("expected ~500m, got %f", d)
	}

	if d := geospatial.Haversine(57.7, 11.9, 57.7, 11.9); d != 0 {
		t.Errorf("zero distance expected, got %f", d)
	}
}
