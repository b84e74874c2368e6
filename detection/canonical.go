package detection

import (
	"sort"

	"github.com/golang/geo/r2"

	"camcalib/pattern"
)

// Canonicalize orders unordered grid points row-major: rows top to bottom,
// points left to right within a row. It expects exactly Rows*Columns points
// from a roughly upright board. ok is false when the count is wrong or the
// rows cannot be separated vertically.
func Canonicalize(points []r2.Point, g pattern.Geometry) (ordered []r2.Point, ok bool) {
	if g.Rows <= 0 || g.Columns <= 0 || len(points) != g.Count() {
		return nil, false
	}

	ordered = make([]r2.Point, len(points))
	copy(ordered, points)
	sort.SliceStable(ordered, func(a, b int) bool { return ordered[a].Y < ordered[b].Y })

	// Each row must sit entirely above the next: the vertical gap between two
	// rows has to exceed the spread inside either of them.
	for r := 0; r+1 < g.Rows; r++ {
		cur := ordered[r*g.Columns : (r+1)*g.Columns]
		next := ordered[(r+1)*g.Columns : (r+2)*g.Columns]
		gap := next[0].Y - cur[len(cur)-1].Y
		if gap <= spread(cur) || gap <= spread(next) {
			return nil, false
		}
	}

	for r := 0; r < g.Rows; r++ {
		row := ordered[r*g.Columns : (r+1)*g.Columns]
		sort.SliceStable(row, func(a, b int) bool { return row[a].X < row[b].X })
	}
	return ordered, true
}

// spread is the vertical extent of a row sorted by Y.
func spread(row []r2.Point) float64 {
	return row[len(row)-1].Y - row[0].Y
}
