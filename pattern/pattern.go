// Package pattern describes calibration target geometry and generates the
// canonical 3D reference points for each supported target.
package pattern

import (
	"fmt"
	"image"

	"github.com/golang/geo/r3"
)

// Kind is a calibration target geometry. The set of kinds is closed:
// Chessboard, CircleGrid and AsymmetricCircleGrid are the only implementations.
type Kind interface {
	// Code is the numeric value used in settings files.
	Code() int
	// String is the human readable name.
	String() string
	// Suffix is appended to a diagnostic image name before its extension.
	Suffix() string
	// point returns the reference coordinate for row i, column j.
	point(i, j int, g Geometry) r3.Vector
	// ordinal selects the Match case for the variant.
	ordinal() int
}

// Geometry holds the board dimensions needed to lay out reference points.
type Geometry struct {
	Rows           int
	Columns        int
	SquareSize     float64 // chessboard square edge
	CenterDistance float64 // circle grid center spacing
}

// Size returns the board size in the (columns, rows) order the detectors expect.
func (g Geometry) Size() image.Point {
	return image.Pt(g.Columns, g.Rows)
}

// Count is the number of reference points on the board.
func (g Geometry) Count() int {
	return g.Rows * g.Columns
}

// Chessboard uses inner chessboard corners.
type Chessboard struct{}

// CircleGrid uses a symmetric grid of circle centers.
type CircleGrid struct{}

// AsymmetricCircleGrid uses a staggered grid of circle centers.
type AsymmetricCircleGrid struct{}

func (Chessboard) Code() int      { return 0 }
func (Chessboard) ordinal() int   { return 0 }
func (Chessboard) String() string { return "CHESS_BOARD" }
func (Chessboard) Suffix() string { return "_corners" }
func (Chessboard) point(i, j int, g Geometry) r3.Vector {
	return r3.Vector{X: float64(j) * g.SquareSize, Y: float64(i) * g.SquareSize}
}

func (CircleGrid) Code() int      { return 1 }
func (CircleGrid) ordinal() int   { return 1 }
func (CircleGrid) String() string { return "CIRCLE_GRID" }
func (CircleGrid) Suffix() string { return "_centers" }
func (CircleGrid) point(i, j int, g Geometry) r3.Vector {
	return r3.Vector{X: float64(j) * g.CenterDistance, Y: float64(i) * g.CenterDistance}
}

func (AsymmetricCircleGrid) Code() int      { return 2 }
func (AsymmetricCircleGrid) ordinal() int   { return 2 }
func (AsymmetricCircleGrid) String() string { return "ASYMMETRIC_CIRCLE_GRID" }
func (AsymmetricCircleGrid) Suffix() string { return "_centers" }
func (AsymmetricCircleGrid) point(i, j int, g Geometry) r3.Vector {
	return r3.Vector{
		X: (2*float64(j) + 0.5*float64(i)) * g.CenterDistance,
		Y: float64(i) * g.CenterDistance,
	}
}

// Parse maps a settings code onto its Kind.
func Parse(code int) (Kind, error) {
	switch code {
	case 0:
		return Chessboard{}, nil
	case 1:
		return CircleGrid{}, nil
	case 2:
		return AsymmetricCircleGrid{}, nil
	}
	return nil, fmt.Errorf("unknown calibration pattern %d", code)
}

// Match calls the function for k's variant and returns its result. Every
// variant needs a case, so adding a Kind breaks all callers until handled.
func Match[T any](k Kind, chessboard, circleGrid, asymmetricCircleGrid func() T) T {
	cases := [...]func() T{chessboard, circleGrid, asymmetricCircleGrid}
	return cases[k.ordinal()]()
}

// ObjectPoints lays out Rows*Columns reference points on the z=0 plane in
// row-major order: row 0 first, columns increasing within a row.
func ObjectPoints(kind Kind, g Geometry) []r3.Vector {
	points := make([]r3.Vector, 0, g.Count())
	for i := 0; i < g.Rows; i++ {
		for j := 0; j < g.Columns; j++ {
			points = append(points, kind.point(i, j, g))
		}
	}
	return points
}
