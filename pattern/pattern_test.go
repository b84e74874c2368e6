package pattern

import (
	"testing"

	"github.com/golang/geo/r3"
)

func TestObjectPointsFormulas(t *testing.T) {
	g := Geometry{Rows: 3, Columns: 4, SquareSize: 25, CenterDistance: 15}

	tests := []struct {
		kind Kind
		want func(i, j int) r3.Vector
	}{
		{Chessboard{}, func(i, j int) r3.Vector {
			return r3.Vector{X: float64(j) * 25, Y: float64(i) * 25}
		}},
		{CircleGrid{}, func(i, j int) r3.Vector {
			return r3.Vector{X: float64(j) * 15, Y: float64(i) * 15}
		}},
		{AsymmetricCircleGrid{}, func(i, j int) r3.Vector {
			return r3.Vector{X: (2*float64(j) + 0.5*float64(i)) * 15, Y: float64(i) * 15}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			points := ObjectPoints(tt.kind, g)
			if len(points) != g.Rows*g.Columns {
				t.Fatalf("got %d points, want %d", len(points), g.Rows*g.Columns)
			}
			for i := 0; i < g.Rows; i++ {
				for j := 0; j < g.Columns; j++ {
					got := points[i*g.Columns+j]
					want := tt.want(i, j)
					if got != want {
						t.Errorf("point(%d,%d) = %v, want %v", i, j, got, want)
					}
					if got.Z != 0 {
						t.Errorf("point(%d,%d) has z=%f", i, j, got.Z)
					}
				}
			}
		})
	}
}

func TestObjectPointsCountAcrossSizes(t *testing.T) {
	for rows := 1; rows <= 6; rows++ {
		for cols := 1; cols <= 6; cols++ {
			g := Geometry{Rows: rows, Columns: cols, SquareSize: 1, CenterDistance: 1}
			for _, kind := range []Kind{Chessboard{}, CircleGrid{}, AsymmetricCircleGrid{}} {
				if n := len(ObjectPoints(kind, g)); n != rows*cols {
					t.Errorf("%s %dx%d: got %d points", kind, rows, cols, n)
				}
			}
		}
	}
}

func TestParse(t *testing.T) {
	for code, want := range []Kind{Chessboard{}, CircleGrid{}, AsymmetricCircleGrid{}} {
		got, err := Parse(code)
		if err != nil {
			t.Fatalf("Parse(%d): %v", code, err)
		}
		if got != want || got.Code() != code {
			t.Errorf("Parse(%d) = %v, want %v", code, got, want)
		}
	}
	for _, code := range []int{-1, 3, 42} {
		if _, err := Parse(code); err == nil {
			t.Errorf("Parse(%d) succeeded, want error", code)
		}
	}
}

func TestSuffix(t *testing.T) {
	if s := (Chessboard{}).Suffix(); s != "_corners" {
		t.Errorf("chessboard suffix = %q", s)
	}
	if s := (CircleGrid{}).Suffix(); s != "_centers" {
		t.Errorf("circle grid suffix = %q", s)
	}
	if s := (AsymmetricCircleGrid{}).Suffix(); s != "_centers" {
		t.Errorf("asymmetric circle grid suffix = %q", s)
	}
}

func TestMatch(t *testing.T) {
	name := func(k Kind) string {
		return Match(k,
			func() string { return "chess" },
			func() string { return "circles" },
			func() string { return "asymmetric" },
		)
	}
	if got := name(Chessboard{}); got != "chess" {
		t.Errorf("chessboard matched %q", got)
	}
	if got := name(CircleGrid{}); got != "circles" {
		t.Errorf("circle grid matched %q", got)
	}
	if got := name(AsymmetricCircleGrid{}); got != "asymmetric" {
		t.Errorf("asymmetric grid matched %q", got)
	}
}
