package overlay

import (
	"image"
	"testing"

	"github.com/golang/geo/r2"
	"gocv.io/x/gocv"
)

func TestRowColorCycles(t *testing.T) {
	r := NewRenderer()
	n := len(r.rowColors)
	for i := 0; i < 2*n; i++ {
		if r.RowColor(i) != r.RowColor(i+n) {
			t.Errorf("row %d and %d differ", i, i+n)
		}
	}
	if r.RowColor(0) == r.RowColor(1) {
		t.Error("adjacent rows share a color")
	}
}

func TestToPixelRounds(t *testing.T) {
	tests := []struct {
		in   r2.Point
		want image.Point
	}{
		{r2.Point{X: 1.4, Y: 1.6}, image.Pt(1, 2)},
		{r2.Point{X: 10.5, Y: -0.5}, image.Pt(11, -1)},
		{r2.Point{}, image.Pt(0, 0)},
	}
	for _, tt := range tests {
		if got := toPixel(tt.in); got != tt.want {
			t.Errorf("toPixel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDrawPatternMarksImage(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 60, 60, gocv.MatTypeCV8UC3)
	defer img.Close()

	points := []r2.Point{{X: 10, Y: 10}, {X: 30, Y: 10}, {X: 10, Y: 30}, {X: 30, Y: 30}}
	NewRenderer().DrawPattern(&img, points, 2, true)

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	if gocv.CountNonZero(gray) == 0 {
		t.Fatal("nothing was drawn")
	}
}

func TestDrawPatternIgnoresEmptyInput(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 20, 20, gocv.MatTypeCV8UC3)
	defer img.Close()

	r := NewRenderer()
	r.DrawPattern(&img, nil, 3, true)
	r.DrawPattern(&img, []r2.Point{{X: 5, Y: 5}}, 0, true)

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	if n := gocv.CountNonZero(gray); n != 0 {
		t.Fatalf("%d pixels drawn for empty input", n)
	}
}
