package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/golang/geo/r2"
	"gocv.io/x/gocv"
)

// Renderer draws calibration diagnostics onto frames.
type Renderer struct {
	rowColors  []color.RGBA // cycled per board row
	missColor  color.RGBA   // partial detections
	labelColor color.RGBA
	residual   color.RGBA
	radius     int
	thickness  int
}

// NewRenderer creates a renderer with the default palette.
func NewRenderer() *Renderer {
	return &Renderer{
		rowColors: []color.RGBA{
			{255, 0, 0, 255},   // Target red
			{255, 128, 0, 255}, // Orange
			{255, 255, 0, 255}, // Bright yellow
			{0, 255, 0, 255},   // Bright military green
			{0, 150, 255, 255}, // System blue
			{255, 0, 255, 255}, // Bright magenta
		},
		missColor:  color.RGBA{0, 0, 255, 255},
		labelColor: color.RGBA{0, 255, 0, 255},
		residual:   color.RGBA{0, 191, 255, 255}, // Deep sky blue
		radius:     5,
		thickness:  2,
	}
}

// RowColor returns the color used for board row i.
func (r *Renderer) RowColor(i int) color.RGBA {
	if i < 0 {
		i = -i
	}
	return r.rowColors[i%len(r.rowColors)]
}

// DrawPattern marks detected pattern points on img. Points are row-major with
// columns points per row. A found pattern is drawn as a colored zig-zag
// joining consecutive points; a partial one as unconnected circles.
func (r *Renderer) DrawPattern(img *gocv.Mat, points []r2.Point, columns int, found bool) {
	if len(points) == 0 || columns <= 0 {
		return
	}

	if !found {
		for _, p := range points {
			gocv.Circle(img, toPixel(p), r.radius, r.missColor, 1)
		}
		return
	}

	for i, p := range points {
		c := r.RowColor(i / columns)
		center := toPixel(p)

		// Cross inside each marker
		gocv.Line(img, center.Add(image.Pt(-r.radius, -r.radius)), center.Add(image.Pt(r.radius, r.radius)), c, 1)
		gocv.Line(img, center.Add(image.Pt(-r.radius, r.radius)), center.Add(image.Pt(r.radius, -r.radius)), c, 1)
		gocv.Circle(img, center, r.radius, c, 1)

		if i > 0 {
			gocv.Line(img, toPixel(points[i-1]), center, c, 1)
		}
	}
}

// DrawResiduals connects each observed point to its reprojection.
func (r *Renderer) DrawResiduals(img *gocv.Mat, observed, projected []r2.Point) {
	n := len(observed)
	if len(projected) < n {
		n = len(projected)
	}
	for i := 0; i < n; i++ {
		o, p := toPixel(observed[i]), toPixel(projected[i])
		gocv.Line(img, o, p, r.residual, r.thickness)
		gocv.Circle(img, p, 2, r.residual, -1)
	}
}

// DrawLabel writes a status line in the top left corner.
func (r *Renderer) DrawLabel(img *gocv.Mat, line int, format string, args ...interface{}) {
	pos := image.Pt(10, 25+line*22)
	gocv.PutText(img, fmt.Sprintf(format, args...), pos, gocv.FontHersheySimplex, 0.6, r.labelColor, r.thickness)
}

func toPixel(p r2.Point) image.Point {
	return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
}
