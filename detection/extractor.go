package detection

import (
	"path/filepath"
	"strings"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"camcalib/overlay"
	"camcalib/pattern"
)

// Result is the outcome of one extraction. A missing pattern is reported
// through Found, not as an error. The point count is not checked here; the
// correspondence accumulator rejects a short set.
type Result struct {
	Found  bool
	Points []r2.Point // row-major

	// DiagnosticPath is the annotated image written for this frame, if any.
	DiagnosticPath string
}

// Config wires an Extractor. Detector and Refiner default to the gocv
// implementations for Kind. A nil Renderer disables annotated output.
type Config struct {
	Kind     pattern.Kind
	Geometry pattern.Geometry
	Detector Detector
	Refiner  Refiner
	Renderer *overlay.Renderer
}

// Extractor runs detection and refinement on frames and optionally writes
// annotated copies beside the source image.
type Extractor struct {
	kind     pattern.Kind
	geometry pattern.Geometry
	detector Detector
	refiner  Refiner
	renderer *overlay.Renderer
	logger   golog.Logger
}

// NewExtractor creates an extractor for one pattern.
func NewExtractor(cfg Config, logger golog.Logger) (*Extractor, error) {
	if cfg.Kind == nil {
		return nil, errors.New("pattern kind is required")
	}
	if cfg.Geometry.Count() <= 0 {
		return nil, errors.Errorf("invalid board size %dx%d", cfg.Geometry.Columns, cfg.Geometry.Rows)
	}
	e := &Extractor{
		kind:     cfg.Kind,
		geometry: cfg.Geometry,
		detector: cfg.Detector,
		refiner:  cfg.Refiner,
		renderer: cfg.Renderer,
		logger:   logger,
	}
	if e.detector == nil {
		e.detector = NewDetector(cfg.Kind, logger)
	}
	if e.refiner == nil {
		e.refiner = NewRefiner(cfg.Kind)
	}
	return e, nil
}

// Extract looks for the pattern in img. source names the image on disk and
// decides where the annotated copy goes; it may be empty.
func (e *Extractor) Extract(img gocv.Mat, source string) (Result, error) {
	if img.Empty() {
		return Result{}, errors.Errorf("empty frame %q", source)
	}

	points, found, err := e.detector.Detect(img, e.geometry)
	if err != nil {
		return Result{}, errors.Wrapf(err, "detecting %s in %q", e.kind, source)
	}

	if found {
		if e.refiner != nil {
			if points, err = e.refine(img, points); err != nil {
				return Result{}, errors.Wrapf(err, "refining %q", source)
			}
		}
	} else {
		e.logger.Debugf("no %s in %q (%d partial points)", e.kind, source, len(points))
	}

	res := Result{Found: found, Points: points}
	if e.renderer != nil && source != "" {
		res.DiagnosticPath = e.annotate(img, source, points, found)
	}
	return res, nil
}

func (e *Extractor) refine(img gocv.Mat, points []r2.Point) ([]r2.Point, error) {
	gray := Grayscale(img)
	defer gray.Close()

	refined, err := e.refiner.Refine(gray, points)
	if err != nil {
		return nil, err
	}
	if len(refined) != len(points) {
		return nil, errors.Errorf("refiner returned %d points for %d", len(refined), len(points))
	}
	return refined, nil
}

// annotate writes the diagnostic copy and returns its path, or "" when the
// write failed.
func (e *Extractor) annotate(img gocv.Mat, source string, points []r2.Point, found bool) string {
	annotated := img.Clone()
	defer annotated.Close()

	e.renderer.DrawPattern(&annotated, points, e.geometry.Columns, found)

	path := DiagnosticPath(source, e.kind.Suffix())
	if !gocv.IMWrite(path, annotated) {
		e.logger.Warnf("could not write diagnostic image %q", path)
		return ""
	}
	e.logger.Debugf("wrote %s", path)
	return path
}

// DiagnosticPath inserts suffix between the base name and the extension:
// "dir/img.png" with "_corners" becomes "dir/img_corners.png".
func DiagnosticPath(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}

// Grayscale returns a single channel copy of img. The caller closes it.
func Grayscale(img gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	switch img.Channels() {
	case 3:
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(img, &gray, gocv.ColorBGRAToGray)
	default:
		img.CopyTo(&gray)
	}
	return gray
}
