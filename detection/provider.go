// Package detection locates calibration pattern features in frames. The
// actual detection and sub-pixel refinement are delegated to collaborators,
// normally backed by OpenCV through gocv.
package detection

import (
	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"camcalib/pattern"
)

// Detector finds the pattern in an image. Points are returned in row-major
// order. found is false when the full pattern is not visible; a partial
// point set may still be returned for diagnostics.
type Detector interface {
	Detect(img gocv.Mat, g pattern.Geometry) (points []r2.Point, found bool, err error)
	Name() string
}

// Refiner improves the accuracy of detected points using the grayscale image.
type Refiner interface {
	Refine(gray gocv.Mat, points []r2.Point) ([]r2.Point, error)
}

// Fallback tries each detector in order and keeps the first that finds the
// full pattern.
type Fallback struct {
	detectors []Detector
	logger    golog.Logger
}

// NewFallback chains detectors. At least one is required.
func NewFallback(logger golog.Logger, detectors ...Detector) (*Fallback, error) {
	if len(detectors) == 0 {
		return nil, errors.New("no detectors configured")
	}
	return &Fallback{detectors: detectors, logger: logger}, nil
}

// Name implements Detector.
func (f *Fallback) Name() string {
	return f.detectors[0].Name()
}

// Detect implements Detector. The partial result of the first detector is
// kept when no detector succeeds.
func (f *Fallback) Detect(img gocv.Mat, g pattern.Geometry) ([]r2.Point, bool, error) {
	var partial []r2.Point
	for i, d := range f.detectors {
		points, found, err := d.Detect(img, g)
		if err != nil {
			return nil, false, errors.Wrapf(err, "%s detector", d.Name())
		}
		if found {
			if i > 0 {
				f.logger.Debugf("%s missed, %s found the pattern", f.detectors[0].Name(), d.Name())
			}
			return points, true, nil
		}
		if i == 0 {
			partial = points
		}
	}
	return partial, false, nil
}

// NewDetector returns the gocv detector chain for a pattern kind. Chessboards
// try the classic corner finder first and then the sector based one; circle
// grids use blob detection.
func NewDetector(kind pattern.Kind, logger golog.Logger) Detector {
	return pattern.Match(kind,
		func() Detector {
			f, _ := NewFallback(logger, ChessboardDetector{Flags: DefaultChessboardFlags}, SectorDetector{})
			return f
		},
		func() Detector { return &BlobGridDetector{} },
		func() Detector { return &BlobGridDetector{} },
	)
}

// NewRefiner returns the refiner for a pattern kind, or nil when the kind
// needs none. Circle centers are already sub-pixel.
func NewRefiner(kind pattern.Kind) Refiner {
	return pattern.Match(kind,
		func() Refiner { return CornerRefiner{} },
		func() Refiner { return nil },
		func() Refiner { return nil },
	)
}
