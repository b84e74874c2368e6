package detection

import (
	"image"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"camcalib/pattern"
)

// DefaultChessboardFlags are the corner finder options used for every
// chessboard detection.
const DefaultChessboardFlags = gocv.CalibCBAdaptiveThresh | gocv.CalibCBNormalizeImage | gocv.CalibCBFastCheck

// Sub-pixel refinement parameters
var (
	refineWindow   = image.Pt(11, 11)
	refineZeroZone = image.Pt(-1, -1)
)

const (
	refineMaxIterations = 30
	refineEpsilon       = 0.0001
)

// ChessboardDetector finds inner chessboard corners with cv::findChessboardCorners.
type ChessboardDetector struct {
	Flags gocv.CalibCBFlag
}

// Name implements Detector.
func (ChessboardDetector) Name() string { return "chessboard" }

// Detect implements Detector.
func (d ChessboardDetector) Detect(img gocv.Mat, g pattern.Geometry) ([]r2.Point, bool, error) {
	if img.Empty() {
		return nil, false, errors.New("empty image")
	}
	corners := gocv.NewMat()
	defer corners.Close()

	found := gocv.FindChessboardCorners(img, g.Size(), &corners, d.Flags)
	return matPoints(corners), found, nil
}

// SectorDetector finds chessboard corners with the sector based
// cv::findChessboardCornersSB, which copes better with blur and noise.
type SectorDetector struct{}

// Name implements Detector.
func (SectorDetector) Name() string { return "chessboard-sb" }

// Detect implements Detector.
func (SectorDetector) Detect(img gocv.Mat, g pattern.Geometry) ([]r2.Point, bool, error) {
	if img.Empty() {
		return nil, false, errors.New("empty image")
	}
	corners := gocv.NewMat()
	defer corners.Close()

	found := gocv.FindChessboardCornersSB(img, g.Size(), &corners, gocv.CalibCBExhaustive|gocv.CalibCBAccuracy)
	return matPoints(corners), found, nil
}

// BlobGridDetector finds circle centers with a simple blob detector and
// orders them into the grid with Canonicalize.
type BlobGridDetector struct{}

// Name implements Detector.
func (*BlobGridDetector) Name() string { return "blob-grid" }

// Detect implements Detector.
func (*BlobGridDetector) Detect(img gocv.Mat, g pattern.Geometry) ([]r2.Point, bool, error) {
	if img.Empty() {
		return nil, false, errors.New("empty image")
	}
	blobs := gocv.NewSimpleBlobDetector()
	defer blobs.Close()

	keypoints := blobs.Detect(img)
	centers := make([]r2.Point, len(keypoints))
	for i, kp := range keypoints {
		centers[i] = r2.Point{X: kp.X, Y: kp.Y}
	}

	ordered, ok := Canonicalize(centers, g)
	if !ok {
		return centers, false, nil
	}
	return ordered, true, nil
}

// CornerRefiner refines chessboard corners with cv::cornerSubPix.
type CornerRefiner struct{}

// Refine implements Refiner.
func (CornerRefiner) Refine(gray gocv.Mat, points []r2.Point) ([]r2.Point, error) {
	if gray.Empty() {
		return nil, errors.New("empty image")
	}
	if gray.Channels() != 1 {
		return nil, errors.Errorf("refinement needs a single channel image, got %d channels", gray.Channels())
	}
	if len(points) == 0 {
		return nil, nil
	}

	corners := pointsMat(points)
	defer corners.Close()

	criteria := gocv.NewTermCriteria(gocv.Count|gocv.EPS, refineMaxIterations, refineEpsilon)
	gocv.CornerSubPix(gray, &corners, refineWindow, refineZeroZone, criteria)
	return matPoints(corners), nil
}

// matPoints reads an Nx1 two channel or Nx2 single channel float matrix.
func matPoints(m gocv.Mat) []r2.Point {
	if m.Empty() {
		return nil
	}
	if m.Channels() == 2 {
		n := m.Rows() * m.Cols()
		points := make([]r2.Point, 0, n)
		for i := 0; i < m.Rows(); i++ {
			for j := 0; j < m.Cols(); j++ {
				v := m.GetVecfAt(i, j)
				points = append(points, r2.Point{X: float64(v[0]), Y: float64(v[1])})
			}
		}
		return points
	}

	points := make([]r2.Point, m.Rows())
	for i := range points {
		points[i] = r2.Point{X: float64(m.GetFloatAt(i, 0)), Y: float64(m.GetFloatAt(i, 1))}
	}
	return points
}

// pointsMat packs points into an Nx2 CV_32F matrix. The caller closes it.
func pointsMat(points []r2.Point) gocv.Mat {
	m := gocv.NewMatWithSize(len(points), 2, gocv.MatTypeCV32F)
	for i, p := range points {
		m.SetFloatAt(i, 0, float32(p.X))
		m.SetFloatAt(i, 1, float32(p.Y))
	}
	return m
}
