package solver

import (
	"context"
	"image"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"

	"camcalib/correspondence"
)

// GocvCalibrator calibrates with OpenCV's calibrateCamera.
type GocvCalibrator struct{}

// Calibrate implements Calibrator.
func (GocvCalibrator) Calibrate(ctx context.Context, captures []correspondence.Capture, imageSize image.Point, flags int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	objectPoints := make([][]gocv.Point3f, len(captures))
	imagePoints := make([][]gocv.Point2f, len(captures))
	for i, c := range captures {
		objectPoints[i] = make([]gocv.Point3f, len(c.Object))
		for j, p := range c.Object {
			objectPoints[i][j] = gocv.Point3f{X: float32(p.X), Y: float32(p.Y), Z: float32(p.Z)}
		}
		imagePoints[i] = make([]gocv.Point2f, len(c.Image))
		for j, p := range c.Image {
			imagePoints[i][j] = gocv.Point2f{X: float32(p.X), Y: float32(p.Y)}
		}
	}

	objVec := gocv.NewPoints3fVectorFromPoints(objectPoints)
	defer objVec.Close()
	imgVec := gocv.NewPoints2fVectorFromPoints(imagePoints)
	defer imgVec.Close()

	cameraMatrix := gocv.NewMat()
	defer cameraMatrix.Close()
	distCoeffs := gocv.NewMat()
	defer distCoeffs.Close()
	rvecs := gocv.NewMat()
	defer rvecs.Close()
	tvecs := gocv.NewMat()
	defer tvecs.Close()

	rms := gocv.CalibrateCamera(objVec, imgVec, imageSize, &cameraMatrix, &distCoeffs, &rvecs, &tvecs, gocv.CalibFlag(flags))
	if cameraMatrix.Empty() || rvecs.Rows() != len(captures) || tvecs.Rows() != len(captures) {
		return nil, errors.Errorf("calibrateCamera produced no solution (rms %f)", rms)
	}

	intrinsics := mat.NewDense(3, 3, nil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			intrinsics.Set(r, c, cameraMatrix.GetDoubleAt(r, c))
		}
	}

	coeffs, err := distCoeffs.DataPtrFloat64()
	if err != nil {
		return nil, errors.Wrap(err, "reading distortion coefficients")
	}
	if len(coeffs) > 5 {
		coeffs = coeffs[:5]
	}
	dist, err := NewDistortion(coeffs)
	if err != nil {
		return nil, err
	}

	extrinsics := make([]Extrinsic, len(captures))
	for i := range captures {
		rv := rvecs.GetVecdAt(i, 0)
		tv := tvecs.GetVecdAt(i, 0)
		extrinsics[i] = Extrinsic{
			Rotation:    r3.Vector{X: rv[0], Y: rv[1], Z: rv[2]},
			Translation: r3.Vector{X: tv[0], Y: tv[1], Z: tv[2]},
		}
	}

	return &Result{
		Intrinsics: intrinsics,
		Distortion: dist,
		Extrinsics: extrinsics,
		RMS:        rms,
	}, nil
}

// IntrinsicsMat copies a 3x3 camera matrix into a CV_64F Mat. The caller
// closes the returned Mat.
func IntrinsicsMat(k mat.Matrix) gocv.Mat {
	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.SetDoubleAt(r, c, k.At(r, c))
		}
	}
	return m
}

// DistortionMat copies distortion coefficients into a 1x5 CV_64F Mat. The
// caller closes the returned Mat.
func DistortionMat(d Distortion) gocv.Mat {
	m := gocv.NewMatWithSize(1, 5, gocv.MatTypeCV64F)
	for i, v := range d.Coefficients() {
		m.SetDoubleAt(0, i, v)
	}
	return m
}
