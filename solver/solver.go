// Package solver runs the camera calibration solve over accumulated
// correspondences and holds its result.
package solver

import (
	"context"
	"fmt"
	"image"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"camcalib/correspondence"
)

// Distortion holds Brown-Conrady lens distortion coefficients.
type Distortion struct {
	K1 float64 `yaml:"k1"`
	K2 float64 `yaml:"k2"`
	P1 float64 `yaml:"p1"`
	P2 float64 `yaml:"p2"`
	K3 float64 `yaml:"k3"`
}

// Coefficients returns the coefficients in k1, k2, p1, p2, k3 order.
func (d Distortion) Coefficients() []float64 {
	return []float64{d.K1, d.K2, d.P1, d.P2, d.K3}
}

// NewDistortion builds a Distortion from up to five coefficients in
// k1, k2, p1, p2, k3 order; missing trailing values are zero.
func NewDistortion(coeffs []float64) (Distortion, error) {
	if len(coeffs) > 5 {
		return Distortion{}, errors.Errorf("expected at most 5 distortion coefficients, got %d", len(coeffs))
	}
	padded := make([]float64, 5)
	copy(padded, coeffs)
	return Distortion{K1: padded[0], K2: padded[1], P1: padded[2], P2: padded[3], K3: padded[4]}, nil
}

// Extrinsic is the pose of the target in one capture. Rotation is a
// Rodrigues vector.
type Extrinsic struct {
	Rotation    r3.Vector
	Translation r3.Vector
}

// Result is the outcome of a calibration solve. It is not modified after
// Solve returns.
type Result struct {
	Intrinsics *mat.Dense // 3x3 camera matrix
	Distortion Distortion
	Extrinsics []Extrinsic // one per capture, in capture order
	RMS        float64     // solver reported RMS reprojection error
	ImageSize  image.Point
	Flags      int
}

// Calibrator is the numerical calibration back end.
type Calibrator interface {
	Calibrate(ctx context.Context, captures []correspondence.Capture, imageSize image.Point, flags int) (*Result, error)
}

// Error reports a solve that could not be performed or did not converge.
type Error struct {
	Captures int
	Reason   string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("calibration failed with %d captures: %s", e.Captures, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Solve validates the correspondence set and hands it to the calibrator.
// The calibrator is not invoked when fewer than minCaptures captures exist.
func Solve(ctx context.Context, c Calibrator, captures []correspondence.Capture, imageSize image.Point, flags, minCaptures int) (*Result, error) {
	if minCaptures < 1 {
		minCaptures = 1
	}
	if len(captures) == 0 {
		return nil, &Error{Reason: "no correspondences"}
	}
	if len(captures) < minCaptures {
		return nil, &Error{
			Captures: len(captures),
			Reason:   fmt.Sprintf("at least %d captures are required", minCaptures),
		}
	}
	if imageSize.X <= 0 || imageSize.Y <= 0 {
		return nil, &Error{Captures: len(captures), Reason: fmt.Sprintf("invalid image size %v", imageSize)}
	}

	res, err := c.Calibrate(ctx, captures, imageSize, flags)
	if err != nil {
		var se *Error
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, &Error{Captures: len(captures), Reason: "solver error", Err: err}
	}
	if len(res.Extrinsics) != len(captures) {
		return nil, &Error{
			Captures: len(captures),
			Reason:   fmt.Sprintf("solver returned %d poses", len(res.Extrinsics)),
		}
	}
	res.ImageSize = imageSize
	res.Flags = flags
	return res, nil
}
