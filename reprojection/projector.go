package reprojection

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"camcalib/solver"
)

// Projector maps target-frame 3D points into image coordinates through a
// camera model.
type Projector interface {
	Project(points []r3.Vector, pose solver.Extrinsic, intrinsics mat.Matrix, dist solver.Distortion) ([]r2.Point, error)
}

// PinholeProjector is a pinhole camera with Brown-Conrady distortion, the
// same model OpenCV's projectPoints uses for five coefficients.
type PinholeProjector struct{}

// Project implements Projector.
func (PinholeProjector) Project(points []r3.Vector, pose solver.Extrinsic, intrinsics mat.Matrix, dist solver.Distortion) ([]r2.Point, error) {
	if r, c := intrinsics.Dims(); r != 3 || c != 3 {
		return nil, errors.Errorf("intrinsics must be 3x3, got %dx%d", r, c)
	}
	rot := Rodrigues(pose.Rotation)

	out := make([]r2.Point, len(points))
	world := mat.NewVecDense(3, nil)
	var cam, pix mat.VecDense
	for i, p := range points {
		world.SetVec(0, p.X)
		world.SetVec(1, p.Y)
		world.SetVec(2, p.Z)
		cam.MulVec(rot, world)

		z := cam.AtVec(2) + pose.Translation.Z
		if z == 0 {
			return nil, errors.Errorf("point %d lies on the camera plane", i)
		}
		x := (cam.AtVec(0) + pose.Translation.X) / z
		y := (cam.AtVec(1) + pose.Translation.Y) / z

		xd, yd := distort(x, y, dist)
		pix.MulVec(intrinsics, mat.NewVecDense(3, []float64{xd, yd, 1}))
		out[i] = r2.Point{X: pix.AtVec(0) / pix.AtVec(2), Y: pix.AtVec(1) / pix.AtVec(2)}
	}
	return out, nil
}

// distort applies the forward Brown-Conrady model to normalized coordinates.
//
//	x_d = x(1 + k1 r² + k2 r⁴ + k3 r⁶) + 2 p1 x y + p2 (r² + 2x²)
//	y_d = y(1 + k1 r² + k2 r⁴ + k3 r⁶) + p1 (r² + 2y²) + 2 p2 x y
func distort(x, y float64, d solver.Distortion) (float64, float64) {
	rr := x*x + y*y
	radial := 1 + d.K1*rr + d.K2*rr*rr + d.K3*rr*rr*rr
	xd := x*radial + 2*d.P1*x*y + d.P2*(rr+2*x*x)
	yd := y*radial + d.P1*(rr+2*y*y) + 2*d.P2*x*y
	return xd, yd
}

// Rodrigues converts an axis-angle rotation vector into a rotation matrix.
func Rodrigues(r r3.Vector) *mat.Dense {
	theta := r.Norm()
	if theta < 1e-12 {
		return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	}
	k := r.Mul(1 / theta)
	c, s := math.Cos(theta), math.Sin(theta)
	t := 1 - c
	return mat.NewDense(3, 3, []float64{
		c + k.X*k.X*t, k.X*k.Y*t - k.Z*s, k.X*k.Z*t + k.Y*s,
		k.Y*k.X*t + k.Z*s, c + k.Y*k.Y*t, k.Y*k.Z*t - k.X*s,
		k.Z*k.X*t - k.Y*s, k.Z*k.Y*t + k.X*s, c + k.Z*k.Z*t,
	})
}
