// Package reprojection measures how well a calibrated camera model explains
// the observed pattern points.
package reprojection

import (
	"math"

	"github.com/pkg/errors"

	"camcalib/correspondence"
	"camcalib/solver"
)

// Report holds RMS reprojection errors in pixels.
type Report struct {
	PerCapture []float64 // one entry per capture, in capture order
	Aggregate  float64   // RMS over every point of every capture
}

// Analyze projects each capture's object points through the calibrated
// model and compares them with the observed image points.
//
// For capture i with n_i points, E_i is the L2 norm of the flattened
// observed-minus-projected difference. The per-capture error is
// sqrt(E_i²/n_i) and the aggregate is sqrt(ΣE_i² / Σn_i), so every point
// carries the same weight regardless of which capture it belongs to.
func Analyze(captures []correspondence.Capture, res *solver.Result, p Projector) (*Report, error) {
	if res == nil {
		return nil, errors.New("no calibration result")
	}
	if len(res.Extrinsics) != len(captures) {
		return nil, errors.Errorf("%d poses for %d captures", len(res.Extrinsics), len(captures))
	}

	report := &Report{PerCapture: make([]float64, len(captures))}
	var totalSq float64
	var totalPoints int

	for i, c := range captures {
		projected, err := p.Project(c.Object, res.Extrinsics[i], res.Intrinsics, res.Distortion)
		if err != nil {
			return nil, errors.Wrapf(err, "projecting capture %d", i)
		}
		if len(projected) != len(c.Image) {
			return nil, errors.Errorf("capture %d: projected %d points, observed %d", i, len(projected), len(c.Image))
		}

		var sq float64
		for j, obs := range c.Image {
			d := obs.Sub(projected[j])
			sq += d.X*d.X + d.Y*d.Y
		}
		n := len(c.Image)
		if n > 0 {
			report.PerCapture[i] = math.Sqrt(sq / float64(n))
		}
		totalSq += sq
		totalPoints += n
	}

	if totalPoints > 0 {
		report.Aggregate = math.Sqrt(totalSq / float64(totalPoints))
	}
	return report, nil
}
