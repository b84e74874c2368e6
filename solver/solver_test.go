package solver

import (
	"context"
	"image"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"camcalib/correspondence"
)

type fakeCalibrator struct {
	calls  int
	result *Result
	err    error
}

func (f *fakeCalibrator) Calibrate(_ context.Context, captures []correspondence.Capture, _ image.Point, _ int) (*Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &Result{
		Intrinsics: mat.NewDense(3, 3, []float64{800, 0, 320, 0, 800, 240, 0, 0, 1}),
		Extrinsics: make([]Extrinsic, len(captures)),
	}, nil
}

func captures(n int) []correspondence.Capture {
	out := make([]correspondence.Capture, n)
	for i := range out {
		out[i] = correspondence.Capture{
			Object: []r3.Vector{{}, {X: 1}},
			Image:  []r2.Point{{}, {X: 1}},
		}
	}
	return out
}

func TestSolveNoCorrespondences(t *testing.T) {
	fc := &fakeCalibrator{}
	_, err := Solve(context.Background(), fc, nil, image.Pt(640, 480), 0, 1)
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("got %v, want solver Error", err)
	}
	if se.Captures != 0 {
		t.Errorf("reported %d captures", se.Captures)
	}
	if fc.calls != 0 {
		t.Errorf("calibrator invoked %d times", fc.calls)
	}
}

func TestSolveBelowMinimum(t *testing.T) {
	fc := &fakeCalibrator{}
	_, err := Solve(context.Background(), fc, captures(2), image.Pt(640, 480), 0, 3)
	var se *Error
	if !errors.As(err, &se) || se.Captures != 2 {
		t.Fatalf("got %v, want solver Error with 2 captures", err)
	}
	if fc.calls != 0 {
		t.Error("calibrator invoked below minimum")
	}
}

func TestSolveWrapsCalibratorFailure(t *testing.T) {
	cause := errors.New("degenerate views")
	fc := &fakeCalibrator{err: cause}
	_, err := Solve(context.Background(), fc, captures(4), image.Pt(640, 480), 0, 3)
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("got %v, want solver Error", err)
	}
	if se.Captures != 4 || !errors.Is(err, cause) {
		t.Errorf("error %v lost context", err)
	}
}

func TestSolvePoseCountMismatch(t *testing.T) {
	fc := &fakeCalibrator{result: &Result{Extrinsics: make([]Extrinsic, 1)}}
	_, err := Solve(context.Background(), fc, captures(3), image.Pt(640, 480), 0, 3)
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("got %v, want solver Error", err)
	}
}

func TestSolveSuccess(t *testing.T) {
	fc := &fakeCalibrator{}
	res, err := Solve(context.Background(), fc, captures(3), image.Pt(640, 480), 8, 3)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(res.Extrinsics) != 3 {
		t.Errorf("got %d poses", len(res.Extrinsics))
	}
	if res.ImageSize != image.Pt(640, 480) || res.Flags != 8 {
		t.Errorf("result metadata = %v / %d", res.ImageSize, res.Flags)
	}
}

func TestNewDistortion(t *testing.T) {
	d, err := NewDistortion([]float64{0.1, -0.2})
	if err != nil {
		t.Fatal(err)
	}
	if d.K1 != 0.1 || d.K2 != -0.2 || d.P1 != 0 || d.K3 != 0 {
		t.Errorf("unexpected distortion %+v", d)
	}
	got := Distortion{K1: 1, K2: 2, P1: 3, P2: 4, K3: 5}.Coefficients()
	for i, v := range []float64{1, 2, 3, 4, 5} {
		if got[i] != v {
			t.Errorf("coefficient %d = %f, want %f", i, got[i], v)
		}
	}
	if _, err := NewDistortion(make([]float64, 8)); err == nil {
		t.Error("expected error for 8 coefficients")
	}
}
