// Package correspondence accumulates matched 3D reference points and 2D image
// observations, one capture at a time.
package correspondence

import (
	"fmt"
	"sync"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ErrFrozen is returned by Add once the accumulator has been frozen.
var ErrFrozen = errors.New("correspondence set is frozen")

// Capture is one view of the calibration target.
type Capture struct {
	Object []r3.Vector // reference points on the target plane
	Image  []r2.Point  // observed image locations, same order as Object
	Source string      // where the frame came from, for diagnostics
}

// Len is the number of correspondences in the capture.
func (c Capture) Len() int {
	return len(c.Object)
}

// StructuralError reports a capture whose point sets violate the
// one-to-one correspondence contract.
type StructuralError struct {
	Source  string
	Objects int
	Images  int
	Want    int
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("capture %q: %d object points, %d image points, want %d of each",
		e.Source, e.Objects, e.Images, e.Want)
}

// Accumulator owns the correspondence set while frames are being acquired.
type Accumulator struct {
	mu       sync.RWMutex
	want     int
	captures []Capture
	frozen   bool
}

// NewAccumulator creates an accumulator expecting pointsPerCapture
// correspondences per capture. A zero count only enforces equal lengths.
func NewAccumulator(pointsPerCapture int) *Accumulator {
	return &Accumulator{want: pointsPerCapture}
}

// Add appends a capture. The accumulator is left unchanged on error.
func (a *Accumulator) Add(c Capture) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.frozen {
		return ErrFrozen
	}
	if len(c.Object) != len(c.Image) || (a.want > 0 && len(c.Object) != a.want) {
		want := a.want
		if want == 0 {
			want = len(c.Object)
		}
		return &StructuralError{Source: c.Source, Objects: len(c.Object), Images: len(c.Image), Want: want}
	}

	a.captures = append(a.captures, Capture{
		Object: append([]r3.Vector(nil), c.Object...),
		Image:  append([]r2.Point(nil), c.Image...),
		Source: c.Source,
	})
	return nil
}

// Freeze makes the accumulator read-only. It is safe to call more than once.
func (a *Accumulator) Freeze() {
	a.mu.Lock()
	a.frozen = true
	a.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (a *Accumulator) Frozen() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.frozen
}

// Len returns the number of captures.
func (a *Accumulator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.captures)
}

// At returns capture i. The returned slices must not be modified.
func (a *Accumulator) At(i int) Capture {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.captures[i]
}

// Captures returns the captures in acquisition order.
// The returned slices must not be modified.
func (a *Accumulator) Captures() []Capture {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]Capture(nil), a.captures...)
}
