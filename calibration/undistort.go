package calibration

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"camcalib/solver"
)

// UndistortedPath is where the undistorted copy of source goes in dir.
func UndistortedPath(dir, source string) string {
	base := filepath.Base(source)
	ext := filepath.Ext(base)
	return filepath.Join(dir, strings.TrimSuffix(base, ext)+"_undistorted"+ext)
}

// writeUndistorted stores an undistorted, labelled copy of every capture
// whose source image is on disk. Video frames have no file and are skipped.
func (s *Session) writeUndistorted(out *Outcome) []string {
	dir := s.settings.CaptureStorePath
	if dir == "" {
		s.logger.Warn("undistorted images need a capture store path, skipping")
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		s.logger.Warnf("cannot create %s: %v", dir, err)
		return nil
	}

	k := solver.IntrinsicsMat(out.Result.Intrinsics)
	defer k.Close()
	d := solver.DistortionMat(out.Result.Distortion)
	defer d.Close()

	var written []string
	for i, c := range out.Captures {
		if c.Source == "" {
			continue
		}
		if _, err := os.Stat(c.Source); err != nil {
			continue
		}
		path := UndistortedPath(dir, c.Source)
		if err := s.undistort(c.Source, path, k, d, out.Report.PerCapture[i]); err != nil {
			s.logger.Warnf("undistorting %s: %v", c.Source, err)
			continue
		}
		written = append(written, path)
	}
	s.logger.Infof("wrote %d undistorted images to %s", len(written), dir)
	return written
}

func (s *Session) undistort(src, dst string, k, d gocv.Mat, rms float64) error {
	img := gocv.IMRead(src, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		return errors.New("cannot decode")
	}
	if s.settings.FlipHorizontal {
		gocv.Flip(img, &img, 0)
	}

	fixed := gocv.NewMat()
	defer fixed.Close()
	gocv.Undistort(img, &fixed, k, d, k)
	s.renderer.DrawLabel(&fixed, 0, "reprojection error %.3f px", rms)

	if !gocv.IMWrite(dst, fixed) {
		return errors.Errorf("cannot write %s", dst)
	}
	return nil
}
