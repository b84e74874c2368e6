// Package calibration runs a complete camera calibration: frames are pulled
// from a capture source, searched for the target pattern, accumulated into a
// correspondence set and handed to the solver, after which the reprojection
// error is measured and the results are written out.
package calibration

import (
	"context"
	"image"
	"strconv"
	"time"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"camcalib/capture"
	"camcalib/correspondence"
	"camcalib/detection"
	"camcalib/overlay"
	"camcalib/pattern"
	"camcalib/reprojection"
	"camcalib/settings"
	"camcalib/solver"
)

// FeatureExtractor finds the pattern in one frame.
type FeatureExtractor interface {
	Extract(img gocv.Mat, source string) (detection.Result, error)
}

// Deps are the collaborators of a Session. Nil fields are filled with the
// gocv backed defaults derived from the settings.
type Deps struct {
	Source         capture.Source
	CaptureOptions capture.Options // used only when Source is nil
	Extractor      FeatureExtractor
	Calibrator     solver.Calibrator
	Projector      reprojection.Projector
	Renderer       *overlay.Renderer
}

// Outcome summarizes a finished run.
type Outcome struct {
	RunID    string
	Result   *solver.Result
	Report   *reprojection.Report
	Captures []correspondence.Capture

	Frames   int // frames delivered by the source
	Misses   int // frames without the pattern
	Failures int // frames that could not be processed

	ResultPath  string   // result file, when written
	Undistorted []string // undistorted copies, when written
}

// Session is a single calibration run. It owns its capture source.
type Session struct {
	settings   *settings.Settings
	source     capture.Source
	extractor  FeatureExtractor
	calibrator solver.Calibrator
	projector  reprojection.Projector
	renderer   *overlay.Renderer
	objects    []r3.Vector
	runID      string
	now        func() time.Time
	logger     golog.Logger
}

// NewSession wires a run from validated settings.
func NewSession(s *settings.Settings, deps Deps, logger golog.Logger) (*Session, error) {
	if s == nil || s.Pattern == nil {
		return nil, errors.New("settings are required")
	}
	runID := uuid.New().String()
	logger = logger.With("run", runID)

	sess := &Session{
		settings:   s,
		source:     deps.Source,
		extractor:  deps.Extractor,
		calibrator: deps.Calibrator,
		projector:  deps.Projector,
		renderer:   deps.Renderer,
		objects:    pattern.ObjectPoints(s.Pattern, s.Board),
		runID:      runID,
		now:        time.Now,
		logger:     logger,
	}

	if sess.renderer == nil {
		sess.renderer = overlay.NewRenderer()
	}
	if sess.calibrator == nil {
		sess.calibrator = solver.GocvCalibrator{}
	}
	if sess.projector == nil {
		sess.projector = reprojection.PinholeProjector{}
	}
	if sess.extractor == nil {
		cfg := detection.Config{Kind: s.Pattern, Geometry: s.Board}
		if s.Verbose {
			cfg.Renderer = sess.renderer
		}
		e, err := detection.NewExtractor(cfg, logger.Named("detection"))
		if err != nil {
			return nil, err
		}
		sess.extractor = e
	}
	if sess.source == nil {
		src, err := capture.New(s, deps.CaptureOptions, logger.Named("capture"))
		if err != nil {
			return nil, err
		}
		sess.source = src
	}
	return sess, nil
}

// RunID identifies this run in logs and the result file.
func (s *Session) RunID() string { return s.runID }

// Run acquires frames until the source is exhausted, then solves and
// analyzes. The source is closed before Run returns.
func (s *Session) Run(ctx context.Context) (*Outcome, error) {
	defer func() {
		if err := s.source.Close(); err != nil {
			s.logger.Debugf("closing source: %v", err)
		}
	}()

	out := &Outcome{RunID: s.runID}
	acc := correspondence.NewAccumulator(s.settings.Board.Count())
	var imageSize image.Point

	s.logger.Infof("acquiring %s frames from %s", s.settings.Pattern, s.settings.Input)
	for {
		frame, err := s.source.Next(ctx)
		if errors.Is(err, capture.ErrExhausted) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "acquiring frames")
		}
		out.Frames++

		if err := s.process(frame, acc, &imageSize, out); err != nil {
			return nil, err
		}
	}

	acc.Freeze()
	out.Captures = acc.Captures()
	s.logger.Infof("%d frames: %d captures, %d without pattern, %d failed",
		out.Frames, len(out.Captures), out.Misses, out.Failures)

	res, err := solver.Solve(ctx, s.calibrator, out.Captures, imageSize, s.settings.SolverFlags(), s.settings.MinCaptures)
	if err != nil {
		return nil, err
	}
	out.Result = res

	report, err := reprojection.Analyze(out.Captures, res, s.projector)
	if err != nil {
		return nil, errors.Wrap(err, "analyzing reprojection error")
	}
	out.Report = report
	s.logger.Infof("calibrated %dx%d: solver RMS %.4f, reprojection RMS %.4f px",
		imageSize.X, imageSize.Y, res.RMS, report.Aggregate)
	for i, e := range report.PerCapture {
		s.logger.Debugf("capture %d (%s): %.4f px", i, out.Captures[i].Source, e)
	}

	if s.settings.OutputPath != "" {
		if err := WriteResult(s.settings.OutputPath, s.resultFile(out)); err != nil {
			return nil, err
		}
		out.ResultPath = s.settings.OutputPath
		s.logger.Infof("results written to %s", out.ResultPath)
	}

	if s.settings.ShowUndistorted {
		out.Undistorted = s.writeUndistorted(out)
	}
	return out, nil
}

// process runs one frame through flip, extraction and accumulation. Only
// structural errors are returned; per-frame problems are counted.
func (s *Session) process(frame capture.Frame, acc *correspondence.Accumulator, imageSize *image.Point, out *Outcome) error {
	defer frame.Close()

	img := frame.Image
	if s.settings.FlipHorizontal {
		flipped := gocv.NewMat()
		defer flipped.Close()
		gocv.Flip(img, &flipped, 0)
		img = flipped
	}

	size := image.Pt(img.Cols(), img.Rows())
	if *imageSize != (image.Point{}) && size != *imageSize {
		s.logger.Warnf("%s is %dx%d, expected %dx%d; skipping",
			describe(frame), size.X, size.Y, imageSize.X, imageSize.Y)
		out.Failures++
		return nil
	}

	res, err := s.extractor.Extract(img, frame.Path)
	if err != nil {
		s.logger.Warnf("%s: %v", describe(frame), err)
		out.Failures++
		return nil
	}
	if !res.Found {
		s.logger.Infof("no %s points found for %s", s.settings.Pattern, describe(frame))
		out.Misses++
		return nil
	}

	err = acc.Add(correspondence.Capture{Object: s.objects, Image: res.Points, Source: frame.Path})
	if err != nil {
		return errors.Wrapf(err, "adding %s", describe(frame))
	}
	if *imageSize == (image.Point{}) {
		*imageSize = size
	}
	return nil
}

func describe(f capture.Frame) string {
	if f.Path != "" {
		return f.Path
	}
	return "frame " + strconv.Itoa(f.Index)
}
