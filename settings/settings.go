// Package settings loads and validates the calibration settings.
package settings

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"camcalib/pattern"
)

// InputType selects where calibration frames come from.
type InputType int

const (
	StillImages InputType = iota // image files in a directory
	VideoFiles                   // video files in a directory, sampled
	LiveStream                   // capture device or injected frame grabber
)

func (t InputType) String() string {
	switch t {
	case StillImages:
		return "STILL_IMAGES"
	case VideoFiles:
		return "VIDEO_FILES"
	case LiveStream:
		return "LIVE_STREAM"
	}
	return fmt.Sprintf("InputType(%d)", int(t))
}

// Solver flag bits, numerically identical to OpenCV's CALIB_* constants.
const (
	FlagFixAspectRatio     = 1 << 1
	FlagFixPrincipalPoint  = 1 << 2
	FlagZeroTangentialDist = 1 << 3
	FlagFixK1              = 1 << 5
	FlagFixK2              = 1 << 6
	FlagFixK3              = 1 << 7
	FlagFixK4              = 1 << 11
	FlagFixK5              = 1 << 12
)

const (
	minUnitLength             = 1e-3
	defaultMaxCaptureAttempts = 200
	defaultMinCaptures        = 3
)

// Settings is the validated, read-only description of a calibration run.
// Obtain one from Load or Build; the zero value is not valid.
type Settings struct {
	Board   pattern.Geometry
	Pattern pattern.Kind
	Input   InputType

	WriteExtrinsics    bool
	WriteFeaturePoints bool
	WriteGridPoints    bool
	ShowUndistorted    bool
	FlipHorizontal     bool
	ZeroTangentialDist bool
	FixPrincipalPoint  bool
	FixAspectRatio     bool
	FixK               [5]bool
	ImageFolder        string
	VideoFolder        string
	CaptureStorePath   string
	OutputPath         string
	FrameBudget        int
	CaptureDelay       time.Duration
	DeviceID           *int
	MaxCaptureAttempts int // consecutive live-capture failures tolerated, 0 = unbounded
	MinCaptures        int
	Verbose            bool
}

// File mirrors the on-disk settings keys.
type File struct {
	BoardWidth        int     `yaml:"BoardSize_Width"`
	BoardHeight       int     `yaml:"BoardSize_Height"`
	Pattern           int     `yaml:"Calibrate_Pattern"`
	SquareSize        float64 `yaml:"Square_Size"`
	CenterDistance    float64 `yaml:"Center_Distance"`
	Input             int     `yaml:"Input"`
	FlipHorizontal    bool    `yaml:"Input_FlipAroundHorizontalAxis"`
	DelayMillis       int     `yaml:"Input_Delay"`
	ImageFolder       string  `yaml:"Input_ImageFolder"`
	VideoFolder       string  `yaml:"Input_VideoFolder"`
	DeviceID          *int    `yaml:"Input_DeviceID"`
	MaxAttempts       *int    `yaml:"Input_MaxAttempts"`
	ShowUndistorted   bool    `yaml:"Show_UndistortedImage"`
	WriteFeatures     bool    `yaml:"Write_DetectedFeaturePoints"`
	WriteExtrinsics   bool    `yaml:"Write_extrinsicParameters"`
	WriteGrid         bool    `yaml:"Write_gridPoints"`
	CaptureStorePath  string  `yaml:"Write_capturedImagesPath"`
	OutputPath        string  `yaml:"Write_outputFileName"`
	ZeroTangent       bool    `yaml:"Calibrate_AssumeZeroTangentialDistortion"`
	FrameBudget       int     `yaml:"Calibrate_NrOfFrameToUse"`
	FixAspectRatio    bool    `yaml:"Calibrate_FixAspectRatio"`
	FixPrincipalPoint bool    `yaml:"Calibrate_FixPrincipalPointAtTheCenter"`
	MinCaptures       int     `yaml:"Calibrate_MinCaptures"`
	FixK1             bool    `yaml:"Fix_K1"`
	FixK2             bool    `yaml:"Fix_K2"`
	FixK3             bool    `yaml:"Fix_K3"`
	FixK4             bool    `yaml:"Fix_K4"`
	FixK5             bool    `yaml:"Fix_K5"`
	Verbose           bool    `yaml:"Verbose"`
}

// ConfigError lists every invalid setting found during validation.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "invalid settings: " + strings.Join(e.Problems, "; ")
}

// Load reads a YAML settings file and validates it.
func Load(path string) (*Settings, error) {
	f, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Build(*f)
}

// ReadFile parses a YAML settings file without validating it, so callers
// can apply overrides before Build.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading settings %s", path)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "parsing settings %s", path)
	}
	return &f, nil
}

// Build validates raw settings values and produces a Settings.
func Build(f File) (*Settings, error) {
	var problems []string
	addf := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if f.BoardWidth <= 0 || f.BoardHeight <= 0 {
		addf("board size %dx%d must be positive", f.BoardWidth, f.BoardHeight)
	}
	kind, err := pattern.Parse(f.Pattern)
	if err != nil {
		addf("%v", err)
	}
	if f.SquareSize <= minUnitLength {
		addf("square size %g must exceed %g", f.SquareSize, minUnitLength)
	}
	if kind != nil && usesCenterDistance(kind) && f.CenterDistance <= minUnitLength {
		addf("center distance %g must exceed %g", f.CenterDistance, minUnitLength)
	}

	input := InputType(f.Input)
	switch input {
	case StillImages:
		if f.ImageFolder == "" {
			addf("image folder is required for %s input", input)
		}
	case VideoFiles, LiveStream:
		if input == VideoFiles && f.VideoFolder == "" {
			addf("video folder is required for %s input", input)
		}
		if f.FrameBudget <= 0 {
			addf("frame count %d must be positive for %s input", f.FrameBudget, input)
		}
	default:
		addf("unknown input type %d", f.Input)
	}
	if f.DelayMillis < 0 {
		addf("capture delay %dms must not be negative", f.DelayMillis)
	}
	if f.MaxAttempts != nil && *f.MaxAttempts < 0 {
		addf("max capture attempts %d must not be negative", *f.MaxAttempts)
	}
	if f.MinCaptures < 0 {
		addf("minimum captures %d must not be negative", f.MinCaptures)
	}

	if len(problems) > 0 {
		return nil, &ConfigError{Problems: problems}
	}

	s := &Settings{
		Board: pattern.Geometry{
			Rows:           f.BoardHeight,
			Columns:        f.BoardWidth,
			SquareSize:     f.SquareSize,
			CenterDistance: f.CenterDistance,
		},
		Pattern:            kind,
		Input:              input,
		WriteExtrinsics:    f.WriteExtrinsics,
		WriteFeaturePoints: f.WriteFeatures,
		WriteGridPoints:    f.WriteGrid,
		ShowUndistorted:    f.ShowUndistorted,
		FlipHorizontal:     f.FlipHorizontal,
		ZeroTangentialDist: f.ZeroTangent,
		FixPrincipalPoint:  f.FixPrincipalPoint,
		FixAspectRatio:     f.FixAspectRatio,
		FixK:               [5]bool{f.FixK1, f.FixK2, f.FixK3, f.FixK4, f.FixK5},
		ImageFolder:        f.ImageFolder,
		VideoFolder:        f.VideoFolder,
		CaptureStorePath:   f.CaptureStorePath,
		OutputPath:         f.OutputPath,
		FrameBudget:        f.FrameBudget,
		CaptureDelay:       time.Duration(f.DelayMillis) * time.Millisecond,
		DeviceID:           f.DeviceID,
		MaxCaptureAttempts: defaultMaxCaptureAttempts,
		MinCaptures:        f.MinCaptures,
		Verbose:            f.Verbose,
	}
	if f.MaxAttempts != nil {
		s.MaxCaptureAttempts = *f.MaxAttempts
	}
	if s.MinCaptures == 0 {
		s.MinCaptures = defaultMinCaptures
	}
	return s, nil
}

func usesCenterDistance(k pattern.Kind) bool {
	no := func() bool { return false }
	yes := func() bool { return true }
	return pattern.Match(k, no, yes, yes)
}

// SolverFlags encodes the fixed/free parameter policy for the solver.
func (s *Settings) SolverFlags() int {
	flags := 0
	if s.FixAspectRatio {
		flags |= FlagFixAspectRatio
	}
	if s.FixPrincipalPoint {
		flags |= FlagFixPrincipalPoint
	}
	if s.ZeroTangentialDist {
		flags |= FlagZeroTangentialDist
	}
	for i, bit := range []int{FlagFixK1, FlagFixK2, FlagFixK3, FlagFixK4, FlagFixK5} {
		if s.FixK[i] {
			flags |= bit
		}
	}
	return flags
}
