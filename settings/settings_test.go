package settings

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"camcalib/pattern"
)

func validFile() File {
	return File{
		BoardWidth:  9,
		BoardHeight: 6,
		Pattern:     0,
		SquareSize:  25,
		Input:       int(StillImages),
		ImageFolder: "/data/images",
	}
}

func TestBuildValid(t *testing.T) {
	s, err := Build(validFile())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if s.Board.Rows != 6 || s.Board.Columns != 9 {
		t.Errorf("board = %dx%d, want 6 rows x 9 columns", s.Board.Rows, s.Board.Columns)
	}
	if s.Pattern != (pattern.Chessboard{}) {
		t.Errorf("pattern = %v", s.Pattern)
	}
	if s.MaxCaptureAttempts != defaultMaxCaptureAttempts {
		t.Errorf("max attempts = %d, want default %d", s.MaxCaptureAttempts, defaultMaxCaptureAttempts)
	}
	if s.MinCaptures != defaultMinCaptures {
		t.Errorf("min captures = %d, want default %d", s.MinCaptures, defaultMinCaptures)
	}
}

func TestBuildRejectsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *File)
		want   string
	}{
		{"zero width", func(f *File) { f.BoardWidth = 0 }, "board size"},
		{"negative height", func(f *File) { f.BoardHeight = -2 }, "board size"},
		{"unknown pattern", func(f *File) { f.Pattern = 7 }, "pattern"},
		{"tiny square", func(f *File) { f.SquareSize = 1e-4 }, "square size"},
		{"unknown input", func(f *File) { f.Input = 5 }, "input type"},
		{"missing image folder", func(f *File) { f.ImageFolder = "" }, "image folder"},
		{"circle grid without spacing", func(f *File) { f.Pattern = 1 }, "center distance"},
		{"video without budget", func(f *File) {
			f.Input = int(VideoFiles)
			f.VideoFolder = "/data/video"
		}, "frame count"},
		{"video without folder", func(f *File) {
			f.Input = int(VideoFiles)
			f.FrameBudget = 10
		}, "video folder"},
		{"live without budget", func(f *File) { f.Input = int(LiveStream) }, "frame count"},
		{"negative delay", func(f *File) { f.DelayMillis = -1 }, "capture delay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validFile()
			tt.mutate(&f)
			s, err := Build(f)
			if err == nil {
				t.Fatalf("Build succeeded with %+v", s)
			}
			if s != nil {
				t.Errorf("Build returned settings alongside error")
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("error %v is not a ConfigError", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestBuildCollectsAllProblems(t *testing.T) {
	f := validFile()
	f.BoardWidth = 0
	f.SquareSize = 0
	f.Pattern = 9
	_, err := Build(f)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if len(cfgErr.Problems) != 3 {
		t.Errorf("got %d problems (%v), want 3", len(cfgErr.Problems), cfgErr.Problems)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "calib.yaml")
	content := `
BoardSize_Width: 7
BoardSize_Height: 5
Calibrate_Pattern: 2
Square_Size: 20
Center_Distance: 12.5
Input: 2
Input_Delay: 150
Input_DeviceID: 1
Input_MaxAttempts: 0
Calibrate_NrOfFrameToUse: 15
Calibrate_FixAspectRatio: true
Calibrate_AssumeZeroTangentialDistortion: true
Fix_K3: true
Write_capturedImagesPath: /tmp/captures
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Pattern != (pattern.AsymmetricCircleGrid{}) {
		t.Errorf("pattern = %v", s.Pattern)
	}
	if s.Input != LiveStream {
		t.Errorf("input = %v", s.Input)
	}
	if s.CaptureDelay != 150*time.Millisecond {
		t.Errorf("delay = %v", s.CaptureDelay)
	}
	if s.DeviceID == nil || *s.DeviceID != 1 {
		t.Errorf("device id = %v", s.DeviceID)
	}
	if s.MaxCaptureAttempts != 0 {
		t.Errorf("explicit unbounded retries lost: %d", s.MaxCaptureAttempts)
	}
	if s.FrameBudget != 15 {
		t.Errorf("frame budget = %d", s.FrameBudget)
	}
	want := FlagFixAspectRatio | FlagZeroTangentialDist | FlagFixK3
	if got := s.SolverFlags(); got != want {
		t.Errorf("solver flags = %d, want %d", got, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestReadFileThenOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "live.yml")
	content := `BoardSize_Width: 9
BoardSize_Height: 6
Calibrate_Pattern: 0
Square_Size: 25
Input: 2
Calibrate_NrOfFrameToUse: 0
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if _, err := Build(*f); err == nil {
		t.Fatal("expected zero frame budget to be rejected")
	}

	f.FrameBudget = 10
	f.Verbose = true
	id := 2
	f.DeviceID = &id
	s, err := Build(*f)
	if err != nil {
		t.Fatalf("Build after override: %v", err)
	}
	if !s.Verbose || s.DeviceID == nil || *s.DeviceID != 2 || s.FrameBudget != 10 {
		t.Errorf("overrides not applied: verbose=%v device=%v budget=%d", s.Verbose, s.DeviceID, s.FrameBudget)
	}
}

func TestSolverFlags(t *testing.T) {
	s := &Settings{
		FixPrincipalPoint: true,
		FixK:              [5]bool{true, true, false, true, true},
	}
	want := FlagFixPrincipalPoint | FlagFixK1 | FlagFixK2 | FlagFixK4 | FlagFixK5
	if got := s.SolverFlags(); got != want {
		t.Errorf("solver flags = %d, want %d", got, want)
	}
	if (&Settings{}).SolverFlags() != 0 {
		t.Error("default settings should leave every parameter free")
	}
}
