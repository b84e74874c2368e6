package calibration

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"camcalib/pattern"
	"camcalib/settings"
	"camcalib/solver"
)

// ResultFile is the persisted form of a calibration run.
type ResultFile struct {
	RunID           string   `yaml:"run_id"`
	CalibrationTime string   `yaml:"calibration_time"`
	Frames          int      `yaml:"nr_of_frames"`
	ImageWidth      int      `yaml:"image_width"`
	ImageHeight     int      `yaml:"image_height"`
	BoardWidth      int      `yaml:"board_width"`
	BoardHeight     int      `yaml:"board_height"`
	Pattern         string   `yaml:"pattern"`
	SquareSize      float64  `yaml:"square_size"`
	Flags           int      `yaml:"flags"`
	FlagNames       []string `yaml:"flag_names,omitempty,flow"`

	CameraMatrix   [][]float64       `yaml:"camera_matrix"`
	Distortion     solver.Distortion `yaml:"distortion_coefficients"`
	SolverRMS      float64           `yaml:"solver_rms"`
	AvgReprojError float64           `yaml:"avg_reprojection_error"`
	PerViewErrors  []float64         `yaml:"per_view_reprojection_errors,flow"`

	Extrinsics  []ExtrinsicEntry `yaml:"extrinsic_parameters,omitempty"`
	ImagePoints [][][2]float64   `yaml:"image_points,omitempty"`
	GridPoints  [][3]float64     `yaml:"grid_points,omitempty"`
}

// ExtrinsicEntry is the target pose for one capture.
type ExtrinsicEntry struct {
	Source      string     `yaml:"source,omitempty"`
	Rotation    [3]float64 `yaml:"rotation,flow"`
	Translation [3]float64 `yaml:"translation,flow"`
}

func (s *Session) resultFile(out *Outcome) *ResultFile {
	cfg := s.settings
	res := out.Result

	squareSize := func() float64 { return cfg.Board.SquareSize }
	centerDistance := func() float64 { return cfg.Board.CenterDistance }
	unit := pattern.Match(cfg.Pattern, squareSize, centerDistance, centerDistance)

	f := &ResultFile{
		RunID:           out.RunID,
		CalibrationTime: s.now().Format(time.RFC1123),
		Frames:          len(out.Captures),
		ImageWidth:      res.ImageSize.X,
		ImageHeight:     res.ImageSize.Y,
		BoardWidth:      cfg.Board.Columns,
		BoardHeight:     cfg.Board.Rows,
		Pattern:         cfg.Pattern.String(),
		SquareSize:      unit,
		Flags:           res.Flags,
		FlagNames:       FlagNames(res.Flags),
		Distortion:      res.Distortion,
		SolverRMS:       res.RMS,
		AvgReprojError:  out.Report.Aggregate,
		PerViewErrors:   out.Report.PerCapture,
	}

	for r := 0; r < 3; r++ {
		row := make([]float64, 3)
		for c := range row {
			row[c] = res.Intrinsics.At(r, c)
		}
		f.CameraMatrix = append(f.CameraMatrix, row)
	}

	if cfg.WriteExtrinsics {
		for i, e := range res.Extrinsics {
			f.Extrinsics = append(f.Extrinsics, ExtrinsicEntry{
				Source:      out.Captures[i].Source,
				Rotation:    [3]float64{e.Rotation.X, e.Rotation.Y, e.Rotation.Z},
				Translation: [3]float64{e.Translation.X, e.Translation.Y, e.Translation.Z},
			})
		}
	}
	if cfg.WriteFeaturePoints {
		for _, c := range out.Captures {
			points := make([][2]float64, len(c.Image))
			for i, p := range c.Image {
				points[i] = [2]float64{p.X, p.Y}
			}
			f.ImagePoints = append(f.ImagePoints, points)
		}
	}
	if cfg.WriteGridPoints {
		for _, p := range s.objects {
			f.GridPoints = append(f.GridPoints, [3]float64{p.X, p.Y, p.Z})
		}
	}
	return f
}

// WriteResult stores f as YAML at path, creating parent directories.
func WriteResult(path string, f *ResultFile) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return errors.Wrap(err, "encoding result")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "creating %s", dir)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

// ReadResult loads a result file written by WriteResult.
func ReadResult(path string) (*ResultFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	var f ResultFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return &f, nil
}

// FlagNames describes solver flags for humans.
func FlagNames(flags int) []string {
	names := []struct {
		bit  int
		name string
	}{
		{settings.FlagFixAspectRatio, "fix_aspect_ratio"},
		{settings.FlagFixPrincipalPoint, "fix_principal_point"},
		{settings.FlagZeroTangentialDist, "zero_tangent_dist"},
		{settings.FlagFixK1, "fix_k1"},
		{settings.FlagFixK2, "fix_k2"},
		{settings.FlagFixK3, "fix_k3"},
		{settings.FlagFixK4, "fix_k4"},
		{settings.FlagFixK5, "fix_k5"},
	}
	var out []string
	for _, n := range names {
		if flags&n.bit != 0 {
			out = append(out, n.name)
		}
	}
	return out
}
