package capture

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Video is an open video stream positioned for sequential reads.
type Video interface {
	FrameCount() int
	Seek(index int) error
	// Read returns the next frame, or false when none could be decoded.
	Read() (gocv.Mat, bool)
	Close() error
}

// VideoOpener opens video files.
type VideoOpener interface {
	Open(path string) (Video, error)
}

// GocvVideoOpener opens files with cv::VideoCapture.
type GocvVideoOpener struct{}

// Open implements VideoOpener.
func (GocvVideoOpener) Open(path string) (Video, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, err
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, errors.Errorf("%q is not a video", path)
	}
	return &gocvVideo{vc: vc}, nil
}

type gocvVideo struct {
	vc *gocv.VideoCapture
}

func (v *gocvVideo) FrameCount() int {
	return int(v.vc.Get(gocv.VideoCaptureFrameCount))
}

func (v *gocvVideo) Seek(index int) error {
	v.vc.Set(gocv.VideoCapturePosFrames, float64(index))
	return nil
}

func (v *gocvVideo) Read() (gocv.Mat, bool) {
	img := gocv.NewMat()
	if ok := v.vc.Read(&img); !ok || img.Empty() {
		img.Close()
		return gocv.Mat{}, false
	}
	return img, true
}

func (v *gocvVideo) Close() error {
	return v.vc.Close()
}

// SeekIndex is where sampling starts in a video of total frames. budget
// consecutive frames are read from there.
func SeekIndex(total, budget int) int {
	return (total - 1) / budget
}

// VideoDirSource samples budget frames from every video in a directory.
// Unopenable files are skipped with a warning. A frame that fails to decode
// ends that file's contribution; the next file is tried.
type VideoDirSource struct {
	files   []string
	next    int
	budget  int
	opener  VideoOpener
	logger  golog.Logger
	emitted int

	cur     Video
	curPath string
	start   int // seek index in cur
	read    int // frames read from cur
}

// NewVideoDirSource lists dir up front. A missing directory is an IOError.
func NewVideoDirSource(dir string, budget int, opener VideoOpener, logger golog.Logger) (*VideoDirSource, error) {
	if budget <= 0 {
		return nil, errors.Errorf("frame budget must be positive, got %d", budget)
	}
	files, err := regularFiles(dir)
	if err != nil {
		return nil, err
	}
	logger.Debugf("%d files in %s", len(files), dir)
	return &VideoDirSource{files: files, budget: budget, opener: opener, logger: logger}, nil
}

// Next implements Source.
func (s *VideoDirSource) Next(ctx context.Context) (Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}

		if s.cur == nil {
			if s.next >= len(s.files) {
				return Frame{}, ErrExhausted
			}
			path := s.files[s.next]
			s.next++
			s.openVideo(path)
			continue
		}

		if s.read >= s.budget {
			s.closeCurrent()
			continue
		}

		img, ok := s.cur.Read()
		if !ok {
			s.logger.Warnf("frame %d of %s is invalid, skipping the rest of the file", s.start+s.read, s.curPath)
			s.closeCurrent()
			continue
		}
		f := Frame{Image: img, Path: framePath(s.curPath, s.start+s.read), Index: s.emitted}
		s.read++
		s.emitted++
		return f, nil
	}
}

// openVideo makes path the current video, or logs why it cannot be used.
func (s *VideoDirSource) openVideo(path string) {
	v, err := s.opener.Open(path)
	if err != nil {
		s.logger.Warnf("%s is not a valid video file: %v", path, err)
		return
	}

	total := v.FrameCount()
	if total <= 0 {
		s.logger.Warnf("%s reports no frames", path)
		v.Close()
		return
	}
	idx := SeekIndex(total, s.budget)
	if err := v.Seek(idx); err != nil {
		s.logger.Warnf("cannot seek %s to frame %d: %v", path, idx, err)
		v.Close()
		return
	}
	s.logger.Debugf("%s: %d frames, reading %d from %d", path, total, s.budget, idx)
	s.cur, s.curPath, s.start, s.read = v, path, idx, 0
}

func (s *VideoDirSource) closeCurrent() {
	if s.cur != nil {
		if err := s.cur.Close(); err != nil {
			s.logger.Debugf("closing %s: %v", s.curPath, err)
		}
	}
	s.cur, s.curPath = nil, ""
}

// Close implements Source.
func (s *VideoDirSource) Close() error {
	s.closeCurrent()
	s.next = len(s.files)
	return nil
}

// framePath names a video frame for diagnostics: "dir/clip.mp4" frame 12
// becomes "dir/clip_000012.jpg".
func framePath(video string, index int) string {
	base := strings.TrimSuffix(video, filepath.Ext(video))
	return fmt.Sprintf("%s_%06d.jpg", base, index)
}
