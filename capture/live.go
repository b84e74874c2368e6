package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// FrameGrabber delivers live frames one at a time. ok is false when no frame
// was available; the returned Mat is then unallocated.
type FrameGrabber interface {
	NextFrame() (img gocv.Mat, ok bool)
	Close() error
}

// DeviceGrabber reads from a local capture device.
type DeviceGrabber struct {
	id int
	vc *gocv.VideoCapture
}

// NewDeviceGrabber opens capture device id.
func NewDeviceGrabber(id int) (*DeviceGrabber, error) {
	vc, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, &IOError{Op: "open device", Path: fmt.Sprint(id), Err: err}
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, &IOError{Op: "open device", Path: fmt.Sprint(id), Err: errors.New("device not opened")}
	}
	return &DeviceGrabber{id: id, vc: vc}, nil
}

// NextFrame implements FrameGrabber.
func (g *DeviceGrabber) NextFrame() (gocv.Mat, bool) {
	img := gocv.NewMat()
	if ok := g.vc.Read(&img); !ok || img.Empty() {
		img.Close()
		return gocv.Mat{}, false
	}
	return img, true
}

// Close implements FrameGrabber.
func (g *DeviceGrabber) Close() error {
	return g.vc.Close()
}

// Store persists captured live frames as capture_<n>.jpg.
type Store struct {
	dir string
}

// NewStore creates dir if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &IOError{Op: "create", Path: dir, Err: err}
	}
	return &Store{dir: dir}, nil
}

// Dir is the store location.
func (s *Store) Dir() string { return s.dir }

// Save writes img as frame n and returns its path.
func (s *Store) Save(img gocv.Mat, n int) (string, error) {
	path := filepath.Join(s.dir, fmt.Sprintf("capture_%d.jpg", n))
	if !gocv.IMWrite(path, img) {
		return "", errors.Errorf("cannot write %s", path)
	}
	return path, nil
}

// LiveConfig configures a LiveSource.
type LiveConfig struct {
	Grabber FrameGrabber
	Budget  int // successful frames to deliver

	// MaxAttempts is the number of consecutive failed grabs tolerated before
	// Next gives up with an IOError. Zero retries forever.
	MaxAttempts int
	Delay       time.Duration // wait between successful frames
	Store       *Store        // optional
}

// LiveSource delivers exactly Budget successful frames from a grabber.
// Failed grabs are retried and do not count against the budget.
type LiveSource struct {
	cfg      LiveConfig
	produced int
	logger   golog.Logger
}

// NewLiveSource takes ownership of cfg.Grabber.
func NewLiveSource(cfg LiveConfig, logger golog.Logger) (*LiveSource, error) {
	if cfg.Grabber == nil {
		return nil, errors.New("no frame grabber")
	}
	if cfg.Budget <= 0 {
		cfg.Grabber.Close()
		return nil, errors.Errorf("frame budget must be positive, got %d", cfg.Budget)
	}
	if cfg.MaxAttempts < 0 {
		cfg.Grabber.Close()
		return nil, errors.Errorf("max attempts must not be negative, got %d", cfg.MaxAttempts)
	}
	if cfg.MaxAttempts == 0 {
		logger.Warn("live capture retries are unbounded")
	}
	logger.Infof("capturing %d frames", cfg.Budget)
	return &LiveSource{cfg: cfg, logger: logger}, nil
}

// Next implements Source.
func (s *LiveSource) Next(ctx context.Context) (Frame, error) {
	if s.produced >= s.cfg.Budget {
		return Frame{}, ErrExhausted
	}
	if s.produced > 0 && s.cfg.Delay > 0 {
		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-time.After(s.cfg.Delay):
		}
	}

	for failures := 0; ; {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}

		img, ok := s.cfg.Grabber.NextFrame()
		if !ok || img.Empty() {
			if ok {
				img.Close()
			}
			failures++
			s.logger.Infof("frame %d wasn't captured, trying again (attempt %d)", s.produced, failures)
			if s.cfg.MaxAttempts > 0 && failures >= s.cfg.MaxAttempts {
				return Frame{}, &IOError{
					Op:   "grab",
					Path: fmt.Sprintf("frame %d", s.produced),
					Err:  errors.Errorf("%d consecutive failures", failures),
				}
			}
			continue
		}

		f := Frame{Image: img, Index: s.produced}
		s.produced++
		if s.cfg.Store != nil {
			path, err := s.cfg.Store.Save(img, f.Index)
			if err != nil {
				s.logger.Warnf("not storing frame %d: %v", f.Index, err)
			} else {
				f.Path = path
			}
		}
		return f, nil
	}
}

// Close implements Source. It releases the grabber.
func (s *LiveSource) Close() error {
	s.produced = s.cfg.Budget
	return s.cfg.Grabber.Close()
}
