// Package capture produces the raw frames a calibration run consumes. Each
// Source is a one-shot lazy sequence: once exhausted it stays exhausted.
package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"camcalib/settings"
)

// ErrExhausted is returned by Next once a source has no more frames.
var ErrExhausted = errors.New("capture source exhausted")

// IOError reports a source that cannot be used at all: a missing directory,
// an unopenable device or a live source that keeps failing.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Frame is one raw image. The receiver of a Frame owns Image and must Close it.
type Frame struct {
	Image gocv.Mat
	Path  string // file the frame came from or was stored as, may be empty
	Index int    // position in the source's sequence
}

// Close releases the frame's image.
func (f Frame) Close() error {
	return f.Image.Close()
}

// Source yields frames until ErrExhausted. ctx is checked on every
// iteration, including retries.
type Source interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// Options carries the collaborators a source variant may use. Nil fields
// fall back to the gocv implementations.
type Options struct {
	Decoder ImageDecoder
	Opener  VideoOpener
	Grabber FrameGrabber
}

type sourceCreator func(s *settings.Settings, opts Options, logger golog.Logger) (Source, error)

var creators = map[settings.InputType]sourceCreator{
	settings.StillImages: newImageSource,
	settings.VideoFiles:  newVideoSource,
	settings.LiveStream:  newLiveSource,
}

// New creates the source selected by the settings input type.
func New(s *settings.Settings, opts Options, logger golog.Logger) (Source, error) {
	create, ok := creators[s.Input]
	if !ok {
		return nil, errors.Errorf("unsupported input type: %s", s.Input)
	}
	return create(s, opts, logger.Named(s.Input.String()))
}

func newImageSource(s *settings.Settings, opts Options, logger golog.Logger) (Source, error) {
	decoder := opts.Decoder
	if decoder == nil {
		decoder = GocvDecoder{}
	}
	return NewImageDirSource(s.ImageFolder, decoder, logger)
}

func newVideoSource(s *settings.Settings, opts Options, logger golog.Logger) (Source, error) {
	opener := opts.Opener
	if opener == nil {
		opener = GocvVideoOpener{}
	}
	return NewVideoDirSource(s.VideoFolder, s.FrameBudget, opener, logger)
}

func newLiveSource(s *settings.Settings, opts Options, logger golog.Logger) (Source, error) {
	grabber := opts.Grabber
	if grabber == nil {
		id := 0
		if s.DeviceID != nil {
			id = *s.DeviceID
		} else {
			logger.Warn("device id not set, using device 0")
		}
		g, err := NewDeviceGrabber(id)
		if err != nil {
			return nil, err
		}
		grabber = g
	}

	var store *Store
	if s.CaptureStorePath != "" {
		var err error
		if store, err = NewStore(s.CaptureStorePath); err != nil {
			grabber.Close()
			return nil, err
		}
	}

	return NewLiveSource(LiveConfig{
		Grabber:     grabber,
		Budget:      s.FrameBudget,
		MaxAttempts: s.MaxCaptureAttempts,
		Delay:       s.CaptureDelay,
		Store:       store,
	}, logger)
}

// regularFiles lists the regular files in dir sorted by name. A path that
// is not a directory is an IOError.
func regularFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &IOError{Op: "open", Path: dir, Err: err}
	}
	if !info.IsDir() {
		return nil, &IOError{Op: "open", Path: dir, Err: errors.New("not a directory")}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &IOError{Op: "read", Path: dir, Err: err}
	}

	var files []string
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		fi, err := os.Stat(path)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		files = append(files, path)
	}
	return files, nil
}
