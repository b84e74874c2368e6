package capture

import (
	"context"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ImageDecoder reads an image file.
type ImageDecoder interface {
	Decode(path string) (gocv.Mat, error)
}

// GocvDecoder decodes with cv::imread.
type GocvDecoder struct{}

// Decode implements ImageDecoder.
func (GocvDecoder) Decode(path string) (gocv.Mat, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return gocv.Mat{}, errors.Errorf("cannot decode %q", path)
	}
	return img, nil
}

// ImageDirSource yields every decodable image in a directory. Files that do
// not decode are skipped.
type ImageDirSource struct {
	files   []string
	next    int
	emitted int
	decoder ImageDecoder
	logger  golog.Logger
}

// NewImageDirSource lists dir up front. A missing directory is an IOError.
func NewImageDirSource(dir string, decoder ImageDecoder, logger golog.Logger) (*ImageDirSource, error) {
	files, err := regularFiles(dir)
	if err != nil {
		return nil, err
	}
	logger.Debugf("%d files in %s", len(files), dir)
	return &ImageDirSource{files: files, decoder: decoder, logger: logger}, nil
}

// Next implements Source.
func (s *ImageDirSource) Next(ctx context.Context) (Frame, error) {
	for s.next < len(s.files) {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		path := s.files[s.next]
		s.next++

		img, err := s.decoder.Decode(path)
		if err != nil {
			s.logger.Infof("skipping %s: %v", path, err)
			continue
		}
		f := Frame{Image: img, Path: path, Index: s.emitted}
		s.emitted++
		return f, nil
	}
	return Frame{}, ErrExhausted
}

// Close implements Source.
func (s *ImageDirSource) Close() error {
	s.next = len(s.files)
	return nil
}
