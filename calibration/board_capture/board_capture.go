package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"camcalib/calibration"
	"camcalib/capture"
)

// BoardCapture walks the user through taking calibration views: every view
// is grabbed from the camera, checked for the board, and kept only when
// the board was found or the user insists.
type BoardCapture struct {
	grabber   capture.FrameGrabber
	extractor calibration.FeatureExtractor
	store     *capture.Store
	wanted    int

	scanner *bufio.Scanner
	out     io.Writer

	kept   []string
	misses int
}

// NewBoardCapture creates the interactive session. Prompts are read from in
// and progress is written to out.
func NewBoardCapture(grabber capture.FrameGrabber, extractor calibration.FeatureExtractor, store *capture.Store, wanted int, in io.Reader, out io.Writer) *BoardCapture {
	return &BoardCapture{
		grabber:   grabber,
		extractor: extractor,
		store:     store,
		wanted:    wanted,
		scanner:   bufio.NewScanner(in),
		out:       out,
	}
}

// Run collects views until the wanted number is kept, the user stops, or
// input ends.
func (bc *BoardCapture) Run() ([]string, error) {
	fmt.Fprintf(bc.out, "📷 Collecting %d board views into %s\n", bc.wanted, bc.store.Dir())
	fmt.Fprintf(bc.out, "🎯 Vary distance, tilt and position so the board covers the whole frame\n\n")

	for attempt := 0; len(bc.kept) < bc.wanted; attempt++ {
		fmt.Fprintf(bc.out, "[%d/%d] Position the board and press Enter (q to stop): ", len(bc.kept)+1, bc.wanted)
		line, ok := bc.readLine()
		if !ok || line == "q" || line == "quit" {
			break
		}

		if err := bc.captureView(attempt); err != nil {
			fmt.Fprintf(bc.out, "❌ %v\n", err)
			fmt.Fprintf(bc.out, "Try again? (y/n): ")
			if !bc.askYesNo() {
				return bc.kept, err
			}
		}
	}

	fmt.Fprintf(bc.out, "\n✅ Kept %d views, %d without a board\n", len(bc.kept), bc.misses)
	return bc.kept, nil
}

func (bc *BoardCapture) captureView(attempt int) error {
	img, ok := bc.grabber.NextFrame()
	if !ok {
		return errors.New("camera returned no frame")
	}
	defer img.Close()

	res, err := bc.extractor.Extract(img, "")
	if err != nil {
		return err
	}
	if !res.Found {
		bc.misses++
		fmt.Fprintf(bc.out, "⚠️  Board not found (%d points seen). Keep anyway? (y/n): ", len(res.Points))
		if !bc.askYesNo() {
			return nil
		}
	}

	return bc.keep(img, attempt)
}

func (bc *BoardCapture) keep(img gocv.Mat, attempt int) error {
	path, err := bc.store.Save(img, attempt)
	if err != nil {
		return err
	}
	bc.kept = append(bc.kept, path)
	fmt.Fprintf(bc.out, "💾 Saved %s\n", path)
	return nil
}

func (bc *BoardCapture) readLine() (string, bool) {
	if !bc.scanner.Scan() {
		return "", false
	}
	return strings.ToLower(strings.TrimSpace(bc.scanner.Text())), true
}

// askYesNo reads a yes/no answer; anything else, including end of input, is no.
func (bc *BoardCapture) askYesNo() bool {
	response, ok := bc.readLine()
	return ok && (response == "y" || response == "yes")
}
