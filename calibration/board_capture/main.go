// Command board_capture takes still calibration views from a camera so they
// can later be fed to camcalib as an image folder.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/edaniels/golog"

	"camcalib/capture"
	"camcalib/detection"
	"camcalib/pattern"
)

var (
	device      = flag.Int("device", 0, "Capture device id")
	dir         = flag.String("dir", "", "Folder for the captured views (required)\n\t\tExample: -dir=calib/views")
	columns     = flag.Int("width", 9, "Board width in inner corners or circles")
	rows        = flag.Int("height", 6, "Board height in inner corners or circles")
	patternCode = flag.Int("pattern", 0, "0 chessboard, 1 circle grid, 2 asymmetric circle grid")
	views       = flag.Int("views", 20, "Number of views to keep")
)

func main() {
	flag.Parse()

	fmt.Printf("🖐️  CALIBRATION BOARD CAPTURE\n")
	fmt.Printf("============================\n\n")

	if *dir == "" {
		fmt.Fprintf(os.Stderr, "Error: -dir flag is required\n")
		os.Exit(1)
	}
	kind, err := pattern.Parse(*patternCode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := golog.NewLogger("board_capture")

	extractor, err := detection.NewExtractor(detection.Config{
		Kind:     kind,
		Geometry: pattern.Geometry{Columns: *columns, Rows: *rows},
	}, logger.Named("detection"))
	if err != nil {
		logger.Fatal(err)
	}

	store, err := capture.NewStore(*dir)
	if err != nil {
		logger.Fatal(err)
	}

	grabber, err := capture.NewDeviceGrabber(*device)
	if err != nil {
		logger.Fatal(err)
	}
	defer grabber.Close()

	fmt.Printf("📷 Device %d, %s %dx%d\n\n", *device, kind, *columns, *rows)

	kept, err := NewBoardCapture(grabber, extractor, store, *views, os.Stdin, os.Stdout).Run()
	if err != nil {
		fmt.Printf("❌ Capture stopped: %v\n", err)
		os.Exit(1)
	}
	if len(kept) == 0 {
		fmt.Printf("No views kept\n")
		return
	}
	fmt.Printf("🎉 Set Input_ImageFolder: %s and Input: 0 to calibrate from these views\n", store.Dir())
}
