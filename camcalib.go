package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"camcalib/calibration"
	"camcalib/capture"
	"camcalib/correspondence"
	"camcalib/settings"
	"camcalib/solver"
)

// Command line flags
var (
	configPath  = flag.String("config", "", "YAML calibration settings file (required)\n\t\tExample: -config=calib/board.yml")
	verbose     = flag.Bool("verbose", false, "Debug logging, and write annotated detection images beside each source image")
	deviceID    = flag.Int("device", -1, "Capture device id for live input (overrides Input_DeviceID)\n\t\tExample: -device=1")
	outputPath  = flag.String("output", "", "Result file (overrides Write_outputFileName)\n\t\tExample: -output=out/camera.yml")
	maxAttempts = flag.Int("max-attempts", -1, "Consecutive failed live grabs before giving up, 0 retries forever (overrides Input_MaxAttempts)")
)

// Exit codes
const (
	exitOK = iota
	exitUsage
	exitConfig
	exitIO
	exitSolve
	exitInternal
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintf(os.Stderr, "Error: -config flag is required\n\n")
		fmt.Println("Use -h for usage examples and flag descriptions")
		os.Exit(exitUsage)
	}

	os.Exit(calibrate())
}

func calibrate() int {
	logger := golog.NewLogger("camcalib")
	if *verbose {
		logger = golog.NewDebugLogger("camcalib")
	}
	defer logger.Sync()

	s, err := loadSettings()
	if err != nil {
		logger.Error(err)
		return exitConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, s, logger)
}

// loadSettings reads the config file and applies command line overrides.
func loadSettings() (*settings.Settings, error) {
	f, err := settings.ReadFile(*configPath)
	if err != nil {
		return nil, err
	}
	if *verbose {
		f.Verbose = true
	}
	if *deviceID >= 0 {
		id := *deviceID
		f.DeviceID = &id
	}
	if *outputPath != "" {
		f.OutputPath = *outputPath
	}
	if *maxAttempts >= 0 {
		n := *maxAttempts
		f.MaxAttempts = &n
	}
	return settings.Build(*f)
}

func run(ctx context.Context, s *settings.Settings, logger golog.Logger) int {
	sess, err := calibration.NewSession(s, calibration.Deps{}, logger)
	if err != nil {
		logger.Error(err)
		return exitCode(err)
	}
	logger.Infof("run %s: %dx%d %s, input %s", sess.RunID(), s.Board.Columns, s.Board.Rows, s.Pattern, s.Input)

	out, err := sess.Run(ctx)
	if err != nil {
		logger.Error(err)
		return exitCode(err)
	}

	k := out.Result.Intrinsics
	fmt.Printf("captures:   %d of %d frames\n", len(out.Captures), out.Frames)
	fmt.Printf("fx, fy:     %.3f, %.3f\n", k.At(0, 0), k.At(1, 1))
	fmt.Printf("cx, cy:     %.3f, %.3f\n", k.At(0, 2), k.At(1, 2))
	fmt.Printf("distortion: %v\n", out.Result.Distortion.Coefficients())
	fmt.Printf("rms error:  %.4f px\n", out.Report.Aggregate)
	if out.ResultPath != "" {
		fmt.Printf("written to: %s\n", out.ResultPath)
	}
	return exitOK
}

// exitCode maps the error taxonomy onto process exit codes.
func exitCode(err error) int {
	var (
		configErr *settings.ConfigError
		ioErr     *capture.IOError
		solveErr  *solver.Error
		structErr *correspondence.StructuralError
	)
	switch {
	case errors.As(err, &configErr):
		return exitConfig
	case errors.As(err, &ioErr):
		return exitIO
	case errors.As(err, &solveErr):
		return exitSolve
	case errors.As(err, &structErr):
		return exitInternal
	case errors.Is(err, context.Canceled):
		return exitIO
	}
	return exitInternal
}

func printUsage() {
	fmt.Println("\ncamcalib - camera calibration from board images, videos or a live camera")
	fmt.Println("================================================================")
	fmt.Println("\nUSAGE EXAMPLES:")
	fmt.Println("\n  Calibrate from a folder of chessboard images:")
	fmt.Println("    ./camcalib -config=board.yml")
	fmt.Println("\n  Keep annotated detection images and debug logs:")
	fmt.Println("    ./camcalib -config=board.yml -verbose")
	fmt.Println("\n  Live capture from the second camera, give up after 50 failed grabs:")
	fmt.Println("    ./camcalib -config=live.yml -device=1 -max-attempts=50")
	fmt.Println("\n  Write the result somewhere else:")
	fmt.Println("    ./camcalib -config=board.yml -output=/tmp/camera.yml")
	fmt.Println("\nFLAGS:")
	flag.PrintDefaults()
	fmt.Println("\nEXIT CODES:")
	fmt.Println("  1 usage, 2 invalid settings, 3 unreadable input, 4 calibration failed, 5 internal error")
	fmt.Println("")
}
