package main

import (
	"bytes"
	"strings"
	"testing"

	"gocv.io/x/gocv"

	"camcalib/capture"
	"camcalib/detection"
)

type stubGrabber struct{ calls int }

func (g *stubGrabber) NextFrame() (gocv.Mat, bool) {
	g.calls++
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(128, 128, 128, 0), 48, 64, gocv.MatTypeCV8UC3), true
}

func (g *stubGrabber) Close() error { return nil }

// stubExtractor reports the board as found on the listed calls.
type stubExtractor struct {
	found map[int]bool
	calls int
}

func (e *stubExtractor) Extract(img gocv.Mat, source string) (detection.Result, error) {
	defer func() { e.calls++ }()
	return detection.Result{Found: e.found[e.calls]}, nil
}

func TestBoardCaptureRun(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		found    map[int]bool
		wanted   int
		wantKept int
	}{
		{
			name:     "keeps found views",
			input:    "\n\n",
			found:    map[int]bool{0: true, 1: true},
			wanted:   2,
			wantKept: 2,
		},
		{
			name:     "declined miss is retried",
			input:    "\nn\n\n",
			found:    map[int]bool{1: true},
			wanted:   1,
			wantKept: 1,
		},
		{
			name:     "accepted miss is kept",
			input:    "\ny\n",
			found:    map[int]bool{},
			wanted:   1,
			wantKept: 1,
		},
		{
			name:     "quit stops early",
			input:    "\nq\n",
			found:    map[int]bool{0: true},
			wanted:   5,
			wantKept: 1,
		},
		{
			name:     "end of input stops",
			input:    "",
			wanted:   3,
			wantKept: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := capture.NewStore(t.TempDir())
			if err != nil {
				t.Fatal(err)
			}
			var out bytes.Buffer
			bc := NewBoardCapture(&stubGrabber{}, &stubExtractor{found: tt.found}, store, tt.wanted, strings.NewReader(tt.input), &out)

			kept, err := bc.Run()
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(kept) != tt.wantKept {
				t.Errorf("kept %d views, want %d\n%s", len(kept), tt.wantKept, out.String())
			}
		})
	}
}

func TestAskYesNo(t *testing.T) {
	tests := map[string]bool{
		"y\n":   true,
		"YES\n": true,
		" yes ": true,
		"n\n":   false,
		"maybe": false,
		"":      false,
	}
	for input, want := range tests {
		bc := NewBoardCapture(nil, nil, nil, 0, strings.NewReader(input), &bytes.Buffer{})
		if got := bc.askYesNo(); got != want {
			t.Errorf("askYesNo(%q) = %v, want %v", input, got, want)
		}
	}
}
