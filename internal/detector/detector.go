package detector

import (
	"strconv"

	"gocv.io/x/gocv"
)

// Detector finds hands in a frame. Landmark coordinates are normalized to
// the frame, as MediaPipe reports them.
type Detector interface {
	// Detect returns the hands in frame, or an empty slice.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	Close() error
}

// Config tunes the hand landmark model. Both hands are needed for touch
// calibration, so MaxHands below 2 only suits key tracking.
type Config struct {
	MaxHands        int
	MinConfidence   float64
	MinTrackingConf float64
}

// DefaultConfig tracks both hands at MediaPipe's default confidences.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}

// Args returns the hand service command-line flags for c.
func (c Config) Args() []string {
	return []string{
		"--max-hands", strconv.Itoa(c.MaxHands),
		"--min-detection-confidence", strconv.FormatFloat(c.MinConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(c.MinTrackingConf, 'f', -1, 64),
	}
}
