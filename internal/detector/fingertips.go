package detector

import (
	"context"
	"fmt"

	"github.com/ayusman/ivory/internal/capture"
	"github.com/ayusman/ivory/internal/keyboard"
)

// sideResolution is the virtual frame size knuckles are compared at.
const sideResolution = 1 << 16

// Side classifies a palm-down hand by knuckle order. In keyboard space the
// left hand has its pinky knuckle at a larger x than its index knuckle; the
// model's own handedness label is unreliable for hands seen from above.
func Side(h *HandLandmarks, o keyboard.Orientation) keyboard.HandSide {
	pinky := o.Apply(h.Pixel(PinkyMCP, sideResolution, sideResolution))
	index := o.Apply(h.Pixel(IndexMCP, sideResolution, sideResolution))
	if pinky.X > index.X {
		return keyboard.Left
	}
	return keyboard.Right
}

// Fingertips converts detected hands into camera-space fingertip samples.
// Landmarks outside the frame are dropped.
func Fingertips(hands []HandLandmarks, width, height int, o keyboard.Orientation) []keyboard.FingertipSample {
	out := make([]keyboard.FingertipSample, 0, len(hands)*len(FingertipLandmarks))
	for i := range hands {
		h := &hands[i]
		side := Side(h, o)
		for _, lm := range FingertipLandmarks {
			if !h.InFrame(lm) {
				continue
			}
			p := h.Pixel(lm, width, height)
			out = append(out, keyboard.FingertipSample{Hand: side, Landmark: lm, X: p.X, Y: p.Y})
		}
	}
	return out
}

// Tracker reads a frame and returns the fingertips in it. It serves touch
// calibration, which needs fingertips but not the frame.
type Tracker struct {
	Camera      capture.Camera
	Detector    Detector
	Orientation keyboard.Orientation
}

// Fingertips reads the next frame and detects fingertips in it.
func (t *Tracker) Fingertips(ctx context.Context) ([]keyboard.FingertipSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frame, err := t.Camera.ReadFrame()
	if err != nil {
		return nil, err
	}
	defer frame.Close()

	hands, err := t.Detector.Detect(frame)
	if err != nil {
		return nil, fmt.Errorf("detect hands: %w", err)
	}
	return Fingertips(hands, frame.Cols(), frame.Rows(), t.Orientation), nil
}
