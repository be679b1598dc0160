package detector

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/ivory/internal/geometry"
	"github.com/ayusman/ivory/internal/keyboard"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	hands []HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the number of Detect calls so far.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// fingerSpacing is the normalized distance between neighbouring fingertips.
const fingerSpacing = 0.02

// PalmDownHand returns a flat hand resting on the keys with its index
// fingertip at (tipX, tipY) in normalized frame coordinates. The fingers are
// spread along the keyboard so that Side classifies the hand as side for a
// camera mounted with orientation o.
func PalmDownHand(side keyboard.HandSide, o keyboard.Orientation, tipX, tipY float64) HandLandmarks {
	// Direction from thumb to pinky along keyboard-space x, mapped to camera x.
	dir := -1
	if side == keyboard.Left {
		dir = 1
	}
	step := float64(o.Apply(geometry.Pt(dir, 0)).X) * fingerSpacing

	h := HandLandmarks{Handedness: side.String(), Score: 0.95}
	fingers := [5][4]int{
		{ThumbCMC, ThumbMCP, ThumbIP, ThumbTip},
		{IndexMCP, IndexPIP, IndexDIP, IndexTip},
		{MiddleMCP, MiddlePIP, MiddleDIP, MiddleTip},
		{RingMCP, RingPIP, RingDIP, RingTip},
		{PinkyMCP, PinkyPIP, PinkyDIP, PinkyTip},
	}
	for f, joints := range fingers {
		x := tipX + float64(f-1)*step
		for j, lm := range joints {
			// Joints run from the knuckle (furthest from the keys) to the tip.
			h.Points[lm] = Point3D{X: x, Y: tipY + float64(3-j)*0.03}
		}
	}
	h.Points[Wrist] = Point3D{X: tipX + step, Y: tipY + 0.2}
	return h
}
