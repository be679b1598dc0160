// Package detector finds hands in camera frames and reduces them to the
// fingertip positions the key matcher works on.
package detector

import (
	"math"

	"github.com/ayusman/ivory/internal/geometry"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// FingertipLandmarks are the landmarks forwarded to key matching.
var FingertipLandmarks = [...]int{ThumbTip, IndexTip, MiddleTip, RingTip, PinkyTip}

// Point3D is a landmark in normalized image coordinates: x and y in [0, 1]
// of the frame width and height, z relative depth.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // as reported by the model; not trusted
	Score      float64               `json:"score"`
}

// Pixel returns landmark i in pixel coordinates of a width x height frame,
// truncated toward zero.
func (h *HandLandmarks) Pixel(i, width, height int) geometry.Point {
	p := h.Points[i]
	return geometry.Pt(int(p.X*float64(width)), int(p.Y*float64(height)))
}

// InFrame reports whether landmark i lies inside the normalized frame.
func (h *HandLandmarks) InFrame(i int) bool {
	p := h.Points[i]
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1
}
