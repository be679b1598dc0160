// Package testscene renders synthetic keyboard scenes for tests: the geometry
// of a keyboard seen by an upright camera and the matching camera frames.
package testscene

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/ivory/internal/geometry"
	"github.com/ayusman/ivory/internal/keyboard"
)

// Scene is a keyboard occupying Keyboard inside a Width x Height frame, A0 on
// the left and the finger side at the bottom.
type Scene struct {
	Width, Height int
	Keyboard      image.Rectangle
}

// Layout constants shared by every scene.
const (
	WhiteKeys      = 52
	BlackKeys      = 36
	MarkerSide     = 14
	blackHalfWidth = 6
	blackTopInset  = 20
	blackDepth     = 160
)

// blackKeySlots is the white/white split each black key straddles, counted
// from A0.
var blackKeySlots = [BlackKeys]int{
	0, 2, 3, 5, 6, 7, 9, 10, 12, 13, 14, 16, 17, 19, 20, 21, 23, 24,
	26, 27, 28, 30, 31, 33, 34, 35, 37, 38, 40, 41, 42, 44, 45, 47, 48, 49,
}

// DefaultScene is a 1040x300 keyboard with 20 pixel white keys in a
// 1280x480 frame.
func DefaultScene() Scene {
	return Scene{
		Width:    1280,
		Height:   480,
		Keyboard: image.Rect(140, 80, 1180, 380),
	}
}

// WhiteKeyWidth returns the width of one white key in pixels.
func (s Scene) WhiteKeyWidth() int {
	return s.Keyboard.Dx() / WhiteKeys
}

// Corners returns the keyboard corners in camera space.
func (s Scene) Corners() (upperLeft, upperRight, lowerLeft, lowerRight geometry.Point) {
	k := s.Keyboard
	return geometry.Pt(k.Min.X, k.Min.Y), geometry.Pt(k.Max.X, k.Min.Y),
		geometry.Pt(k.Min.X, k.Max.Y), geometry.Pt(k.Max.X, k.Max.Y)
}

// Quad returns the keyboard corners as a perimeter quad.
func (s Scene) Quad() keyboard.PerimeterQuad {
	ul, ur, ll, lr := s.Corners()
	return keyboard.PerimeterQuad{UpperLeft: ul, UpperRight: ur, LowerLeft: ll, LowerRight: lr}
}

// Model builds the scene's keyboard for an upright camera.
func (s Scene) Model() (*keyboard.Model, error) {
	return keyboard.NewBuilder(keyboard.OrientationUpright).Build(s.Quad(), s.BlackKeyContours())
}

// BlackKeyRect returns black key i, counted from A#0.
func (s Scene) BlackKeyRect(i int) image.Rectangle {
	cx := s.Keyboard.Min.X + (blackKeySlots[i]+1)*s.WhiteKeyWidth()
	top := s.Keyboard.Min.Y + blackTopInset
	return image.Rect(cx-blackHalfWidth, top, cx+blackHalfWidth, top+blackDepth)
}

// BlackKeyCenter returns the center of black key i.
func (s Scene) BlackKeyCenter(i int) image.Point {
	r := s.BlackKeyRect(i)
	return image.Pt((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2)
}

// WhiteKeyPoint returns a point on white key i, below the black keys.
func (s Scene) WhiteKeyPoint(i int) image.Point {
	w := s.WhiteKeyWidth()
	return image.Pt(s.Keyboard.Min.X+i*w+w/2, s.Keyboard.Max.Y-30)
}

// BlackKeyContours returns all black keys as contours traced the way
// FindContours reports them, starting at the top-left vertex.
func (s Scene) BlackKeyContours() []geometry.Polygon {
	out := make([]geometry.Polygon, BlackKeys)
	for i := range out {
		out[i] = rectPolygon(s.BlackKeyRect(i))
	}
	return out
}

// MarkerRects returns the tape markers sitting just inside each keyboard
// corner, in upper-left, upper-right, lower-left, lower-right order.
func (s Scene) MarkerRects() []image.Rectangle {
	k := s.Keyboard
	return []image.Rectangle{
		image.Rect(k.Min.X, k.Min.Y, k.Min.X+MarkerSide, k.Min.Y+MarkerSide),
		image.Rect(k.Max.X-MarkerSide, k.Min.Y, k.Max.X, k.Min.Y+MarkerSide),
		image.Rect(k.Min.X, k.Max.Y-MarkerSide, k.Min.X+MarkerSide, k.Max.Y),
		image.Rect(k.Max.X-MarkerSide, k.Max.Y-MarkerSide, k.Max.X, k.Max.Y),
	}
}

// MarkerContours returns the tape markers as contours.
func (s Scene) MarkerContours() []geometry.Polygon {
	var out []geometry.Polygon
	for _, r := range s.MarkerRects() {
		out = append(out, rectPolygon(r))
	}
	return out
}

func rectPolygon(r image.Rectangle) geometry.Polygon {
	return geometry.Polygon{
		geometry.Pt(r.Min.X, r.Min.Y),
		geometry.Pt(r.Min.X, r.Max.Y),
		geometry.Pt(r.Max.X, r.Max.Y),
		geometry.Pt(r.Max.X, r.Min.Y),
	}
}

var (
	background = color.RGBA{R: 200, G: 200, B: 200}
	whiteKey   = color.RGBA{R: 255, G: 255, B: 255}
	blackKey   = color.RGBA{}
	tape       = color.RGBA{G: 255}
)

// Frame renders the scene as a BGR frame. The caller must close it.
func (s Scene) Frame() gocv.Mat {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(
		float64(background.B), float64(background.G), float64(background.R), 0),
		s.Height, s.Width, gocv.MatTypeCV8UC3)

	gocv.Rectangle(&frame, s.Keyboard, whiteKey, -1)
	for i := 0; i < BlackKeys; i++ {
		gocv.Rectangle(&frame, s.BlackKeyRect(i), blackKey, -1)
	}
	for _, r := range s.MarkerRects() {
		gocv.Rectangle(&frame, r, tape, -1)
	}
	return frame
}

// Sequence returns n copies of the scene's frame for a MockCamera. The
// caller must close them.
func (s Scene) Sequence(n int) []*gocv.Mat {
	base := s.Frame()
	defer base.Close()

	frames := make([]*gocv.Mat, n)
	for i := range frames {
		f := base.Clone()
		frames[i] = &f
	}
	return frames
}

// CloseAll closes every frame.
func CloseAll(frames []*gocv.Mat) {
	for _, f := range frames {
		f.Close()
	}
}
