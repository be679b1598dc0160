package keyboard

import (
	"fmt"

	"github.com/ayusman/ivory/internal/geometry"
)

// Orientation describes how the camera is mounted relative to the keyboard.
//
// All model geometry lives in keyboard space, the native space of an
// upside-down mount: A0 sits at the largest x and the finger-side edge has the
// smaller y. Apply maps camera coordinates into keyboard space and, because
// both supported mounts are involutions, back again.
type Orientation string

const (
	// OrientationInverted is an upside-down camera; keyboard space equals
	// camera space.
	OrientationInverted Orientation = "inverted"
	// OrientationUpright is a camera that sees the keyboard as a player
	// would; keyboard space is camera space rotated by 180 degrees.
	OrientationUpright Orientation = "upright"
)

// IsValid reports whether o is a known orientation.
func (o Orientation) IsValid() bool {
	switch o {
	case OrientationInverted, OrientationUpright:
		return true
	}
	return false
}

// Apply converts p between camera space and keyboard space.
func (o Orientation) Apply(p geometry.Point) geometry.Point {
	if o == OrientationUpright {
		return geometry.Pt(-p.X, -p.Y)
	}
	return p
}

// ApplyPolygon converts every vertex of pg.
func (o Orientation) ApplyPolygon(pg geometry.Polygon) geometry.Polygon {
	return pg.Map(o.Apply)
}

// ApplyQuad converts all four corners of q.
func (o Orientation) ApplyQuad(q PerimeterQuad) PerimeterQuad {
	return PerimeterQuad{
		UpperLeft:  o.Apply(q.UpperLeft),
		UpperRight: o.Apply(q.UpperRight),
		LowerLeft:  o.Apply(q.LowerLeft),
		LowerRight: o.Apply(q.LowerRight),
	}
}

// Corner names one corner of the keyboard outline.
type Corner string

const (
	UpperLeft  Corner = "upper-left"
	UpperRight Corner = "upper-right"
	LowerLeft  Corner = "lower-left"
	LowerRight Corner = "lower-right"
)

// PerimeterQuad holds the four calibrated keyboard corners in camera space.
type PerimeterQuad struct {
	UpperLeft  geometry.Point `json:"upper_left"`
	UpperRight geometry.Point `json:"upper_right"`
	LowerLeft  geometry.Point `json:"lower_left"`
	LowerRight geometry.Point `json:"lower_right"`
}

// Corner returns the point stored for c.
func (q PerimeterQuad) Corner(c Corner) geometry.Point {
	switch c {
	case UpperLeft:
		return q.UpperLeft
	case UpperRight:
		return q.UpperRight
	case LowerLeft:
		return q.LowerLeft
	default:
		return q.LowerRight
	}
}

// WithCorner returns a copy of q with corner c set to p.
func (q PerimeterQuad) WithCorner(c Corner, p geometry.Point) PerimeterQuad {
	switch c {
	case UpperLeft:
		q.UpperLeft = p
	case UpperRight:
		q.UpperRight = p
	case LowerLeft:
		q.LowerLeft = p
	case LowerRight:
		q.LowerRight = p
	}
	return q
}

// String formats the corners for operator display.
func (q PerimeterQuad) String() string {
	return fmt.Sprintf("upper-left (%d,%d) upper-right (%d,%d) lower-left (%d,%d) lower-right (%d,%d)",
		q.UpperLeft.X, q.UpperLeft.Y, q.UpperRight.X, q.UpperRight.Y,
		q.LowerLeft.X, q.LowerLeft.Y, q.LowerRight.X, q.LowerRight.Y)
}

// validateKeyboardSpace checks the corner ordering of a quad already mapped
// into keyboard space: left corners at larger x than right corners, upper
// corners at larger y than lower corners.
func validateKeyboardSpace(k PerimeterQuad) error {
	if k.UpperLeft.X <= k.UpperRight.X || k.LowerLeft.X <= k.LowerRight.X {
		return fmt.Errorf("%w: left and right corners are swapped or coincide", ErrInvalidQuad)
	}
	if k.UpperLeft.Y <= k.LowerLeft.Y || k.UpperRight.Y <= k.LowerRight.Y {
		return fmt.Errorf("%w: upper and lower corners are swapped or coincide", ErrInvalidQuad)
	}
	return nil
}
