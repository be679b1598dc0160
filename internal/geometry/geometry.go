// Package geometry provides the integer pixel geometry shared by calibration
// and key matching: points, closed polygons and point-in-polygon tests.
package geometry

import (
	"image"
	"math"
)

// Point is an integer pixel coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y int) Point {
	return Point{X: x, Y: y}
}

// ImagePoint converts p to an image.Point for use with gocv drawing calls.
func (p Point) ImagePoint() image.Point {
	return image.Point{X: p.X, Y: p.Y}
}

// Polygon is a closed polygon given by its vertices in order. The last vertex
// connects back to the first.
type Polygon []Point

// Bounds describes the axis-aligned extent of a polygon.
type Bounds struct {
	MinX, MaxX int
	MinY, MaxY int
}

// Result values of Polygon.Test, matching OpenCV's pointPolygonTest sign
// convention.
const (
	Outside = -1
	OnEdge  = 0
	Inside  = 1
)

// Test reports whether p lies inside (Inside), outside (Outside) or exactly on
// an edge or vertex (OnEdge) of the polygon.
func (pg Polygon) Test(p Point) int {
	n := len(pg)
	if n == 0 {
		return Outside
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := pg[j], pg[i]

		if onSegment(a, b, p) {
			return OnEdge
		}

		if (a.Y > p.Y) != (b.Y > p.Y) {
			dy := b.Y - a.Y
			t := (b.X-a.X)*(p.Y-a.Y) - (p.X-a.X)*dy
			if (dy > 0 && t > 0) || (dy < 0 && t < 0) {
				inside = !inside
			}
		}
	}

	if inside {
		return Inside
	}
	return Outside
}

// Contains reports whether p lies inside the polygon or on its boundary.
func (pg Polygon) Contains(p Point) bool {
	return pg.Test(p) >= OnEdge
}

// Area returns the absolute enclosed area using the shoelace formula, the same
// quantity OpenCV's contourArea reports for a simple polygon.
func (pg Polygon) Area() float64 {
	n := len(pg)
	if n < 3 {
		return 0
	}

	var twice int
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		twice += pg[j].X*pg[i].Y - pg[i].X*pg[j].Y
	}

	return math.Abs(float64(twice)) / 2
}

// Bounds returns the axis-aligned extent of the polygon. It returns the zero
// Bounds for an empty polygon.
func (pg Polygon) Bounds() Bounds {
	if len(pg) == 0 {
		return Bounds{}
	}

	b := Bounds{MinX: pg[0].X, MaxX: pg[0].X, MinY: pg[0].Y, MaxY: pg[0].Y}
	for _, p := range pg[1:] {
		b.MinX = min(b.MinX, p.X)
		b.MaxX = max(b.MaxX, p.X)
		b.MinY = min(b.MinY, p.Y)
		b.MaxY = max(b.MaxY, p.Y)
	}
	return b
}

// Representative returns the first vertex. Contour filters key off this point
// rather than a centroid so that results match the traced contour start.
func (pg Polygon) Representative() Point {
	if len(pg) == 0 {
		return Point{}
	}
	return pg[0]
}

// CenterX returns the midpoint between the smallest and largest x coordinate.
func (pg Polygon) CenterX() float64 {
	b := pg.Bounds()
	return float64(b.MinX+b.MaxX) / 2
}

// Map returns a new polygon with fn applied to every vertex.
func (pg Polygon) Map(fn func(Point) Point) Polygon {
	out := make(Polygon, len(pg))
	for i, p := range pg {
		out[i] = fn(p)
	}
	return out
}

// ImagePoints converts the vertices for gocv drawing calls.
func (pg Polygon) ImagePoints() []image.Point {
	out := make([]image.Point, len(pg))
	for i, p := range pg {
		out[i] = p.ImagePoint()
	}
	return out
}

// onSegment reports whether p lies on the closed segment a-b.
func onSegment(a, b, p Point) bool {
	cross := (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
	if cross != 0 {
		return false
	}
	return p.X >= min(a.X, b.X) && p.X <= max(a.X, b.X) &&
		p.Y >= min(a.Y, b.Y) && p.Y <= max(a.Y, b.Y)
}
