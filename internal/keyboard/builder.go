package keyboard

import (
	"fmt"
	"math"
	"sort"

	"github.com/ayusman/ivory/internal/geometry"
)

// DefaultBlackKeyMinArea is the smallest contour area accepted as a black key.
const DefaultBlackKeyMinArea = 300

// perimeterBulge shapes the finger-side edge of the keyboard outline: the
// fraction of keyboard depth each of the five interior points sits below the
// lower edge, compensating for lens curvature.
var perimeterBulge = [5]float64{0.30, 0.40, 0.44, 0.40, 0.28}

// perimeterUpperMargin lifts the upper edge so keys touching it are inside.
const perimeterUpperMargin = 5

// BlackKeyCountError reports a black-key segmentation that did not yield
// exactly NumBlackKeys candidates inside the perimeter.
type BlackKeyCountError struct {
	Found int
}

func (e *BlackKeyCountError) Error() string {
	return fmt.Sprintf("found %d black keys inside the keyboard, want %d", e.Found, NumBlackKeys)
}

// Builder turns a calibrated quad and black-key contours into a Model.
type Builder struct {
	Orientation     Orientation
	BlackKeyMinArea float64
}

// NewBuilder returns a Builder with the default minimum black-key area.
func NewBuilder(o Orientation) *Builder {
	return &Builder{Orientation: o, BlackKeyMinArea: DefaultBlackKeyMinArea}
}

// Perimeter returns the keyboard outline in keyboard space: the upper edge
// raised slightly, and the finger-side edge bowed outward through five
// interpolated points between the lower corners.
func (b *Builder) Perimeter(q PerimeterQuad) (geometry.Polygon, error) {
	k := b.Orientation.ApplyQuad(q)
	if err := validateKeyboardSpace(k); err != nil {
		return nil, err
	}
	return perimeter(k), nil
}

func perimeter(k PerimeterQuad) geometry.Polygon {
	xLength := float64(k.LowerLeft.X - k.LowerRight.X)
	yLength := float64(k.UpperLeft.Y - k.LowerLeft.Y)
	segments := float64(len(perimeterBulge) + 1)

	pg := geometry.Polygon{
		geometry.Pt(k.UpperLeft.X, k.UpperLeft.Y+perimeterUpperMargin),
		geometry.Pt(k.UpperRight.X, k.UpperRight.Y+perimeterUpperMargin),
		k.LowerRight,
	}
	for i, f := range perimeterBulge {
		x := float64(k.LowerRight.X) + float64(i+1)*xLength/segments
		y := float64(k.LowerLeft.Y) - yLength*f
		pg = append(pg, geometry.Pt(int(x), int(y)))
	}
	return append(pg, k.LowerLeft)
}

// BlackKeys maps contours into keyboard space and keeps those whose first
// vertex lies inside perimeter and whose area exceeds the minimum. Exactly
// NumBlackKeys must remain; they are returned sorted by descending x.
func (b *Builder) BlackKeys(perimeter geometry.Polygon, contours []geometry.Polygon) ([]geometry.Polygon, error) {
	var keys []geometry.Polygon
	for _, c := range contours {
		if len(c) == 0 {
			continue
		}
		kc := b.Orientation.ApplyPolygon(c)
		if !perimeter.Contains(kc.Representative()) {
			continue
		}
		if kc.Area() <= b.BlackKeyMinArea {
			continue
		}
		keys = append(keys, kc)
	}
	if len(keys) != NumBlackKeys {
		return nil, &BlackKeyCountError{Found: len(keys)}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		return keys[i].Representative().X > keys[j].Representative().X
	})
	return keys, nil
}

// Build produces the full keyboard model. It either returns a model with all
// 52 white and 36 black keys or an error; a *BlackKeyCountError means the
// black-key frame should be retaken.
func (b *Builder) Build(q PerimeterQuad, contours []geometry.Polygon) (*Model, error) {
	if !b.Orientation.IsValid() {
		return nil, fmt.Errorf("unknown orientation %q", b.Orientation)
	}
	k := b.Orientation.ApplyQuad(q)
	if err := validateKeyboardSpace(k); err != nil {
		return nil, err
	}
	pg := perimeter(k)

	black, err := b.BlackKeys(pg, contours)
	if err != nil {
		return nil, err
	}

	bounds := boundaries(black, k.LowerRight.X)

	m := &Model{
		orientation: b.Orientation,
		quad:        q,
		perimeter:   pg,
	}
	for i, poly := range black {
		m.black[i] = KeyPolygon{Number: blackKeyNumbers[i], Color: Black, Polygon: poly}
	}
	for i, poly := range whitePolygons(k, pg, bounds) {
		m.white[i] = KeyPolygon{Number: whiteKeyNumbers[i], Color: White, Polygon: poly}
	}
	asc := bounds
	sort.Float64s(asc[:])
	m.boundaries = asc
	return m, nil
}

// boundaries derives the white/white split lines in build order (descending
// x). Splits under a black key take the key's center; the rest are the mean
// of their neighbours, and the last is halfway to the lower-right corner.
func boundaries(black []geometry.Polygon, lowerRightX int) [NumBoundaries]float64 {
	var b [NumBoundaries]float64
	var known [NumBoundaries]bool
	for i, slot := range blackKeyBoundarySlots {
		b[slot] = black[i].CenterX()
		known[slot] = true
	}
	for i := 1; i < NumBoundaries-1; i++ {
		if !known[i] {
			b[i] = (b[i-1] + b[i+1]) / 2
		}
	}
	last := NumBoundaries - 1
	if !known[last] {
		b[last] = (b[last-1] + float64(lowerRightX)) / 2
	}
	return b
}

// whitePolygons builds the 52 white-key polygons from the boundaries. Each
// key's far edge lies on the raised upper edge of pg and its near edge
// follows the bowed lower edge, including any bend of pg inside the key's
// column, so the keys cover the outline without gaps. Column vertices are
// rounded away from the outline's interior.
func whitePolygons(k PerimeterQuad, pg geometry.Polygon, bounds [NumBoundaries]float64) [NumWhiteKeys]geometry.Polygon {
	upperLeft, upperRight := pg[0], pg[1]
	// Lower edge from the lower-right to the lower-left corner, ascending x.
	lower := pg[2:]

	var far, near [NumWhiteKeys + 1]geometry.Point
	far[0], far[NumWhiteKeys] = upperLeft, upperRight
	near[0], near[NumWhiteKeys] = k.LowerLeft, k.LowerRight

	for i := 1; i < NumWhiteKeys; i++ {
		x := int(bounds[i-1])
		far[i] = geometry.Pt(x, int(math.Ceil(edgeY(upperRight, upperLeft, x))))
		near[i] = geometry.Pt(x, int(math.Floor(chainY(lower, x))))
	}

	var out [NumWhiteKeys]geometry.Polygon
	for i := range out {
		poly := geometry.Polygon{near[i]}
		for j := len(lower) - 1; j >= 0; j-- {
			if v := lower[j]; v.X < near[i].X && v.X > near[i+1].X {
				poly = append(poly, v)
			}
		}
		out[i] = append(poly, near[i+1], far[i+1], far[i])
	}
	return out
}

// edgeY returns the y of the line through a and b at x.
func edgeY(a, b geometry.Point, x int) float64 {
	if a.X == b.X {
		return float64(a.Y)
	}
	t := float64(x-a.X) / float64(b.X-a.X)
	return float64(a.Y) + t*float64(b.Y-a.Y)
}

// chainY returns the y of the polyline chain (ascending x) at x, extending
// its end segments beyond the chain.
func chainY(chain geometry.Polygon, x int) float64 {
	for j := 1; j < len(chain); j++ {
		if x <= chain[j].X || j == len(chain)-1 {
			return edgeY(chain[j-1], chain[j], x)
		}
	}
	return float64(chain[0].Y)
}
