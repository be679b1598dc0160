package keyboard

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ayusman/ivory/internal/geometry"
)

var (
	// ErrInvalidQuad is returned when the calibrated corners do not describe a
	// keyboard in the configured orientation.
	ErrInvalidQuad = errors.New("invalid perimeter quad")
	// ErrInvalidModel is returned by Restore for incomplete or inconsistent
	// persisted data.
	ErrInvalidModel = errors.New("invalid keyboard model")
	// ErrOrientationMismatch is returned when a model built for one camera
	// orientation is used with the other.
	ErrOrientationMismatch = errors.New("calibration orientation does not match camera")
)

// Color is the color of a key.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// KeyPolygon is the outline of one key in keyboard space.
type KeyPolygon struct {
	Number  int              `json:"number"`
	Color   Color            `json:"color"`
	Polygon geometry.Polygon `json:"polygon"`
}

// Model is an immutable description of all 88 keys produced by calibration.
// It is safe for concurrent use.
type Model struct {
	orientation Orientation
	quad        PerimeterQuad
	perimeter   geometry.Polygon
	white       [NumWhiteKeys]KeyPolygon
	black       [NumBlackKeys]KeyPolygon
	boundaries  [NumBoundaries]float64
}

// Orientation returns the camera mount the model was built for.
func (m *Model) Orientation() Orientation { return m.orientation }

// Quad returns the calibrated corners in camera space.
func (m *Model) Quad() PerimeterQuad { return m.quad }

// Perimeter returns a copy of the keyboard outline in keyboard space.
func (m *Model) Perimeter() geometry.Polygon {
	return append(geometry.Polygon(nil), m.perimeter...)
}

// Boundaries returns a copy of the white-key boundaries in ascending order.
func (m *Model) Boundaries() []float64 {
	return append([]float64(nil), m.boundaries[:]...)
}

// White returns white-key slot i; slot 0 is A0.
func (m *Model) White(i int) KeyPolygon { return copyKey(m.white[i]) }

// Black returns black-key slot i; slot 0 is A#0.
func (m *Model) Black(i int) KeyPolygon { return copyKey(m.black[i]) }

// Keys returns all 88 keys ordered by key number.
func (m *Model) Keys() []KeyPolygon {
	keys := make([]KeyPolygon, 0, NumKeys)
	for _, k := range m.white {
		keys = append(keys, copyKey(k))
	}
	for _, k := range m.black {
		keys = append(keys, copyKey(k))
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Number < keys[j].Number })
	return keys
}

// Key returns the key with absolute number n.
func (m *Model) Key(n int) (KeyPolygon, bool) {
	for _, k := range m.white {
		if k.Number == n {
			return copyKey(k), true
		}
	}
	for _, k := range m.black {
		if k.Number == n {
			return copyKey(k), true
		}
	}
	return KeyPolygon{}, false
}

// CameraPolygon returns a key outline mapped back into camera space, for
// drawing overlays.
func (m *Model) CameraPolygon(k KeyPolygon) geometry.Polygon {
	return m.orientation.ApplyPolygon(k.Polygon)
}

func copyKey(k KeyPolygon) KeyPolygon {
	k.Polygon = append(geometry.Polygon(nil), k.Polygon...)
	return k
}

// Restore rebuilds a Model from persisted parts. keys may be in any order but
// must contain every key number exactly once.
func Restore(o Orientation, quad PerimeterQuad, perimeter geometry.Polygon, keys []KeyPolygon, boundaries []float64) (*Model, error) {
	if !o.IsValid() {
		return nil, fmt.Errorf("%w: unknown orientation %q", ErrInvalidModel, o)
	}
	if len(keys) != NumKeys {
		return nil, fmt.Errorf("%w: have %d keys, want %d", ErrInvalidModel, len(keys), NumKeys)
	}
	if len(boundaries) != NumBoundaries {
		return nil, fmt.Errorf("%w: have %d boundaries, want %d", ErrInvalidModel, len(boundaries), NumBoundaries)
	}
	if !sort.Float64sAreSorted(boundaries) {
		return nil, fmt.Errorf("%w: boundaries are not ascending", ErrInvalidModel)
	}
	if len(perimeter) < 3 {
		return nil, fmt.Errorf("%w: perimeter has %d vertices", ErrInvalidModel, len(perimeter))
	}

	whiteSlots := make(map[int]int, NumWhiteKeys)
	for i, n := range whiteKeyNumbers {
		whiteSlots[n] = i
	}
	blackSlots := make(map[int]int, NumBlackKeys)
	for i, n := range blackKeyNumbers {
		blackSlots[n] = i
	}

	m := &Model{
		orientation: o,
		quad:        quad,
		perimeter:   append(geometry.Polygon(nil), perimeter...),
	}
	copy(m.boundaries[:], boundaries)

	seen := make(map[int]bool, NumKeys)
	for _, k := range keys {
		if seen[k.Number] {
			return nil, fmt.Errorf("%w: duplicate key %d", ErrInvalidModel, k.Number)
		}
		seen[k.Number] = true
		if len(k.Polygon) < 3 {
			return nil, fmt.Errorf("%w: key %d has %d vertices", ErrInvalidModel, k.Number, len(k.Polygon))
		}
		switch k.Color {
		case White:
			i, ok := whiteSlots[k.Number]
			if !ok {
				return nil, fmt.Errorf("%w: key %d is not white", ErrInvalidModel, k.Number)
			}
			m.white[i] = copyKey(k)
		case Black:
			i, ok := blackSlots[k.Number]
			if !ok {
				return nil, fmt.Errorf("%w: key %d is not black", ErrInvalidModel, k.Number)
			}
			m.black[i] = copyKey(k)
		default:
			return nil, fmt.Errorf("%w: key %d has color %q", ErrInvalidModel, k.Number, k.Color)
		}
	}
	return m, nil
}
