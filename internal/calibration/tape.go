package calibration

import (
	"context"
	"math"

	"github.com/ayusman/ivory/internal/capture"
	"github.com/ayusman/ivory/internal/geometry"
	"github.com/ayusman/ivory/internal/keyboard"
	"github.com/ayusman/ivory/internal/vision"
)

// Band is an open interval (Min, Max) of pixel coordinates.
type Band struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

// Contains reports whether Min < v < Max.
func (b Band) Contains(v int) bool {
	return b.Min < v && v < b.Max
}

// TapeConfig holds the gate thresholds of the tape-marker strategy. All
// coordinates are camera space.
type TapeConfig struct {
	// XBands are the regions where corner markers may appear.
	XBands []Band
	// UpperYFraction limits markers to y < UpperYFraction * frame height.
	UpperYFraction float64
	// AreaMin and AreaMax bound the marker contour area, exclusive.
	AreaMin float64
	AreaMax float64
	// PairToleranceFraction of the frame width is the largest offset at
	// which two markers count as aligned.
	PairToleranceFraction float64
	// MaxSkew is the largest allowed vertical spread across all markers.
	MaxSkew int
}

// DefaultTapeConfig returns the thresholds tuned for a 1920x700 frame.
func DefaultTapeConfig() TapeConfig {
	return TapeConfig{
		XBands:                []Band{{Min: -1, Max: 200}, {Min: 1100, Max: 1300}},
		UpperYFraction:        0.5,
		AreaMin:               100,
		AreaMax:               500,
		PairToleranceFraction: 0.025,
		MaxSkew:               250,
	}
}

// LocateTape runs the marker gates over contours and assigns the four
// survivors to corners. The returned quad is in camera space.
func LocateTape(contours []geometry.Polygon, width, height int, cfg TapeConfig, o keyboard.Orientation) (keyboard.PerimeterQuad, error) {
	var none keyboard.PerimeterQuad

	var markers []geometry.Polygon
	for _, c := range contours {
		if len(c) > 0 {
			markers = append(markers, c)
		}
	}
	if len(markers) < 4 {
		return none, gateError(CodeTooFewMarkers, "marker detection", len(markers))
	}

	markers = filter(markers, func(c geometry.Polygon) bool {
		x := c.Representative().X
		for _, b := range cfg.XBands {
			if b.Contains(x) {
				return true
			}
		}
		return false
	})
	if len(markers) < 4 {
		return none, gateError(CodeXRange, "x-range gate", len(markers))
	}

	yLimit := cfg.UpperYFraction * float64(height)
	markers = filter(markers, func(c geometry.Polygon) bool {
		return float64(c.Representative().Y) < yLimit
	})
	if len(markers) < 4 {
		return none, gateError(CodeYRange, "y-range gate", len(markers))
	}

	markers = filter(markers, func(c geometry.Polygon) bool {
		a := c.Area()
		return cfg.AreaMin < a && a < cfg.AreaMax
	})
	if len(markers) < 4 {
		return none, gateError(CodeAreaOrSkew, "area gate", len(markers))
	}

	tol := cfg.PairToleranceFraction * float64(width)
	markers = paired(markers, func(a, b geometry.Point) bool {
		return math.Abs(float64(a.X-b.X)) < tol && a.Y != b.Y
	})
	if len(markers) < 4 {
		return none, gateError(CodePairing, "x-pairing gate", len(markers))
	}
	markers = paired(markers, func(a, b geometry.Point) bool {
		return math.Abs(float64(a.Y-b.Y)) < tol && a.X != b.X
	})
	if len(markers) < 4 {
		return none, gateError(CodePairing, "y-pairing gate", len(markers))
	}

	minY, maxY := math.MaxInt, math.MinInt
	for _, c := range markers {
		y := c.Representative().Y
		minY = min(minY, y)
		maxY = max(maxY, y)
	}
	if maxY-minY > cfg.MaxSkew {
		return none, &CalibrationError{Code: CodeAreaOrSkew, Stage: "skew gate", Found: len(markers)}
	}

	return assignCorners(markers, o)
}

func filter(cs []geometry.Polygon, keep func(geometry.Polygon) bool) []geometry.Polygon {
	var out []geometry.Polygon
	for _, c := range cs {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// paired keeps every contour that has at least one partner under match. The
// matched set is computed over the whole input before anything is dropped,
// so the result does not depend on contour order.
func paired(cs []geometry.Polygon, match func(a, b geometry.Point) bool) []geometry.Polygon {
	matched := make([]bool, len(cs))
	for i := range cs {
		for j := i + 1; j < len(cs); j++ {
			if match(cs[i].Representative(), cs[j].Representative()) {
				matched[i] = true
				matched[j] = true
			}
		}
	}
	var out []geometry.Polygon
	for i, c := range cs {
		if matched[i] {
			out = append(out, c)
		}
	}
	return out
}

// assignCorners partitions markers into quadrants around their centroid in
// keyboard space and takes each marker's outermost extent as the corner.
func assignCorners(markers []geometry.Polygon, o keyboard.Orientation) (keyboard.PerimeterQuad, error) {
	var none keyboard.PerimeterQuad

	kb := make([]geometry.Polygon, len(markers))
	var sumX, sumY float64
	for i, c := range markers {
		kb[i] = o.ApplyPolygon(c)
		r := kb[i].Representative()
		sumX += float64(r.X)
		sumY += float64(r.Y)
	}
	mx := sumX / float64(len(kb))
	my := sumY / float64(len(kb))

	found := make(map[keyboard.Corner][]geometry.Polygon, 4)
	for _, c := range kb {
		r := c.Representative()
		x, y := float64(r.X), float64(r.Y)
		switch {
		case x < mx && y < my:
			found[keyboard.LowerRight] = append(found[keyboard.LowerRight], c)
		case x < mx && y > my:
			found[keyboard.UpperRight] = append(found[keyboard.UpperRight], c)
		case x > mx && y < my:
			found[keyboard.LowerLeft] = append(found[keyboard.LowerLeft], c)
		case x > mx && y > my:
			found[keyboard.UpperLeft] = append(found[keyboard.UpperLeft], c)
		default:
			return none, gateError(CodeCorners, "corner assignment", len(markers))
		}
	}

	var q keyboard.PerimeterQuad
	for _, corner := range []keyboard.Corner{keyboard.UpperLeft, keyboard.UpperRight, keyboard.LowerLeft, keyboard.LowerRight} {
		cs := found[corner]
		if len(cs) != 1 {
			return none, gateError(CodeCorners, "corner assignment", len(cs))
		}
		b := cs[0].Bounds()
		var p geometry.Point
		switch corner {
		case keyboard.UpperLeft:
			p = geometry.Pt(b.MaxX, b.MaxY)
		case keyboard.UpperRight:
			p = geometry.Pt(b.MinX, b.MaxY)
		case keyboard.LowerLeft:
			p = geometry.Pt(b.MaxX, b.MinY)
		case keyboard.LowerRight:
			p = geometry.Pt(b.MinX, b.MinY)
		}
		q = q.WithCorner(corner, o.Apply(p))
	}
	return q, nil
}

// TapeSampler reads a frame and locates the four tape markers in it.
type TapeSampler struct {
	Camera      capture.Camera
	Segmenter   vision.Segmenter
	Config      TapeConfig
	Orientation keyboard.Orientation
}

// SampleQuad implements Sampler.
func (s *TapeSampler) SampleQuad(ctx context.Context) (keyboard.PerimeterQuad, error) {
	if err := ctx.Err(); err != nil {
		return keyboard.PerimeterQuad{}, err
	}
	frame, err := s.Camera.ReadFrame()
	if err != nil {
		return keyboard.PerimeterQuad{}, &CalibrationError{Code: CodeEmptyFrame, Stage: "tape frame", Err: err}
	}
	defer frame.Close()

	contours, err := s.Segmenter.Contours(*frame)
	if err != nil {
		return keyboard.PerimeterQuad{}, &CalibrationError{Code: CodeEmptyFrame, Stage: "tape frame", Err: err}
	}
	return LocateTape(contours, frame.Cols(), frame.Rows(), s.Config, s.Orientation)
}
