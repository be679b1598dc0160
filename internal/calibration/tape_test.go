package calibration

import (
	"errors"
	"testing"

	"github.com/ayusman/ivory/internal/geometry"
	"github.com/ayusman/ivory/internal/keyboard"
	"github.com/ayusman/ivory/internal/testscene"
)

// sceneTapeConfig opens the gates wide enough for the default scene, whose
// markers sit at all four keyboard corners.
func sceneTapeConfig(s testscene.Scene) TapeConfig {
	cfg := DefaultTapeConfig()
	cfg.XBands = []Band{
		{Min: -1, Max: s.Keyboard.Min.X + 50},
		{Min: s.Keyboard.Max.X - 50, Max: s.Width},
	}
	cfg.UpperYFraction = 1
	cfg.MaxSkew = 300
	return cfg
}

func square(x, y, side int) geometry.Polygon {
	return geometry.Polygon{
		geometry.Pt(x, y), geometry.Pt(x, y+side), geometry.Pt(x+side, y+side), geometry.Pt(x+side, y),
	}
}

func TestLocateTape_Scene(t *testing.T) {
	s := testscene.DefaultScene()
	q, err := LocateTape(s.MarkerContours(), s.Width, s.Height, sceneTapeConfig(s), keyboard.OrientationUpright)
	if err != nil {
		t.Fatalf("LocateTape() error = %v", err)
	}

	ul, ur, ll, lr := s.Corners()
	want := keyboard.PerimeterQuad{UpperLeft: ul, UpperRight: ur, LowerLeft: ll, LowerRight: lr}
	if q != want {
		t.Errorf("LocateTape() = %v, want %v", q, want)
	}

	t.Run("contour order does not matter", func(t *testing.T) {
		cs := s.MarkerContours()
		cs[0], cs[3] = cs[3], cs[0]
		cs[1], cs[2] = cs[2], cs[1]
		got, err := LocateTape(cs, s.Width, s.Height, sceneTapeConfig(s), keyboard.OrientationUpright)
		if err != nil {
			t.Fatalf("LocateTape() error = %v", err)
		}
		if got != want {
			t.Errorf("LocateTape() = %v, want %v", got, want)
		}
	})

	t.Run("lower-left uses the outer vertex", func(t *testing.T) {
		// Upright camera: lower-left takes the minimum x and maximum y.
		if q.LowerLeft.X != s.Keyboard.Min.X || q.LowerLeft.Y != s.Keyboard.Max.Y {
			t.Errorf("lower-left = %v", q.LowerLeft)
		}
	})
}

func TestLocateTape_InvertedRig(t *testing.T) {
	// Default gates on a 1920x700 frame with the camera upside down: markers
	// in the upper half, bass end on the right.
	cs := []geometry.Polygon{
		square(100, 100, 14),
		square(100, 300, 14),
		square(1200, 100, 14),
		square(1200, 300, 14),
	}
	q, err := LocateTape(cs, 1920, 700, DefaultTapeConfig(), keyboard.OrientationInverted)
	if err != nil {
		t.Fatalf("LocateTape() error = %v", err)
	}
	want := keyboard.PerimeterQuad{
		UpperLeft:  geometry.Pt(1214, 314),
		UpperRight: geometry.Pt(100, 314),
		LowerLeft:  geometry.Pt(1214, 100),
		LowerRight: geometry.Pt(100, 100),
	}
	if q != want {
		t.Errorf("LocateTape() = %v, want %v", q, want)
	}
}

func rect(x0, y0, x1, y1 int) geometry.Polygon {
	return geometry.Polygon{
		geometry.Pt(x0, y0), geometry.Pt(x0, y1), geometry.Pt(x1, y1), geometry.Pt(x1, y0),
	}
}

func TestAssignCorners_OuterVertex(t *testing.T) {
	// Markers of different sizes so that every corner's min/max choice on
	// both axes is visible. Coordinates are for the inverted rig, where
	// camera and keyboard space coincide.
	markers := []geometry.Polygon{
		rect(1200, 300, 1214, 316), // upper-left
		rect(100, 300, 110, 320),   // upper-right
		rect(1200, 100, 1220, 110), // lower-left
		rect(100, 100, 118, 112),   // lower-right
	}
	want := map[keyboard.Corner]geometry.Point{
		keyboard.UpperLeft:  geometry.Pt(1214, 316), // max x, max y
		keyboard.UpperRight: geometry.Pt(100, 320),  // min x, max y
		keyboard.LowerLeft:  geometry.Pt(1220, 100), // max x, min y
		keyboard.LowerRight: geometry.Pt(100, 100),  // min x, min y
	}
	rot := keyboard.OrientationUpright.Apply

	tests := []struct {
		name    string
		o       keyboard.Orientation
		markers []geometry.Polygon
		want    func(geometry.Point) geometry.Point
	}{
		{"inverted", keyboard.OrientationInverted, markers, func(p geometry.Point) geometry.Point { return p }},
		{"upright", keyboard.OrientationUpright, func() []geometry.Polygon {
			var out []geometry.Polygon
			for _, m := range markers {
				out = append(out, m.Map(rot))
			}
			return out
		}(), rot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := assignCorners(tt.markers, tt.o)
			if err != nil {
				t.Fatalf("assignCorners() error = %v", err)
			}
			for corner, p := range want {
				if got := q.Corner(corner); got != tt.want(p) {
					t.Errorf("%s = %v, want %v", corner, got, tt.want(p))
				}
			}
		})
	}

	t.Run("upright lower-left is min x, max y in the frame", func(t *testing.T) {
		var up []geometry.Polygon
		for _, m := range markers {
			up = append(up, m.Map(rot))
		}
		q, err := assignCorners(up, keyboard.OrientationUpright)
		if err != nil {
			t.Fatalf("assignCorners() error = %v", err)
		}
		b := up[2].Bounds()
		if want := geometry.Pt(b.MinX, b.MaxY); q.LowerLeft != want {
			t.Errorf("LowerLeft = %v, want %v", q.LowerLeft, want)
		}
	})
}

func TestLocateTape_Gates(t *testing.T) {
	good := func() []geometry.Polygon {
		return []geometry.Polygon{
			square(100, 100, 14),
			square(100, 300, 14),
			square(1200, 100, 14),
			square(1200, 300, 14),
		}
	}

	tests := []struct {
		name     string
		contours func() []geometry.Polygon
		want     Code
	}{
		{
			name:     "three markers",
			contours: func() []geometry.Polygon { return good()[:3] },
			want:     CodeTooFewMarkers,
		},
		{
			name:     "no markers",
			contours: func() []geometry.Polygon { return nil },
			want:     CodeTooFewMarkers,
		},
		{
			name: "marker outside the x bands",
			contours: func() []geometry.Polygon {
				cs := good()
				cs[2] = square(800, 100, 14)
				return cs
			},
			want: CodeXRange,
		},
		{
			name: "marker in the lower half",
			contours: func() []geometry.Polygon {
				cs := good()
				cs[3] = square(1200, 400, 14)
				return cs
			},
			want: CodeYRange,
		},
		{
			name: "marker too large",
			contours: func() []geometry.Polygon {
				cs := good()
				cs[0] = square(100, 100, 30)
				return cs
			},
			want: CodeAreaOrSkew,
		},
		{
			name: "marker too small",
			contours: func() []geometry.Polygon {
				cs := good()
				cs[0] = square(100, 100, 5)
				return cs
			},
			want: CodeAreaOrSkew,
		},
		{
			name: "marker without an x partner",
			contours: func() []geometry.Polygon {
				cs := good()
				cs[1] = square(180, 300, 14)
				return cs
			},
			want: CodePairing,
		},
		{
			name: "marker without a y partner",
			contours: func() []geometry.Polygon {
				cs := good()
				cs[3] = square(1200, 200, 14)
				return cs
			},
			want: CodePairing,
		},
		{
			name: "extra marker in one quadrant",
			contours: func() []geometry.Polygon {
				return append(good(), square(1220, 300, 14))
			},
			want: CodeCorners,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := LocateTape(tt.contours(), 1920, 700, DefaultTapeConfig(), keyboard.OrientationInverted)
			if err == nil {
				t.Fatalf("expected error, got quad %v", q)
			}
			if q != (keyboard.PerimeterQuad{}) {
				t.Errorf("expected zero quad on failure, got %v", q)
			}
			code, ok := CodeOf(err)
			if !ok {
				t.Fatalf("expected CalibrationError, got %v", err)
			}
			if code != tt.want {
				t.Errorf("expected code %d, got %d (%v)", tt.want, code, err)
			}
		})
	}

	t.Run("skew", func(t *testing.T) {
		cfg := DefaultTapeConfig()
		cfg.MaxSkew = 150
		_, err := LocateTape(good(), 1920, 700, cfg, keyboard.OrientationInverted)
		var ce *CalibrationError
		if !errors.As(err, &ce) || ce.Code != CodeAreaOrSkew || ce.Stage != "skew gate" {
			t.Errorf("expected skew gate failure, got %v", err)
		}
	})
}

func TestPaired_OrderIndependent(t *testing.T) {
	a := square(100, 100, 14)
	b := square(110, 300, 14)
	c := square(500, 100, 14)
	match := func(p, q geometry.Point) bool {
		d := p.X - q.X
		return d > -20 && d < 20 && p.Y != q.Y
	}

	for _, cs := range [][]geometry.Polygon{{a, b, c}, {c, b, a}, {b, c, a}} {
		got := paired(cs, match)
		if len(got) != 2 {
			t.Errorf("expected 2 paired contours, got %d", len(got))
		}
		for _, g := range got {
			if g.Representative() == c.Representative() {
				t.Error("unpaired contour kept")
			}
		}
	}
}

func TestCode_Display(t *testing.T) {
	if got := CodeYRange.Display(); got != "2.1" {
		t.Errorf("CodeYRange.Display() = %q, want 2.1", got)
	}
	if got := CodeBlackKeys.Display(); got != "7" {
		t.Errorf("CodeBlackKeys.Display() = %q, want 7", got)
	}
}
