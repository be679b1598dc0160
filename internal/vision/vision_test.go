package vision

import (
	"errors"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/ivory/internal/keyboard"
	"github.com/ayusman/ivory/internal/testscene"
)

var (
	blackKeys = Segmenter{Lower: HSV{0, 0, 0}, Upper: HSV{160, 160, 130}, Kernel: 3}
	greenTape = Segmenter{Lower: HSV{60, 115, 60}, Upper: HSV{100, 255, 255}, Kernel: 8}
)

func TestSegmenter_EmptyFrame(t *testing.T) {
	if testing.Short() {
		t.Skip("requires OpenCV")
	}
	empty := gocv.NewMat()
	defer empty.Close()

	if _, err := blackKeys.Contours(empty); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("Contours() error = %v, want ErrEmptyFrame", err)
	}
}

func TestSegmenter_Contours(t *testing.T) {
	if testing.Short() {
		t.Skip("requires OpenCV")
	}
	s := testscene.DefaultScene()
	frame := s.Frame()
	defer frame.Close()

	tests := []struct {
		name      string
		segmenter Segmenter
		want      int
		minArea   float64
	}{
		{"black keys", blackKeys, testscene.BlackKeys, 1500},
		{"tape markers", greenTape, 4, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contours, err := tt.segmenter.Contours(frame)
			if err != nil {
				t.Fatalf("Contours() error = %v", err)
			}
			if len(contours) != tt.want {
				t.Fatalf("got %d contours, want %d", len(contours), tt.want)
			}
			for i, c := range contours {
				if a := c.Area(); a < tt.minArea {
					t.Errorf("contour %d area = %.0f, want at least %.0f", i, a, tt.minArea)
				}
			}
		})
	}
}

func TestSegmenter_Mask(t *testing.T) {
	if testing.Short() {
		t.Skip("requires OpenCV")
	}
	s := testscene.DefaultScene()
	frame := s.Frame()
	defer frame.Close()

	mask, err := blackKeys.Mask(frame)
	if err != nil {
		t.Fatalf("Mask() error = %v", err)
	}
	defer mask.Close()

	if mask.Rows() != s.Height || mask.Cols() != s.Width {
		t.Errorf("mask size = %dx%d, want %dx%d", mask.Cols(), mask.Rows(), s.Width, s.Height)
	}
	c := s.BlackKeyCenter(0)
	if mask.GetUCharAt(c.Y, c.X) == 0 {
		t.Error("expected black key center to be set in the mask")
	}
	w := s.WhiteKeyPoint(0)
	if mask.GetUCharAt(w.Y, w.X) != 0 {
		t.Error("expected white key to be clear in the mask")
	}
}

func TestDrawKeyboard(t *testing.T) {
	if testing.Short() {
		t.Skip("requires OpenCV")
	}
	s := testscene.DefaultScene()
	m, err := s.Model()
	if err != nil {
		t.Fatalf("Model() error = %v", err)
	}

	t.Run("nil model leaves the frame alone", func(t *testing.T) {
		frame := s.Frame()
		defer frame.Close()
		before := frame.Clone()
		defer before.Close()

		DrawKeyboard(&frame, nil, nil)

		diff := gocv.NewMat()
		defer diff.Close()
		gocv.AbsDiff(frame, before, &diff)
		gray := gocv.NewMat()
		defer gray.Close()
		gocv.CvtColor(diff, &gray, gocv.ColorBGRToGray)
		if gocv.CountNonZero(gray) != 0 {
			t.Error("expected no pixels to change")
		}
	})

	t.Run("pressed key is filled", func(t *testing.T) {
		frame := s.Frame()
		defer frame.Close()

		DrawKeyboard(&frame, m, []int{1})

		// Off center, clear of the white key split under the black key.
		c := s.BlackKeyCenter(0)
		v := frame.GetVecbAt(c.Y, c.X+3)
		// BGR of pressedColor.
		if v[0] != 0 || v[1] != 0 || v[2] != 255 {
			t.Errorf("pixel at key 1 = %v, want pressed color", v)
		}
		if k, ok := m.Key(1); !ok || k.Color != keyboard.Black {
			t.Errorf("expected key 1 to be black, got %+v", k)
		}
	})
}
