// Package vision isolates colored regions in camera frames and returns their
// outlines as pixel polygons.
package vision

import (
	"errors"
	"image"

	"gocv.io/x/gocv"

	"github.com/ayusman/ivory/internal/geometry"
)

// ErrEmptyFrame is returned when a frame has no pixel data.
var ErrEmptyFrame = errors.New("frame is empty")

// HSV is an inclusive hue/saturation/value bound. Hue follows OpenCV's 0-179
// range, saturation and value 0-255.
type HSV struct {
	H float64 `yaml:"h" json:"h"`
	S float64 `yaml:"s" json:"s"`
	V float64 `yaml:"v" json:"v"`
}

func (c HSV) scalar() gocv.Scalar {
	return gocv.NewScalar(c.H, c.S, c.V, 0)
}

// Segmenter extracts the external contours of every region whose color lies
// within [Lower, Upper].
type Segmenter struct {
	Lower HSV
	Upper HSV
	// Kernel is the side length of the square structuring element used for
	// the close-then-open noise removal.
	Kernel int
}

// Mask returns the cleaned binary mask for frame. The caller must close it.
func (s Segmenter) Mask(frame gocv.Mat) (gocv.Mat, error) {
	if frame.Empty() {
		return gocv.NewMat(), ErrEmptyFrame
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	gocv.InRangeWithScalar(hsv, s.Lower.scalar(), s.Upper.scalar(), &mask)

	size := s.Kernel
	if size < 1 {
		size = 1
	}
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: size, Y: size})
	defer kernel.Close()

	// Close small gaps, then remove speckle
	gocv.MorphologyEx(mask, &mask, gocv.MorphClose, kernel)
	gocv.MorphologyEx(mask, &mask, gocv.MorphOpen, kernel)

	return mask, nil
}

// Contours returns the external contours of the matching regions in frame,
// with simple chain approximation, in OpenCV's discovery order.
func (s Segmenter) Contours(frame gocv.Mat) ([]geometry.Polygon, error) {
	mask, err := s.Mask(frame)
	defer mask.Close()
	if err != nil {
		return nil, err
	}

	found := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer found.Close()

	contours := make([]geometry.Polygon, 0, found.Size())
	for i := 0; i < found.Size(); i++ {
		pv := found.At(i)
		poly := make(geometry.Polygon, 0, pv.Size())
		for _, p := range pv.ToPoints() {
			poly = append(poly, geometry.Pt(p.X, p.Y))
		}
		contours = append(contours, poly)
	}

	return contours, nil
}
