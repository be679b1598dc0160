package vision

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/ivory/internal/keyboard"
)

var (
	perimeterColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	whiteKeyColor  = color.RGBA{R: 255, G: 160, B: 0, A: 0}
	blackKeyColor  = color.RGBA{R: 255, G: 0, B: 255, A: 0}
	pressedColor   = color.RGBA{R: 255, G: 0, B: 0, A: 0}
)

// DrawKeyboard outlines the corrected perimeter and every key of m on img,
// filling the keys listed in pressed.
func DrawKeyboard(img *gocv.Mat, m *keyboard.Model, pressed []int) {
	if m == nil || img.Empty() {
		return
	}

	down := make(map[int]bool, len(pressed))
	for _, k := range pressed {
		down[k] = true
	}

	for _, k := range m.Keys() {
		pts := gocv.NewPointsVectorFromPoints([][]image.Point{m.CameraPolygon(k).ImagePoints()})
		c := whiteKeyColor
		if k.Color == keyboard.Black {
			c = blackKeyColor
		}
		if down[k.Number] {
			gocv.FillPoly(img, pts, pressedColor)
		}
		gocv.Polylines(img, pts, true, c, 1)
		pts.Close()
	}

	perimeter := m.Orientation().ApplyPolygon(m.Perimeter())
	pts := gocv.NewPointsVectorFromPoints([][]image.Point{perimeter.ImagePoints()})
	defer pts.Close()
	gocv.Polylines(img, pts, true, perimeterColor, 2)
}
