package calibration

import (
	"context"

	"gocv.io/x/gocv"

	"github.com/ayusman/ivory/internal/capture"
	"github.com/ayusman/ivory/internal/geometry"
	"github.com/ayusman/ivory/internal/vision"
)

// BlackKeySampler reads a steady frame and returns the outlines of all dark
// regions in it. Filtering against the perimeter happens in the builder.
type BlackKeySampler struct {
	Camera    capture.Camera
	Segmenter vision.Segmenter
	// Motion, when set, is used to skip frames taken while the keyboard or
	// camera is still moving. At most WarmupFrames frames are discarded.
	Motion       *capture.MotionDetector
	WarmupFrames int
}

// BlackKeyContours implements BlackKeySource.
func (s *BlackKeySampler) BlackKeyContours(ctx context.Context) ([]geometry.Polygon, error) {
	frame, err := s.steadyFrame(ctx)
	if err != nil {
		return nil, err
	}
	defer frame.Close()

	contours, err := s.Segmenter.Contours(*frame)
	if err != nil {
		return nil, &CalibrationError{Code: CodeEmptyFrame, Stage: "black key frame", Err: err}
	}
	return contours, nil
}

func (s *BlackKeySampler) steadyFrame(ctx context.Context) (*gocv.Mat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		frame *gocv.Mat
		err   error
	)
	if s.Motion != nil {
		frame, err = s.Motion.NextStill(s.Camera, s.WarmupFrames)
	} else {
		frame, err = s.Camera.ReadFrame()
	}
	if err != nil {
		return nil, &CalibrationError{Code: CodeEmptyFrame, Stage: "black key frame", Err: err}
	}
	return frame, nil
}
