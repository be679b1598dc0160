package calibration

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/ivory/internal/geometry"
	"github.com/ayusman/ivory/internal/keyboard"
)

// FingertipSource yields the fingertips visible in the next camera frame.
type FingertipSource interface {
	Fingertips(ctx context.Context) ([]keyboard.FingertipSample, error)
}

// Prompter guides the operator through touch calibration.
type Prompter interface {
	// PromptCorner asks the operator to hold hand's index fingertip on c.
	PromptCorner(c keyboard.Corner, hand keyboard.HandSide)
	// Tick reports how many samples remain for the current corner.
	Tick(remaining int)
}

// TouchStep is one corner of the touch sequence.
type TouchStep struct {
	Corner keyboard.Corner
	Hand   keyboard.HandSide
}

// TouchSequence is the order corners are touched in: the right hand takes the
// treble end, then the left hand the bass end.
var TouchSequence = []TouchStep{
	{keyboard.UpperRight, keyboard.Right},
	{keyboard.LowerRight, keyboard.Right},
	{keyboard.UpperLeft, keyboard.Left},
	{keyboard.LowerLeft, keyboard.Left},
}

// TouchConfig controls touch sampling.
type TouchConfig struct {
	// Ticks is the number of successful samples averaged per corner.
	Ticks int
	// TickInterval is the pause after each successful sample.
	TickInterval time.Duration
	// MissLimit is the number of consecutive frames without the expected
	// fingertip tolerated before the attempt fails.
	MissLimit int
	// LeftBand and RightBand, when set, restrict the camera x at which each
	// hand's fingertip is accepted.
	LeftBand  *Band
	RightBand *Band
}

// DefaultTouchConfig returns five one-second ticks per corner.
func DefaultTouchConfig() TouchConfig {
	return TouchConfig{
		Ticks:        5,
		TickInterval: time.Second,
		MissLimit:    50,
	}
}

// TouchSampler builds the perimeter from the operator's index fingertip held
// on each corner in turn.
type TouchSampler struct {
	Source   FingertipSource
	Prompter Prompter
	Config   TouchConfig
}

// SampleQuad implements Sampler.
func (s *TouchSampler) SampleQuad(ctx context.Context) (keyboard.PerimeterQuad, error) {
	var q keyboard.PerimeterQuad
	for _, step := range TouchSequence {
		p, err := s.sampleCorner(ctx, step)
		if err != nil {
			return keyboard.PerimeterQuad{}, err
		}
		q = q.WithCorner(step.Corner, p)
	}
	return q, nil
}

func (s *TouchSampler) sampleCorner(ctx context.Context, step TouchStep) (geometry.Point, error) {
	if s.Prompter != nil {
		s.Prompter.PromptCorner(step.Corner, step.Hand)
	}

	xs := make([]float64, 0, s.Config.Ticks)
	ys := make([]float64, 0, s.Config.Ticks)
	misses := 0
	for len(xs) < s.Config.Ticks {
		samples, err := s.Source.Fingertips(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return geometry.Point{}, ctx.Err()
			}
			return geometry.Point{}, &CalibrationError{Code: CodeEmptyFrame, Stage: "touch " + string(step.Corner), Err: err}
		}

		sample, ok := s.pick(samples, step.Hand)
		if !ok {
			misses++
			if misses > s.Config.MissLimit {
				return geometry.Point{}, &CalibrationError{
					Code:  CodeFingertipAbsent,
					Stage: "touch " + string(step.Corner),
					Err:   fmt.Errorf("no %s index fingertip in %d frames", step.Hand, misses),
				}
			}
			continue
		}
		misses = 0
		xs = append(xs, float64(sample.X))
		ys = append(ys, float64(sample.Y))
		if s.Prompter != nil {
			s.Prompter.Tick(s.Config.Ticks - len(xs))
		}

		if s.Config.TickInterval > 0 {
			select {
			case <-ctx.Done():
				return geometry.Point{}, ctx.Err()
			case <-time.After(s.Config.TickInterval):
			}
		}
	}

	return geometry.Pt(int(stat.Mean(xs, nil)), int(stat.Mean(ys, nil))), nil
}

func (s *TouchSampler) pick(samples []keyboard.FingertipSample, hand keyboard.HandSide) (keyboard.FingertipSample, bool) {
	band := s.Config.RightBand
	if hand == keyboard.Left {
		band = s.Config.LeftBand
	}
	for _, fs := range samples {
		if fs.Hand != hand || fs.Landmark != keyboard.IndexTip {
			continue
		}
		if band != nil && !band.Contains(fs.X) {
			continue
		}
		return fs, true
	}
	return keyboard.FingertipSample{}, false
}
