package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/ivory/internal/capture"
	"github.com/ayusman/ivory/internal/detector"
	"github.com/ayusman/ivory/internal/keyboard"
)

// readRetryDelay is the pause after a failed camera read.
const readRetryDelay = 100 * time.Millisecond

// Run opens the camera, makes sure a keyboard model is available, then
// processes frames until ctx is cancelled or a non-looping camera runs out
// of frames.
//
// Pipeline logic:
// 1. Load the saved calibration, or calibrate before the first frame
// 2. Read a frame (blocking; a stalled camera stalls the loop)
// 3. Detect hands and reduce them to fingertip samples
// 4. Match the fingertips against the model
// 5. Dispatch the result without waiting for delivery
// 6. Serve a pending recalibration request between frames
func (a *App) Run(ctx context.Context) error {
	if !a.camera.IsOpen() {
		if err := a.camera.Open(); err != nil {
			return fmt.Errorf("open camera: %w", err)
		}
	}

	if a.Model() == nil && !a.loadSaved() {
		if _, err := a.Calibrate(ctx); err != nil {
			return fmt.Errorf("initial calibration: %w", err)
		}
	}

	log.Println("Frame loop started")
	defer log.Println("Frame loop stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.recalibrate:
			if _, err := a.Calibrate(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Printf("Recalibration failed, keeping the previous model: %v", err)
			}
			continue
		default:
		}

		frame, err := a.camera.ReadFrame()
		if err != nil {
			if errors.Is(err, capture.ErrNoMoreFrames) {
				return nil
			}
			log.Printf("Error reading frame: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(readRetryDelay):
			}
			continue
		}

		a.processFrame(ctx, frame)
		frame.Close()
	}
}

// processFrame matches one frame and hands the result to the transport.
func (a *App) processFrame(ctx context.Context, frame *gocv.Mat) {
	a.frames.Publish(frame)

	a.mu.RLock()
	matcher := a.matcher
	enabled := a.enabled
	onResult := a.onResult
	a.mu.RUnlock()

	if !enabled || matcher == nil {
		return
	}

	hands, err := a.detector.Detect(frame)
	if err != nil {
		log.Printf("Error detecting hands: %v", err)
		return
	}
	samples := detector.Fingertips(hands, frame.Cols(), frame.Rows(), a.settings.Camera.Orientation)

	start := time.Now()
	result := matcher.Match(samples)
	a.metrics.MatchDuration.Record(ctx, time.Since(start).Seconds())
	a.metrics.FramesProcessed.Add(ctx, 1)
	if n := len(result.Pressed()); n > 0 {
		a.metrics.FingertipsMatched.Add(ctx, int64(n))
	}

	a.mu.Lock()
	a.lastResult = result
	a.mu.Unlock()

	a.dispatcher.Dispatch(result)
	if onResult != nil {
		onResult(result)
	}
}

// Matcher returns the matcher for the model in use, or nil.
func (a *App) Matcher() *keyboard.Matcher {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.matcher
}
