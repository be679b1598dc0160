package calibration

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ayusman/ivory/internal/geometry"
	"github.com/ayusman/ivory/internal/keyboard"
	"github.com/ayusman/ivory/internal/observe"
)

// DefaultMaxAttempts bounds a calibration run when no limit is configured.
const DefaultMaxAttempts = 10

// State is a calibration supervisor state.
type State string

const (
	StateIdle       State = "idle"
	StateSampling   State = "sampling"
	StateValidating State = "validating"
	StateAccepted   State = "accepted"
	StateRetrying   State = "retrying"
)

// Sampler produces a perimeter quad in camera space.
type Sampler interface {
	SampleQuad(ctx context.Context) (keyboard.PerimeterQuad, error)
}

// BlackKeySource produces candidate black-key contours in camera space.
type BlackKeySource interface {
	BlackKeyContours(ctx context.Context) ([]geometry.Polygon, error)
}

// Signaler forwards calibration failure codes to the receiver.
type Signaler interface {
	SignalError(code Code) error
}

// Confirmer asks the operator to accept or reject a sampled perimeter.
type Confirmer interface {
	Confirm(ctx context.Context, q keyboard.PerimeterQuad) (bool, error)
}

// Supervisor drives calibration attempts until a model is built, the attempt
// budget runs out, or the timeout passes.
//
// A failed perimeter is resampled from scratch. A failed black-key pass keeps
// the accepted perimeter and only retakes the black-key frame.
type Supervisor struct {
	Sampler   Sampler
	BlackKeys BlackKeySource
	Builder   *keyboard.Builder

	// Signaler and Confirmer are optional.
	Signaler  Signaler
	Confirmer Confirmer

	// MaxAttempts defaults to DefaultMaxAttempts when zero.
	MaxAttempts int
	// Timeout, when positive, bounds the whole run.
	Timeout time.Duration

	Metrics *observe.Metrics
	// OnState, when set, observes every state transition.
	OnState func(State)
}

// Run calibrates and returns the accepted model. Recoverable failures are
// signalled and retried. The result wraps ErrAttemptsExhausted or ErrTimedOut
// together with the last attempt's error when the run gives up.
func (s *Supervisor) Run(ctx context.Context) (*keyboard.Model, error) {
	start := time.Now()
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	maxAttempts := s.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	s.enter(StateIdle)

	var (
		quad    keyboard.PerimeterQuad
		hasQuad bool
		lastErr error
	)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) && s.Timeout > 0 {
				return nil, errors.Join(ErrTimedOut, lastErr)
			}
			return nil, err
		}
		if attempt > maxAttempts {
			return nil, errors.Join(ErrAttemptsExhausted, lastErr)
		}

		s.enter(StateSampling)
		model, err := s.attempt(ctx, &quad, &hasQuad)
		if err == nil {
			s.enter(StateAccepted)
			s.record(ctx, "accepted", 0)
			if s.Metrics != nil {
				s.Metrics.CalibrationDuration.Record(ctx, time.Since(start).Seconds())
			}
			log.Printf("calibration: accepted after %d attempt(s)", attempt)
			return model, nil
		}

		if ctx.Err() != nil {
			// Re-checked at the top of the loop.
			lastErr = err
			continue
		}

		if errors.Is(err, errRejected) {
			log.Printf("calibration: attempt %d: perimeter rejected by operator", attempt)
			s.record(ctx, "rejected", 0)
			lastErr = err
			s.enter(StateRetrying)
			continue
		}

		code, ok := CodeOf(err)
		if !ok {
			return nil, fmt.Errorf("calibration attempt %d: %w", attempt, err)
		}
		log.Printf("calibration: attempt %d failed: %v", attempt, err)
		s.record(ctx, "failed", int(code))
		s.signal(code)
		lastErr = err
		s.enter(StateRetrying)
	}
}

var errRejected = errors.New("perimeter rejected by operator")

func (s *Supervisor) attempt(ctx context.Context, quad *keyboard.PerimeterQuad, hasQuad *bool) (*keyboard.Model, error) {
	if !*hasQuad {
		q, err := s.Sampler.SampleQuad(ctx)
		if err != nil {
			return nil, err
		}

		s.enter(StateValidating)
		if _, err := s.Builder.Perimeter(q); err != nil {
			return nil, &CalibrationError{Code: CodeCorners, Stage: "perimeter", Err: err}
		}
		if s.Confirmer != nil {
			ok, err := s.Confirmer.Confirm(ctx, q)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, errRejected
			}
		}
		*quad = q
		*hasQuad = true
	} else {
		s.enter(StateValidating)
	}

	contours, err := s.BlackKeys.BlackKeyContours(ctx)
	if err != nil {
		return nil, err
	}
	model, err := s.Builder.Build(*quad, contours)
	var countErr *keyboard.BlackKeyCountError
	if errors.As(err, &countErr) {
		return nil, &CalibrationError{Code: CodeBlackKeys, Stage: "black keys", Found: countErr.Found, Err: err}
	}
	if err != nil {
		return nil, err
	}
	return model, nil
}

func (s *Supervisor) enter(st State) {
	if s.OnState != nil {
		s.OnState(st)
	}
}

func (s *Supervisor) record(ctx context.Context, result string, code int) {
	if s.Metrics != nil {
		s.Metrics.RecordCalibrationAttempt(ctx, result, code)
	}
}

func (s *Supervisor) signal(code Code) {
	if s.Signaler == nil {
		return
	}
	if err := s.Signaler.SignalError(code); err != nil {
		log.Printf("calibration: signal code %s: %v", code.Display(), err)
	}
}
