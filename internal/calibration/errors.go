// Package calibration derives the keyboard's perimeter from camera input and
// drives repeated attempts until a complete keyboard model is built.
package calibration

import (
	"errors"
	"fmt"
	"strconv"
)

// Code is the numeric calibration failure code reported to the transport
// collaborator.
type Code int

const (
	CodeEmptyFrame      Code = 0
	CodeTooFewMarkers   Code = 1
	CodeXRange          Code = 2
	CodeAreaOrSkew      Code = 3
	CodePairing         Code = 4
	CodeCorners         Code = 5
	CodeYRange          Code = 6
	CodeBlackKeys       Code = 7
	CodeFingertipAbsent Code = 8
)

// Display returns the code as operators know it; the y-range gate is shown
// as 2.1 but transmitted as 6.
func (c Code) Display() string {
	if c == CodeYRange {
		return "2.1"
	}
	return strconv.Itoa(int(c))
}

func (c Code) String() string {
	switch c {
	case CodeEmptyFrame:
		return "empty frame"
	case CodeTooFewMarkers:
		return "too few markers"
	case CodeXRange:
		return "x-range gate"
	case CodeAreaOrSkew:
		return "area or skew gate"
	case CodePairing:
		return "pairing gate"
	case CodeCorners:
		return "ambiguous corners"
	case CodeYRange:
		return "y-range gate"
	case CodeBlackKeys:
		return "black key count"
	case CodeFingertipAbsent:
		return "fingertip not detected"
	}
	return "code " + strconv.Itoa(int(c))
}

var (
	// ErrAttemptsExhausted is returned when every allowed attempt failed.
	ErrAttemptsExhausted = errors.New("calibration attempts exhausted")
	// ErrTimedOut is returned when calibration ran past its deadline.
	ErrTimedOut = errors.New("calibration timed out")
)

// CalibrationError is a recoverable failure of one calibration attempt.
type CalibrationError struct {
	Code  Code
	Stage string
	// Found is the number of candidates that survived the failing stage.
	Found int
	Err   error
}

func (e *CalibrationError) Error() string {
	msg := fmt.Sprintf("calibration failed at %s (code %s)", e.Stage, e.Code.Display())
	if e.Found > 0 {
		msg += fmt.Sprintf(": %d candidates left", e.Found)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CalibrationError) Unwrap() error { return e.Err }

func gateError(code Code, stage string, found int) *CalibrationError {
	return &CalibrationError{Code: code, Stage: stage, Found: found}
}

// CodeOf extracts the calibration code from err.
func CodeOf(err error) (Code, bool) {
	var ce *CalibrationError
	if errors.As(err, &ce) {
		return ce.Code, true
	}
	return 0, false
}
