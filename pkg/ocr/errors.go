package ocr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidImage is returned when the input cannot be decoded or has a
	// zero-sized canvas. The pipeline stops before normalization.
	ErrInvalidImage = errors.New("invalid image")

	// ErrRecognitionFailure is matched by every error coming out of a
	// Recognizer. It is never reported as empty text.
	ErrRecognitionFailure = errors.New("recognition failed")

	// ErrInvalidConfig is returned when a Config or NormalizeConfig is unusable
	ErrInvalidConfig = errors.New("invalid ocr config")
)

// RecognitionError wraps a failure reported by a recognition engine.
type RecognitionError struct {
	Engine string
	Err    error
}

func (e *RecognitionError) Error() string {
	if e.Engine == "" {
		return fmt.Sprintf("%s: %v", ErrRecognitionFailure, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", ErrRecognitionFailure, e.Engine, e.Err)
}

// Unwrap returns the engine's underlying error.
func (e *RecognitionError) Unwrap() error {
	return e.Err
}

// Is reports ErrRecognitionFailure as a match so callers can use errors.Is.
func (e *RecognitionError) Is(target error) bool {
	return target == ErrRecognitionFailure
}

func invalidImagef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidImage, fmt.Sprintf(format, args...))
}
