package model

import (
	"github.com/pkg/errors"
)

var (
	// ErrTransportClosed is returned when the connection to the client is gone.
	ErrTransportClosed = errors.New("transport closed")

	// ErrRecognitionAborted marks a recognition stream that ended because the
	// session was stopped on purpose.
	ErrRecognitionAborted = errors.New("recognition aborted")
)

// RecognitionError is a failure of the recognition stream while the session
// was still listening.
type RecognitionError struct {
	Provider string
	Err      error
}

func (e *RecognitionError) Error() string {
	return "recognition failed (" + e.Provider + "): " + e.Err.Error()
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// GenerationError is a failure of the response engine. The turn is dropped.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return "generation failed (" + e.Provider + "): " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error { return e.Err }

// SynthesisError is a failure of the speech engine. Only audio is skipped.
type SynthesisError struct {
	Provider string
	Err      error
}

func (e *SynthesisError) Error() string {
	return "synthesis failed (" + e.Provider + "): " + e.Err.Error()
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// NewGenerationError wraps err with context and tags it as a generation failure.
func NewGenerationError(provider string, err error, msg string) error {
	return &GenerationError{Provider: provider, Err: errors.Wrap(err, msg)}
}

// NewSynthesisError wraps err with context and tags it as a synthesis failure.
func NewSynthesisError(provider string, err error, msg string) error {
	return &SynthesisError{Provider: provider, Err: errors.Wrap(err, msg)}
}

// NewRecognitionError wraps err with context and tags it as a recognition failure.
func NewRecognitionError(provider string, err error, msg string) error {
	return &RecognitionError{Provider: provider, Err: errors.Wrap(err, msg)}
}

// IsGenerationError reports whether err is, or wraps, a GenerationError.
func IsGenerationError(err error) bool {
	var target *GenerationError
	return errors.As(err, &target)
}

// IsSynthesisError reports whether err is, or wraps, a SynthesisError.
func IsSynthesisError(err error) bool {
	var target *SynthesisError
	return errors.As(err, &target)
}

// IsRecognitionError reports whether err is, or wraps, a RecognitionError.
func IsRecognitionError(err error) bool {
	var target *RecognitionError
	return errors.As(err, &target)
}
