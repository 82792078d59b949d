package sequencer

import (
	"errors"
	"fmt"
)

// Sentinel errors for expected failure modes
var (
	ErrAssetUnavailable = errors.New("voice asset unavailable")
	ErrUnknownVoice     = errors.New("unknown voice")
	ErrInvalidTempo     = errors.New("tempo must be a positive number of beats per minute")
	ErrDestroyed        = errors.New("scheduler destroyed")
)

// ResourceError means the output device could not be acquired.
type ResourceError struct {
	Device string // "audio", "midi:<port>"
	Err    error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("acquire %s device: %v", e.Device, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// DispatchError is a failed hand-off of a due event to the sink.
// It ends the running session.
type DispatchError struct {
	Voice    Voice
	Position float64 // absolute beat position
	At       float64 // sink time, seconds
	Err      error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s at beat %.3f (t=%.3fs): %v", e.Voice, e.Position, e.At, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// NewResourceError creates a ResourceError
func NewResourceError(device string, err error) *ResourceError {
	return &ResourceError{Device: device, Err: err}
}
