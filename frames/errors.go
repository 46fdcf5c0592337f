package frames

import (
	"errors"
	"fmt"
)

var (
	ErrDirectoryNotFound  = errors.New("directory not found")
	ErrEmptySequence      = errors.New("empty frame sequence")
	ErrInsufficientFrames = errors.New("at least two frames are required")
	ErrDimensionMismatch  = errors.New("frame dimensions mismatch")
	ErrDecodeFailure      = errors.New("unable to decode frame")
	ErrUngroupedFrames    = errors.New("frames without a group key")
	ErrUnorderedSequence  = errors.New("frame sequence is not strictly ordered")
)

// FrameError ties a failure to the frame that caused it.
// Index is the frame position inside its sequence, -1 when unknown.
type FrameError struct {
	Op    string
	Path  string
	Index int
	Err   error
}

func (e *FrameError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s '%s': %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s '%s' (frame %d): %v", e.Op, e.Path, e.Index, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}
