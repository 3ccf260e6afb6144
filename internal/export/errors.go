package export

import (
	"errors"
	"fmt"
)

var (
	ErrPrecondition       = errors.New("export precondition failed")
	ErrMediaLoad          = errors.New("media load failed")
	ErrPlaybackRejected   = errors.New("playback rejected")
	ErrEncoderUnavailable = errors.New("encoder unavailable")
	ErrCaptureFailed      = errors.New("frame capture failed")
	ErrCancelled          = errors.New("export cancelled")
)

// Error is a stage-aware export failure. It matches both its Kind and the
// underlying cause with errors.Is.
type Error struct {
	Kind  error
	State State
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.State, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.State, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func newError(kind error, state State, err error) *Error {
	return &Error{Kind: kind, State: state, Err: err}
}
