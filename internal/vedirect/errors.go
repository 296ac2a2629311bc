package vedirect

import (
	"errors"
	"fmt"
)

// Sentinel errors. Frame and field errors wrap one of these, so callers
// classify failures with errors.Is.
var (
	ErrMalformedField        = errors.New("vedirect: malformed field")
	ErrChecksumMismatch      = errors.New("vedirect: checksum mismatch")
	ErrUnknownNumericFormat  = errors.New("vedirect: unknown numeric format")
	ErrUnexpectedEndOfStream = errors.New("vedirect: unexpected end of stream")
	ErrDuplicateChecksum     = errors.New("vedirect: duplicate checksum field")
)

// FrameError describes a frame that was discarded. Fields holds whatever
// had been decoded before the failure.
type FrameError struct {
	Err    error
	Label  string // offending label, when known
	Detail string
	Sum    byte // accumulator value when the frame was abandoned
	Fields []Field
}

func (e *FrameError) Error() string {
	msg := e.Err.Error()
	if e.Label != "" {
		msg += fmt.Sprintf(" (label %q)", e.Label)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *FrameError) Unwrap() error { return e.Err }

// FieldError is attached to a Field whose value could not be decoded.
// It matches ErrUnknownNumericFormat as well as the underlying parse error.
type FieldError struct {
	Label string
	Raw   string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vedirect: field %s=%q: %v", e.Label, e.Raw, e.Err)
	}
	return fmt.Sprintf("vedirect: field %s=%q: undecodable value", e.Label, e.Raw)
}

func (e *FieldError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnknownNumericFormat}
	}
	return []error{ErrUnknownNumericFormat, e.Err}
}
