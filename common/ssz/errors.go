package ssz

import (
	"errors"
	"fmt"
)

// Sentinel decode failures. Every error returned by a decoder in this module
// unwraps to one of them; a truncated bitfield body unwraps to both
// ErrTooShort and ErrInvalidLength.
var (
	ErrTooShort      = errors.New("ssz: too short")      // fewer bytes than an accompanying bit count requires
	ErrInvalidLength = errors.New("ssz: invalid length") // length prefix exceeds remaining bytes
	ErrMalformed     = errors.New("ssz: malformed")      // fixed-width read past the end, or non-canonical bytes
)

// DecodeError describes where decoding stopped.
type DecodeError struct {
	Err    error
	Offset int
	Need   int
	Have   int
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%v at offset %d: %s", e.Err, e.Offset, e.Reason)
	}
	return fmt.Sprintf("%v at offset %d: need %d bytes, have %d", e.Err, e.Offset, e.Need, e.Have)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func errShort(kind error, offset, need, have int) error {
	return &DecodeError{Err: kind, Offset: offset, Need: need, Have: have}
}

// Malformed returns a DecodeError for non-canonical input.
func Malformed(offset int, reason string) error {
	return &DecodeError{Err: ErrMalformed, Offset: offset, Reason: reason}
}

// TooShort returns a DecodeError for input shorter than a bit count requires.
func TooShort(offset, need, have int) error {
	return errShort(ErrTooShort, offset, need, have)
}

// ShortBody marks an ErrInvalidLength failure as ErrTooShort as well. It is
// used where the length prefix also fixes a bit count. Other errors are
// returned unchanged.
func ShortBody(err error) error {
	var de *DecodeError
	if !errors.As(err, &de) || de.Err != ErrInvalidLength {
		return err
	}
	short := *de
	short.Err = fmt.Errorf("%w: %w", ErrTooShort, ErrInvalidLength)
	return &short
}
