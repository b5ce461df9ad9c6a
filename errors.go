package pe

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNotAnImage        = errors.New("not a PE image")
	ErrNoExports         = errors.New("image has no export directory")
	ErrTruncated         = errors.New("reading data outside boundary")
	ErrOrdinalOutOfRange = errors.New("export ordinal out of range")
	ErrDuplicateName     = errors.New("duplicate export name")
)

var ErrUnsupportedPlatform = errors.New("loading modules is only supported on windows")

// DecodeError reports where in the image a decode failure happened.
// Err is always one of the sentinel errors above, so callers match with
// errors.Is.
type DecodeError struct {
	Err    error
	Field  string
	Offset uint64

	// Name is set for ErrDuplicateName, Index for ErrOrdinalOutOfRange.
	Name  string
	Index uint32
}

func (e *DecodeError) Error() string {
	switch e.Err {
	case ErrDuplicateName:
		return fmt.Sprintf("%v: %q (%s at 0x%x)", e.Err, e.Name, e.Field, e.Offset)
	case ErrOrdinalOutOfRange:
		return fmt.Sprintf("%v: index %d (%s at 0x%x)", e.Err, e.Index, e.Field, e.Offset)
	}
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s at 0x%x", e.Err, e.Field, e.Offset)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Cause lets github.com/pkg/errors.Cause reach the sentinel.
func (e *DecodeError) Cause() error { return e.Err }

func truncated(field string, offset uint64) error {
	return &DecodeError{Err: ErrTruncated, Field: field, Offset: offset}
}

func notAnImage(field string, offset uint64) error {
	return &DecodeError{Err: ErrNotAnImage, Field: field, Offset: offset}
}
