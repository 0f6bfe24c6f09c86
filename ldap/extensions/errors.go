package extensions

import (
	"errors"
	"fmt"
)

// ErrUnexpectedType is the sentinel matched by decode failures caused by
// a tag outside the closed set a value type expects.
var ErrUnexpectedType = errors.New("extensions: unexpected element type")

// UnexpectedTypeError reports the offending tag and the value type that
// rejected it.
type UnexpectedTypeError struct {
	ValueType string // Name of the value type being decoded
	Tag       byte   // The unrecognized tag
}

// Error implements the error interface.
func (e *UnexpectedTypeError) Error() string {
	return fmt.Sprintf("extensions: %s value contains element with unexpected type 0x%02x", e.ValueType, e.Tag)
}

// Is allows UnexpectedTypeError to match ErrUnexpectedType with errors.Is.
func (e *UnexpectedTypeError) Is(target error) bool {
	return target == ErrUnexpectedType
}
