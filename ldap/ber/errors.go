package ber

import (
	"errors"
	"fmt"
)

// ErrMalformedEncoding is the sentinel every decoding failure of this
// package matches with errors.Is. The raw bytes do not form a valid TLV
// structure and the decode is abandoned, never partially recovered.
var ErrMalformedEncoding = errors.New("ber: malformed encoding")

// MalformedEncodingError carries the byte offset at which decoding failed.
type MalformedEncodingError struct {
	Offset  int    // Byte offset where the error occurred
	Message string // Human-readable error description
}

// Error implements the error interface.
func (e *MalformedEncodingError) Error() string {
	return fmt.Sprintf("ber: malformed encoding at offset %d: %s", e.Offset, e.Message)
}

// Is allows MalformedEncodingError to match ErrMalformedEncoding with errors.Is.
func (e *MalformedEncodingError) Is(target error) bool {
	return target == ErrMalformedEncoding
}

// malformed creates a MalformedEncodingError for the given offset.
func malformed(offset int, format string, args ...interface{}) error {
	return &MalformedEncodingError{
		Offset:  offset,
		Message: fmt.Sprintf(format, args...),
	}
}
