// Package extensions implements the typed extended message values the
// client exchanges with directory servers that support them.
//
// Each value type is a pure encode/decode pair on top of the ber codec:
// it is constructed from typed fields for the outbound direction and
// reconstructed from a generic protocol envelope for the inbound one.
// Values are immutable once constructed.
//
// Encoding uses the canonical field order (the required field first, then
// optional fields in ascending tag order) and enforces cross-field
// invariants before producing any bytes. Decoding dispatches on each
// child element's tag; a tag outside the closed set of a complete value
// type fails with UnexpectedTypeError, while variants with an active
// extension point skip unknown trailing elements instead.
package extensions
