package ber

// Tag class constants (bits 7-8 of the tag byte)
const (
	ClassUniversal       = 0x00 // 00xxxxxx
	ClassApplication     = 0x40 // 01xxxxxx
	ClassContextSpecific = 0x80 // 10xxxxxx
	ClassPrivate         = 0xC0 // 11xxxxxx
)

// Constructed flag (bit 6 of the tag byte)
const (
	TypePrimitive   = 0x00 // xx0xxxxx
	TypeConstructed = 0x20 // xx1xxxxx
)

// Universal tags used by the protocol. TagSequence already includes the
// constructed bit since a sequence is never primitive.
const (
	TagBoolean     = 0x01
	TagInteger     = 0x02
	TagOctetString = 0x04
	TagEnumerated  = 0x0A
	TagSequence    = 0x30 // 0x10 | TypeConstructed
)

// Length encoding constants
const (
	// lengthLongFormBit indicates long form length encoding (bit 8 set)
	lengthLongFormBit = 0x80
	// maxShortFormLength is the maximum length encodable in short form
	maxShortFormLength = 127
	// maxLengthBytes bounds the long form: the protocol never needs
	// values beyond 4 length bytes, anything longer is rejected
	maxLengthBytes = 4
	// maxElementSize bounds the declared length of an element read from
	// a stream. The length arrives before any payload byte and is under
	// the remote side's control, so stream reads refuse anything larger
	// before allocating.
	maxElementSize = 1 << 24
)

// Element is a single TLV node. The payload of a constructed element is
// the concatenation of its children's full encodings; the encoded length
// always equals the byte length of the payload.
type Element struct {
	tag   byte
	value []byte
}

// --------------------------------------------------------------------------
// Constructors
// --------------------------------------------------------------------------

// NewElement wraps raw bytes with the given tag.
func NewElement(tag byte, value []byte) Element {
	return Element{tag: tag, value: value}
}

// NewOctetString creates a universal OCTET STRING element.
func NewOctetString(s string) Element {
	return Element{tag: TagOctetString, value: []byte(s)}
}

// NewTaggedOctetString creates a primitive octet string element with an
// explicit (typically context-specific) tag.
func NewTaggedOctetString(tag byte, s string) Element {
	return Element{tag: tag, value: []byte(s)}
}

// NewInteger creates a universal INTEGER element with a minimal two's
// complement payload.
func NewInteger(v int64) Element {
	return Element{tag: TagInteger, value: encodeInt(v)}
}

// NewEnumerated creates a universal ENUMERATED element. Enumerated values
// are encoded identically to integers.
func NewEnumerated(v int64) Element {
	return Element{tag: TagEnumerated, value: encodeInt(v)}
}

// NewSequence creates a universal SEQUENCE from the given children. The
// payload is each child's full encoding concatenated in order.
func NewSequence(elements ...Element) Element {
	return NewTaggedSequence(TagSequence, elements...)
}

// NewTaggedSequence creates a constructed element with an explicit tag.
// The constructed bit is forced on since the payload holds child elements.
func NewTaggedSequence(tag byte, elements ...Element) Element {
	size := 0
	for _, el := range elements {
		size += el.EncodedLength()
	}

	value := make([]byte, 0, size)
	for _, el := range elements {
		value = el.appendTo(value)
	}

	return Element{tag: tag | TypeConstructed, value: value}
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// Tag returns the tag byte (class, constructed bit and number combined).
func (e Element) Tag() byte {
	return e.tag
}

// Value returns the raw payload bytes.
func (e Element) Value() []byte {
	return e.value
}

// StringValue interprets the payload as a UTF-8 string.
func (e Element) StringValue() string {
	return string(e.value)
}

// IntValue interprets the payload as a two's complement integer. This is
// valid for INTEGER and ENUMERATED elements.
func (e Element) IntValue() (int64, error) {
	if len(e.value) == 0 {
		return 0, malformed(0, "integer must have at least 1 byte")
	}
	if len(e.value) > 8 {
		return 0, malformed(0, "integer too large for int64 (%d bytes)", len(e.value))
	}

	var result int64
	if e.value[0]&0x80 != 0 {
		// Sign extension for negative values
		result = -1
	}
	for _, b := range e.value {
		result = (result << 8) | int64(b)
	}
	return result, nil
}

// IsConstructed reports whether the constructed bit is set in the tag.
func (e Element) IsConstructed() bool {
	return e.tag&TypeConstructed != 0
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// EncodedLength returns the total size of the encoded element including
// the tag and length bytes.
func (e Element) EncodedLength() int {
	return 1 + lengthSize(len(e.value)) + len(e.value)
}

// Encode serializes the element as tag + length + payload.
func (e Element) Encode() []byte {
	return e.appendTo(make([]byte, 0, e.EncodedLength()))
}

// appendTo appends the full encoding of the element to dst.
func (e Element) appendTo(dst []byte) []byte {
	dst = append(dst, e.tag)
	dst = appendLength(dst, len(e.value))
	return append(dst, e.value...)
}

// lengthSize returns the number of bytes needed to encode a length value.
func lengthSize(length int) int {
	if length <= maxShortFormLength {
		return 1
	}
	n := 1
	for temp := length; temp > 0; temp >>= 8 {
		n++
	}
	return n
}

// appendLength appends the short or long form encoding of length to dst.
func appendLength(dst []byte, length int) []byte {
	// Short form: length fits in 7 bits
	if length <= maxShortFormLength {
		return append(dst, byte(length))
	}

	// Long form: first byte indicates the number of length bytes
	numBytes := 0
	for temp := length; temp > 0; temp >>= 8 {
		numBytes++
	}
	dst = append(dst, byte(lengthLongFormBit|numBytes))
	for i := numBytes - 1; i >= 0; i-- {
		dst = append(dst, byte(length>>(i*8)))
	}
	return dst
}

// encodeInt encodes an int64 as a minimal two's complement byte slice.
func encodeInt(v int64) []byte {
	if v == 0 {
		return []byte{0x00}
	}

	// Write out all 8 bytes, then strip redundant leading bytes while
	// preserving the sign bit.
	buf := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}

	start := 0
	for start < 7 {
		if buf[start] == 0x00 && buf[start+1]&0x80 == 0 {
			start++
			continue
		}
		if buf[start] == 0xFF && buf[start+1]&0x80 != 0 {
			start++
			continue
		}
		break
	}
	return buf[start:]
}
