package ber

import (
	"fmt"
	"io"
)

// Decode parses exactly one element from data. It fails with a
// MalformedEncodingError if the data is empty, the length encoding is
// truncated or inconsistent, fewer payload bytes than the declared length
// follow, or bytes remain after the element.
func Decode(data []byte) (Element, error) {
	if len(data) == 0 {
		return Element{}, malformed(0, "cannot read tag: no data")
	}

	el, consumed, err := decodeAt(data, 0)
	if err != nil {
		return Element{}, err
	}
	if consumed != len(data) {
		return Element{}, malformed(consumed, "%d trailing bytes after element", len(data)-consumed)
	}
	return el, nil
}

// DecodeSequence splits the payload of a constructed element into its
// children. It fails if a child's declared length overruns the payload
// boundary or if trailing bytes remain after the last fully-parsed child.
func (e Element) DecodeSequence() ([]Element, error) {
	if !e.IsConstructed() {
		return nil, malformed(0, "element with tag 0x%02x is not constructed", e.tag)
	}

	var elements []Element
	offset := 0
	for offset < len(e.value) {
		el, consumed, err := decodeAt(e.value, offset)
		if err != nil {
			return nil, err
		}
		elements = append(elements, el)
		offset += consumed
	}
	return elements, nil
}

// decodeAt parses one element starting at offset, returning the element
// and the number of bytes it occupied.
func decodeAt(data []byte, offset int) (Element, int, error) {
	start := offset

	if offset >= len(data) {
		return Element{}, 0, malformed(start, "cannot read tag: unexpected end of data")
	}
	tag := data[offset]
	offset++

	length, offset, err := decodeLength(data, offset)
	if err != nil {
		return Element{}, 0, err
	}

	if offset+length > len(data) {
		return Element{}, 0, malformed(start,
			"declared length %d overruns available data (%d bytes left)", length, len(data)-offset)
	}

	value := make([]byte, length)
	copy(value, data[offset:offset+length])

	return Element{tag: tag, value: value}, offset + length - start, nil
}

// decodeLength reads a short or long form length starting at offset and
// returns the length and the new offset.
func decodeLength(data []byte, offset int) (int, int, error) {
	start := offset

	if offset >= len(data) {
		return 0, 0, malformed(start, "cannot read length: unexpected end of data")
	}
	first := data[offset]
	offset++

	// Short form: bit 8 clear, bits 1-7 hold the length
	if first&lengthLongFormBit == 0 {
		return int(first), offset, nil
	}

	// Long form: bits 1-7 hold the number of subsequent length bytes
	numBytes := int(first & 0x7F)
	if numBytes == 0 {
		return 0, 0, malformed(start, "indefinite length not supported")
	}
	if numBytes > maxLengthBytes {
		return 0, 0, malformed(start, "length encoded in %d bytes exceeds maximum of %d", numBytes, maxLengthBytes)
	}
	if offset+numBytes > len(data) {
		return 0, 0, malformed(start, "truncated length encoding")
	}

	length := 0
	for i := 0; i < numBytes; i++ {
		length = (length << 8) | int(data[offset])
		offset++
	}
	return length, offset, nil
}

// ReadElement reads exactly one element from the stream. A clean EOF
// before the first tag byte is returned as io.EOF so callers can detect
// an orderly connection shutdown; any EOF mid-element is malformed.
// Declared lengths above maxElementSize are rejected before the payload
// buffer is allocated since the length field is remote-controlled.
func ReadElement(r io.Reader) (Element, error) {
	var header [1]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return Element{}, io.EOF
		}
		return Element{}, fmt.Errorf("ber: read tag: %w", err)
	}
	tag := header[0]

	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Element{}, malformed(1, "truncated length encoding: %v", err)
	}
	first := header[0]

	length := int(first)
	if first&lengthLongFormBit != 0 {
		numBytes := int(first & 0x7F)
		if numBytes == 0 {
			return Element{}, malformed(1, "indefinite length not supported")
		}
		if numBytes > maxLengthBytes {
			return Element{}, malformed(1, "length encoded in %d bytes exceeds maximum of %d", numBytes, maxLengthBytes)
		}
		buf := make([]byte, numBytes)
		if _, err := io.ReadFull(r, buf); err != nil {
			return Element{}, malformed(1, "truncated length encoding: %v", err)
		}
		length = 0
		for _, b := range buf {
			length = (length << 8) | int(b)
		}
	}

	if length > maxElementSize {
		return Element{}, malformed(1, "declared length %d exceeds maximum element size %d", length, maxElementSize)
	}

	value := make([]byte, length)
	if _, err := io.ReadFull(r, value); err != nil {
		return Element{}, malformed(2, "truncated payload: %v", err)
	}

	return Element{tag: tag, value: value}, nil
}
