// Package ber implements the tag-length-value encoding (ASN.1 BER as
// specified in ITU-T X.690) that every protocol message value in this
// library is built on.
//
// The central type is Element: a single TLV node with a one-byte tag and a
// payload that is either raw bytes (primitive) or the concatenated
// encodings of child elements (constructed). Higher-level value types are
// expressed purely in terms of elements so that adding a new message type
// never touches low-level byte handling.
//
// # Encoding
//
// Elements are built with the constructor functions and serialized with
// Encode:
//
//	el := ber.NewSequence(
//		ber.NewOctetString("email"),
//		ber.NewTaggedOctetString(0x80, "jdoe@example.com"),
//	)
//	data := el.Encode()
//
// # Decoding
//
// Decode parses exactly one element and rejects trailing garbage.
// DecodeSequence splits a constructed element into its children and fails
// if a child overruns the payload or leftover bytes remain:
//
//	el, err := ber.Decode(data)
//	if err != nil {
//		// handle ErrMalformedEncoding
//	}
//	children, err := el.DecodeSequence()
//
// ReadElement provides the same parsing directly from a stream, which is
// how connections frame protocol messages on the wire.
//
// # References
//
//   - ITU-T X.690: ASN.1 encoding rules
//   - RFC 4511: LDAP protocol (uses BER encoding)
package ber
