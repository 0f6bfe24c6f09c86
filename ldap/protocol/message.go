package protocol

import (
	"fmt"

	"github.com/ValentinKolb/dLDAP/ldap/ber"
)

// Application tags for the protocol operations this client exchanges.
// The constructed bit is part of the tag except for unbind, which
// carries no payload.
const (
	TagBindRequest          byte = ber.ClassApplication | ber.TypeConstructed | 0  // 0x60
	TagBindResponse         byte = ber.ClassApplication | ber.TypeConstructed | 1  // 0x61
	TagUnbindRequest        byte = ber.ClassApplication | 2                        // 0x42
	TagExtendedRequest      byte = ber.ClassApplication | ber.TypeConstructed | 23 // 0x77
	TagExtendedResponse     byte = ber.ClassApplication | ber.TypeConstructed | 24 // 0x78
	TagIntermediateResponse byte = ber.ClassApplication | ber.TypeConstructed | 25 // 0x79
)

// Context-specific tags inside the protocol operations
const (
	typeBindSimple            byte = 0x80
	typeReferral              byte = 0xA3
	typeExtendedRequestName   byte = 0x80
	typeExtendedRequestValue  byte = 0x81
	typeExtendedResponseName  byte = 0x8A
	typeExtendedResponseValue byte = 0x8B
	typeIntermediateRespName  byte = 0x80
	typeIntermediateRespValue byte = 0x81
)

// protocolVersion is the protocol version sent in every bind request.
const protocolVersion = 3

// Result holds the common result fields shared by every response
// operation (RFC 4511 Section 4.1.9).
type Result struct {
	// ResultCode indicates the outcome of the operation
	ResultCode ResultCode
	// MatchedDN contains the DN of the last entry matched during processing
	MatchedDN string
	// DiagnosticMessage contains additional diagnostic information
	DiagnosticMessage string
	// ReferralURLs contains URIs to other servers (optional)
	ReferralURLs []string
}

// ExtendedResult is a generic received extended response. Value is nil
// when the response carried no value at all, which is a legal wire form
// distinct from an empty value.
type ExtendedResult struct {
	Result

	// OID identifies the extended result type ("" if absent)
	OID string
	// Value is the opaque encoded value (nil if absent)
	Value []byte
}

// IntermediateResponse is a generic received intermediate response.
type IntermediateResponse struct {
	// OID identifies the intermediate response type ("" if absent)
	OID string
	// Value is the opaque encoded value (nil if absent)
	Value []byte
}

// --------------------------------------------------------------------------
// Request Encoding
// --------------------------------------------------------------------------

// EncodeBindRequest builds a complete simple-bind message envelope.
func EncodeBindRequest(messageID int64, dn, password string) ber.Element {
	return ber.NewSequence(
		ber.NewInteger(messageID),
		ber.NewTaggedSequence(TagBindRequest,
			ber.NewInteger(protocolVersion),
			ber.NewOctetString(dn),
			ber.NewTaggedOctetString(typeBindSimple, password),
		),
	)
}

// EncodeUnbindRequest builds an unbind message envelope. Unbind has no
// response; the server closes the connection after receiving it.
func EncodeUnbindRequest(messageID int64) ber.Element {
	return ber.NewSequence(
		ber.NewInteger(messageID),
		ber.NewElement(TagUnbindRequest, nil),
	)
}

// EncodeExtendedRequest builds an extended request message envelope. The
// value may be nil for requests that attach no value.
func EncodeExtendedRequest(messageID int64, oid string, value []byte) ber.Element {
	op := []ber.Element{
		ber.NewTaggedOctetString(typeExtendedRequestName, oid),
	}
	if value != nil {
		op = append(op, ber.NewElement(typeExtendedRequestValue, value))
	}
	return ber.NewSequence(
		ber.NewInteger(messageID),
		ber.NewTaggedSequence(TagExtendedRequest, op...),
	)
}

// --------------------------------------------------------------------------
// Response Decoding
// --------------------------------------------------------------------------

// DecodeEnvelope splits a received message into its message ID and the
// protocol operation element.
func DecodeEnvelope(el ber.Element) (messageID int64, op ber.Element, err error) {
	if el.Tag() != ber.TagSequence {
		return 0, ber.Element{}, fmt.Errorf("protocol: message envelope has tag 0x%02x, expected sequence", el.Tag())
	}

	elements, err := el.DecodeSequence()
	if err != nil {
		return 0, ber.Element{}, err
	}
	if len(elements) < 2 {
		return 0, ber.Element{}, fmt.Errorf("protocol: message envelope has %d elements, expected at least 2", len(elements))
	}

	messageID, err = elements[0].IntValue()
	if err != nil {
		return 0, ber.Element{}, fmt.Errorf("protocol: decode message ID: %w", err)
	}

	return messageID, elements[1], nil
}

// decodeResult parses the common result prefix of a response operation
// and returns the elements that follow it. Unknown trailing elements are
// left to the caller since responses are a forward-compatible zone.
func decodeResult(op ber.Element) (Result, []ber.Element, error) {
	elements, err := op.DecodeSequence()
	if err != nil {
		return Result{}, nil, err
	}
	if len(elements) < 3 {
		return Result{}, nil, fmt.Errorf("protocol: result has %d elements, expected at least 3", len(elements))
	}

	code, err := elements[0].IntValue()
	if err != nil {
		return Result{}, nil, fmt.Errorf("protocol: decode result code: %w", err)
	}

	result := Result{
		ResultCode:        ResultCode(code),
		MatchedDN:         elements[1].StringValue(),
		DiagnosticMessage: elements[2].StringValue(),
	}

	rest := elements[3:]
	if len(rest) > 0 && rest[0].Tag() == typeReferral {
		urls, err := rest[0].DecodeSequence()
		if err != nil {
			return Result{}, nil, fmt.Errorf("protocol: decode referral: %w", err)
		}
		for _, u := range urls {
			result.ReferralURLs = append(result.ReferralURLs, u.StringValue())
		}
		rest = rest[1:]
	}

	return result, rest, nil
}

// DecodeBindResponse parses a bind response operation.
func DecodeBindResponse(op ber.Element) (Result, error) {
	if op.Tag() != TagBindResponse {
		return Result{}, fmt.Errorf("protocol: operation has tag 0x%02x, expected bind response", op.Tag())
	}
	result, _, err := decodeResult(op)
	return result, err
}

// DecodeExtendedResult parses an extended response operation into the
// generic envelope. Elements beyond the known set are skipped: the
// response surface is explicitly extensible.
func DecodeExtendedResult(op ber.Element) (ExtendedResult, error) {
	if op.Tag() != TagExtendedResponse {
		return ExtendedResult{}, fmt.Errorf("protocol: operation has tag 0x%02x, expected extended response", op.Tag())
	}

	result, rest, err := decodeResult(op)
	if err != nil {
		return ExtendedResult{}, err
	}

	res := ExtendedResult{Result: result}
	for _, el := range rest {
		switch el.Tag() {
		case typeExtendedResponseName:
			res.OID = el.StringValue()
		case typeExtendedResponseValue:
			res.Value = el.Value()
		}
	}
	return res, nil
}

// DecodeIntermediateResponse parses an intermediate response operation
// into the generic envelope.
func DecodeIntermediateResponse(op ber.Element) (IntermediateResponse, error) {
	if op.Tag() != TagIntermediateResponse {
		return IntermediateResponse{}, fmt.Errorf("protocol: operation has tag 0x%02x, expected intermediate response", op.Tag())
	}

	elements, err := op.DecodeSequence()
	if err != nil {
		return IntermediateResponse{}, err
	}

	var res IntermediateResponse
	for _, el := range elements {
		switch el.Tag() {
		case typeIntermediateRespName:
			res.OID = el.StringValue()
		case typeIntermediateRespValue:
			res.Value = el.Value()
		}
	}
	return res, nil
}
