// Package protocol implements the generic directory protocol message
// envelopes (RFC 4511) that sit between the raw TLV codec and the typed
// extended message values.
//
// The package covers only the message surface a client runtime needs to
// demonstrate extended operations: the simple bind exchange, extended
// requests and responses, and intermediate responses. The full operation
// set (search filters, modify, and friends) is deliberately out of scope.
//
// Received extended responses and intermediate responses are parsed into
// the generic ExtendedResult and IntermediateResponse envelopes; the
// extensions package reconstructs typed values from those.
package protocol
