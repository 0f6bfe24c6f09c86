package extensions

import (
	"github.com/ValentinKolb/dLDAP/ldap/ber"
	"github.com/ValentinKolb/dLDAP/ldap/protocol"
)

// MissingChangelogEntriesResponseOID identifies the missing changelog
// entries intermediate response.
const MissingChangelogEntriesResponseOID = "1.3.6.1.4.1.30221.2.6.12"

// typeMissingEntriesMessage tags the optional message field.
const typeMissingEntriesMessage byte = 0x80

// MissingChangelogEntriesResponse indicates that the server may have
// already purged information about one or more changes. The value
// encoding is:
//
//	MissingEntriesIntermediateResponse ::= SEQUENCE {
//	     message     [0] OCTET STRING OPTIONAL }
//
// An empty Message is treated as absent; the response then carries no
// value at all.
type MissingChangelogEntriesResponse struct {
	// Message may provide additional information about the missing
	// changes
	Message string
}

// Encode builds the generic intermediate response envelope for this
// value.
func (r MissingChangelogEntriesResponse) Encode() protocol.IntermediateResponse {
	res := protocol.IntermediateResponse{OID: MissingChangelogEntriesResponseOID}
	if r.Message == "" {
		return res
	}

	res.Value = ber.NewSequence(
		ber.NewTaggedOctetString(typeMissingEntriesMessage, r.Message),
	).Encode()
	return res
}

// DecodeMissingChangelogEntriesResponse reconstructs the typed value from
// a generic received intermediate response. A missing value decodes to an
// unset message, which is a valid state.
func DecodeMissingChangelogEntriesResponse(res protocol.IntermediateResponse) (MissingChangelogEntriesResponse, error) {
	var out MissingChangelogEntriesResponse
	if res.Value == nil {
		return out, nil
	}

	seq, err := ber.Decode(res.Value)
	if err != nil {
		return MissingChangelogEntriesResponse{}, err
	}
	elements, err := seq.DecodeSequence()
	if err != nil {
		return MissingChangelogEntriesResponse{}, err
	}

	err = decodeFields("missing changelog entries response", elements, fieldHandlers{
		typeMissingEntriesMessage: func(el ber.Element) { out.Message = el.StringValue() },
	}, false)
	if err != nil {
		return MissingChangelogEntriesResponse{}, err
	}

	return out, nil
}
