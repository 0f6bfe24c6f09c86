package extensions

import (
	"fmt"

	"github.com/ValentinKolb/dLDAP/ldap/ber"
	"github.com/ValentinKolb/dLDAP/ldap/protocol"
)

// DeliverSingleUseTokenResultOID identifies the deliver single-use token
// extended result.
const DeliverSingleUseTokenResultOID = "1.3.6.1.4.1.30221.2.6.50"

// Tags of the optional fields in the value sequence
const (
	typeRecipientID     byte = 0x80
	typeDeliveryMessage byte = 0x81
)

// DeliverSingleUseTokenResult describes the outcome of a deliver
// single-use token operation. The value encoding is:
//
//	DeliverSingleUseTokenResult ::= SEQUENCE {
//	     deliveryMechanism     OCTET STRING,
//	     recipientID           [0] OCTET STRING OPTIONAL,
//	     message               [1] OCTET STRING OPTIONAL }
//
// An empty DeliveryMechanism means the token was not delivered; the
// result then carries no value at all. Empty optional fields are treated
// as absent.
type DeliverSingleUseTokenResult struct {
	// Result holds the generic operation result fields
	Result protocol.Result

	// DeliveryMechanism names the mechanism the token was delivered
	// through (e.g. "email", "sms")
	DeliveryMechanism string

	// RecipientID identifies the user the token was delivered to, in a
	// form matching the mechanism (an address for email, a number for sms)
	RecipientID string

	// DeliveryMessage provides additional free-text information about the
	// delivery; it requires DeliveryMechanism to be set
	DeliveryMessage string
}

// Encode builds the generic extended result envelope for this value. The
// cross-field invariants are enforced before any bytes are produced: the
// optional fields require the delivery mechanism. With no mechanism the
// result legitimately carries no value at all (nil, not an empty
// sequence).
func (r DeliverSingleUseTokenResult) Encode() (protocol.ExtendedResult, error) {
	if r.DeliveryMechanism == "" {
		if r.RecipientID != "" {
			return protocol.ExtendedResult{}, fmt.Errorf("extensions: recipient ID requires a delivery mechanism")
		}
		if r.DeliveryMessage != "" {
			return protocol.ExtendedResult{}, fmt.Errorf("extensions: delivery message requires a delivery mechanism")
		}
		return protocol.ExtendedResult{Result: r.Result}, nil
	}

	// Canonical order: required field first, optional fields by ascending tag
	elements := []ber.Element{
		ber.NewOctetString(r.DeliveryMechanism),
	}
	if r.RecipientID != "" {
		elements = append(elements, ber.NewTaggedOctetString(typeRecipientID, r.RecipientID))
	}
	if r.DeliveryMessage != "" {
		elements = append(elements, ber.NewTaggedOctetString(typeDeliveryMessage, r.DeliveryMessage))
	}

	return protocol.ExtendedResult{
		Result: r.Result,
		OID:    DeliverSingleUseTokenResultOID,
		Value:  ber.NewSequence(elements...).Encode(),
	}, nil
}

// DecodeDeliverSingleUseTokenResult reconstructs the typed value from a
// generic received extended result. A missing value decodes to all fields
// unset, which is a valid state. Cross-field invariants are not
// re-checked here: wire data the client does not control is accepted
// as-is.
func DecodeDeliverSingleUseTokenResult(res protocol.ExtendedResult) (DeliverSingleUseTokenResult, error) {
	out := DeliverSingleUseTokenResult{Result: res.Result}
	if res.Value == nil {
		return out, nil
	}

	seq, err := ber.Decode(res.Value)
	if err != nil {
		return DeliverSingleUseTokenResult{}, err
	}
	elements, err := seq.DecodeSequence()
	if err != nil {
		return DeliverSingleUseTokenResult{}, err
	}
	if len(elements) == 0 {
		return DeliverSingleUseTokenResult{}, fmt.Errorf("extensions: deliver single-use token value sequence is empty")
	}

	out.DeliveryMechanism = elements[0].StringValue()

	err = decodeFields("deliver single-use token result", elements[1:], fieldHandlers{
		typeRecipientID:     func(el ber.Element) { out.RecipientID = el.StringValue() },
		typeDeliveryMessage: func(el ber.Element) { out.DeliveryMessage = el.StringValue() },
	}, false)
	if err != nil {
		return DeliverSingleUseTokenResult{}, err
	}

	return out, nil
}

// String returns a formatted representation for logging.
func (r DeliverSingleUseTokenResult) String() string {
	s := fmt.Sprintf("DeliverSingleUseTokenResult(resultCode=%s", r.Result.ResultCode)
	if r.DeliveryMechanism != "" {
		s += fmt.Sprintf(", deliveryMechanism=%q", r.DeliveryMechanism)
	}
	if r.RecipientID != "" {
		s += fmt.Sprintf(", recipientID=%q", r.RecipientID)
	}
	if r.DeliveryMessage != "" {
		s += fmt.Sprintf(", deliveryMessage=%q", r.DeliveryMessage)
	}
	return s + ")"
}
