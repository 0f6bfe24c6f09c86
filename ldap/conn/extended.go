package conn

import (
	"fmt"

	"github.com/ValentinKolb/dLDAP/ldap/protocol"
)

// SendExtendedRequest issues an extended operation and waits for its
// result. Intermediate responses arriving before the final result are
// passed to onIntermediate when it is non-nil and skipped otherwise. The
// value may be nil for requests that attach no value.
func (c *Connection) SendExtendedRequest(oid string, value []byte,
	onIntermediate func(protocol.IntermediateResponse)) (protocol.ExtendedResult, error) {

	id := c.NextMessageID()
	if err := c.WriteMessage(protocol.EncodeExtendedRequest(id, oid, value)); err != nil {
		return protocol.ExtendedResult{}, err
	}

	for {
		el, err := c.ReadMessage()
		if err != nil {
			return protocol.ExtendedResult{}, err
		}

		messageID, op, err := protocol.DecodeEnvelope(el)
		if err != nil {
			return protocol.ExtendedResult{}, err
		}
		if messageID != id {
			// Responses to abandoned or unsolicited operations; this client
			// runs one operation per connection at a time
			Logger.Warningf("skipping response with message ID %d while waiting for %d on %s",
				messageID, id, c.target)
			continue
		}

		switch op.Tag() {
		case protocol.TagIntermediateResponse:
			ir, err := protocol.DecodeIntermediateResponse(op)
			if err != nil {
				return protocol.ExtendedResult{}, err
			}
			if onIntermediate != nil {
				onIntermediate(ir)
			}

		case protocol.TagExtendedResponse:
			return protocol.DecodeExtendedResult(op)

		default:
			return protocol.ExtendedResult{}, fmt.Errorf(
				"conn: unexpected operation 0x%02x in response to extended request on %s", op.Tag(), c.target)
		}
	}
}
