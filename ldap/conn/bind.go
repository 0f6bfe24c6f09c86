package conn

import (
	"fmt"

	"github.com/ValentinKolb/dLDAP/ldap/protocol"
)

// SimpleBind authenticates with a DN and password (RFC 4513 simple
// bind).
type SimpleBind struct {
	DN       string
	Password string
}

// BindError reports a bind exchange the server rejected.
type BindError struct {
	Result protocol.Result
}

// Error implements the error interface.
func (e *BindError) Error() string {
	if e.Result.DiagnosticMessage != "" {
		return fmt.Sprintf("conn: bind failed: %s (%s)", e.Result.ResultCode, e.Result.DiagnosticMessage)
	}
	return fmt.Sprintf("conn: bind failed: %s", e.Result.ResultCode)
}

// Bind implements the Authenticator interface.
func (a *SimpleBind) Bind(c *Connection) error {
	id := c.NextMessageID()
	if err := c.WriteMessage(protocol.EncodeBindRequest(id, a.DN, a.Password)); err != nil {
		return err
	}

	el, err := c.ReadMessage()
	if err != nil {
		return err
	}

	messageID, op, err := protocol.DecodeEnvelope(el)
	if err != nil {
		return err
	}
	if messageID != id {
		return fmt.Errorf("conn: bind response has message ID %d, expected %d", messageID, id)
	}

	result, err := protocol.DecodeBindResponse(op)
	if err != nil {
		return err
	}
	if result.ResultCode != protocol.ResultSuccess {
		return &BindError{Result: result}
	}
	return nil
}
