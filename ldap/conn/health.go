package conn

import (
	"fmt"

	"github.com/ValentinKolb/dLDAP/ldap/protocol"
)

// whoAmIRequestOID identifies the RFC 4532 "Who am I?" extended
// operation.
const whoAmIRequestOID = "1.3.6.1.4.1.4203.1.11.3"

// WhoAmIHealthCheck verifies a connection by issuing a "Who am I?"
// extended operation, which every conforming server answers cheaply.
type WhoAmIHealthCheck struct{}

// Check implements the HealthCheck interface.
func (WhoAmIHealthCheck) Check(c *Connection) error {
	res, err := c.SendExtendedRequest(whoAmIRequestOID, nil, nil)
	if err != nil {
		return err
	}
	if res.ResultCode != protocol.ResultSuccess {
		return fmt.Errorf("who am I returned %s", res.ResultCode)
	}
	return nil
}
