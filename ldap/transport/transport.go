package transport

import (
	"net"
	"strconv"
	"time"
)

// Connector defines the interface for transport-specific connection
// operations.
type Connector interface {
	// Connect establishes a single raw connection to the given server
	Connect(address string, port int) (net.Conn, error)

	// Name returns the name of the transport type (e.g. "tcp")
	Name() string
}

// tcpConnector implements the Connector interface for plain TCP sockets
type tcpConnector struct {
	dialer net.Dialer
}

// NewTCPConnector creates a TCP connector. A zero timeout means the
// operating system default applies.
func NewTCPConnector(connectTimeout time.Duration) Connector {
	return &tcpConnector{
		dialer: net.Dialer{Timeout: connectTimeout},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see Connector)
// --------------------------------------------------------------------------

func (c *tcpConnector) Name() string {
	return "tcp"
}

func (c *tcpConnector) Connect(address string, port int) (net.Conn, error) {
	return c.dialer.Dial("tcp", net.JoinHostPort(address, strconv.Itoa(port)))
}
