package conn

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dLDAP/ldap/ber"
	"github.com/ValentinKolb/dLDAP/ldap/protocol"
	"github.com/ValentinKolb/dLDAP/ldap/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("conn")

// Target identifies one directory server endpoint in a roster. Targets
// are identity-equal by value and never mutated after a roster is built.
type Target struct {
	Address string
	Port    int
}

// String returns the target in host:port form.
func (t Target) String() string {
	return net.JoinHostPort(t.Address, strconv.Itoa(t.Port))
}

// State is the position of a connection in its lifecycle.
type State int

const (
	StateUnopened State = iota
	StateOpened
	StateAuthenticated
	StatePostConnected
	StateHealthChecked
	StateReady
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpened:
		return "opened"
	case StateAuthenticated:
		return "authenticated"
	case StatePostConnected:
		return "post-connected"
	case StateHealthChecked:
		return "health-checked"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------
// Collaborator interfaces
// -----------------------------------------------------------

// Authenticator authenticates a freshly opened connection.
type Authenticator interface {
	// Bind runs the authentication exchange over the open connection
	Bind(c *Connection) error
}

// PostConnectProcessor runs an arbitrary setup step against a connection
// before it is handed out.
type PostConnectProcessor interface {
	Process(c *Connection) error
}

// PostConnectFunc adapts a plain function to the PostConnectProcessor
// interface.
type PostConnectFunc func(c *Connection) error

// Process implements PostConnectProcessor.
func (f PostConnectFunc) Process(c *Connection) error { return f(c) }

// HealthCheck verifies a connection is usable before it is handed out.
type HealthCheck interface {
	Check(c *Connection) error
}

// HealthCheckFunc adapts a plain function to the HealthCheck interface.
type HealthCheckFunc func(c *Connection) error

// Check implements HealthCheck.
func (f HealthCheckFunc) Check(c *Connection) error { return f(c) }

// -----------------------------------------------------------
// Connection
// -----------------------------------------------------------

// Connection is one logical connection to a single server. It is owned
// by whoever requested it until closed; the close hook is a
// back-reference to the creating server set, not an ownership edge.
type Connection struct {
	target    Target
	connector transport.Connector
	timeout   time.Duration

	mu    sync.Mutex // protects nc and state
	nc    net.Conn
	state State

	nextMessageID atomic.Int64
	onClose       func(Target)
	closeOnce     sync.Once
}

// Option configures a connection.
type Option func(c *Connection)

// WithTimeout bounds every read and write on the wire. Zero means no
// deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Connection) { c.timeout = d }
}

// New creates an unopened connection to the given target.
func New(connector transport.Connector, target Target, opts ...Option) *Connection {
	c := &Connection{
		target:    target,
		connector: connector,
		state:     StateUnopened,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Target returns the server endpoint this connection belongs to.
func (c *Connection) Target() Target {
	return c.target
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// setState advances the lifecycle if the current state matches one of
// the allowed predecessors.
func (c *Connection) setState(next State, allowed ...State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range allowed {
		if c.state == s {
			c.state = next
			return nil
		}
	}
	return fmt.Errorf("conn: cannot enter state %s from state %s", next, c.state)
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Open establishes the raw transport connection. It may block on I/O,
// bounded only by the connector's own timeout.
func (c *Connection) Open() error {
	c.mu.Lock()
	if c.state != StateUnopened {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("conn: open called in state %s", state)
	}
	c.mu.Unlock()

	nc, err := c.connector.Connect(c.target.Address, c.target.Port)
	if err != nil {
		return fmt.Errorf("conn: connect %s: %w", c.target, err)
	}

	c.mu.Lock()
	if c.state != StateUnopened {
		// A concurrent Open or Close won the race while we were dialing;
		// only one socket may ever be committed
		state := c.state
		c.mu.Unlock()
		_ = nc.Close()
		return fmt.Errorf("conn: open called in state %s", state)
	}
	c.nc = nc
	c.state = StateOpened
	c.mu.Unlock()
	return nil
}

// Authenticate runs the bind exchange. The step is optional; callers
// that have no credential skip it entirely.
func (c *Connection) Authenticate(a Authenticator) error {
	if s := c.State(); s != StateOpened {
		return fmt.Errorf("conn: authenticate called in state %s", s)
	}
	if err := a.Bind(c); err != nil {
		return err
	}
	return c.setState(StateAuthenticated, StateOpened)
}

// PostConnect runs the given setup steps in order. A failing step aborts
// the remainder.
func (c *Connection) PostConnect(processors ...PostConnectProcessor) error {
	if s := c.State(); s != StateOpened && s != StateAuthenticated {
		return fmt.Errorf("conn: post-connect called in state %s", s)
	}
	for _, p := range processors {
		if err := p.Process(c); err != nil {
			return fmt.Errorf("conn: post-connect processing on %s: %w", c.target, err)
		}
	}
	return c.setState(StatePostConnected, StateOpened, StateAuthenticated)
}

// CheckHealth runs the supplied health check.
func (c *Connection) CheckHealth(hc HealthCheck) error {
	if s := c.State(); s != StateOpened && s != StateAuthenticated && s != StatePostConnected {
		return fmt.Errorf("conn: health check called in state %s", s)
	}
	if err := hc.Check(c); err != nil {
		return fmt.Errorf("conn: health check on %s: %w", c.target, err)
	}
	return c.setState(StateHealthChecked, StateOpened, StateAuthenticated, StatePostConnected)
}

// MarkReady completes the setup pipeline and makes the connection
// available for use.
func (c *Connection) MarkReady() error {
	return c.setState(StateReady,
		StateOpened, StateAuthenticated, StatePostConnected, StateHealthChecked)
}

// OnClose registers the hook invoked exactly once when the connection
// closes. The server set registers itself here only after its count
// increment has committed, so a close can never run ahead of the
// increment it undoes.
func (c *Connection) OnClose(fn func(Target)) {
	c.onClose = fn
}

// Close tears the connection down. A ready connection sends a
// best-effort unbind first. Closing an already-closed connection is a
// no-op.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		state := c.state
		nc := c.nc
		c.state = StateClosed
		c.mu.Unlock()

		if nc != nil {
			if state == StateReady {
				// Orderly shutdown; the server closes its end after unbind
				_ = c.writeRaw(nc, protocol.EncodeUnbindRequest(c.nextMessageID.Add(1)))
			}
			if err := nc.Close(); err != nil {
				Logger.Debugf("close %s: %v", c.target, err)
			}
		}

		if c.onClose != nil {
			c.onClose(c.target)
		}
	})
}

// --------------------------------------------------------------------------
// Message Framing
// --------------------------------------------------------------------------

// NextMessageID returns a message ID unique to this connection.
func (c *Connection) NextMessageID() int64 {
	return c.nextMessageID.Add(1)
}

// WriteMessage sends one encoded protocol message over the wire.
func (c *Connection) WriteMessage(el ber.Element) error {
	c.mu.Lock()
	nc := c.nc
	state := c.state
	c.mu.Unlock()

	if nc == nil || state == StateClosed {
		return fmt.Errorf("conn: write on closed connection to %s", c.target)
	}
	return c.writeRaw(nc, el)
}

func (c *Connection) writeRaw(nc net.Conn, el ber.Element) error {
	if c.timeout > 0 {
		_ = nc.SetWriteDeadline(time.Now().Add(c.timeout))
	}
	if _, err := nc.Write(el.Encode()); err != nil {
		return fmt.Errorf("conn: write to %s: %w", c.target, err)
	}
	return nil
}

// ReadMessage reads one protocol message from the wire.
func (c *Connection) ReadMessage() (ber.Element, error) {
	c.mu.Lock()
	nc := c.nc
	state := c.state
	c.mu.Unlock()

	if nc == nil || state == StateClosed {
		return ber.Element{}, fmt.Errorf("conn: read on closed connection to %s", c.target)
	}

	if c.timeout > 0 {
		_ = nc.SetReadDeadline(time.Now().Add(c.timeout))
	}
	el, err := ber.ReadElement(nc)
	if err != nil {
		return ber.Element{}, fmt.Errorf("conn: read from %s: %w", c.target, err)
	}
	return el, nil
}
