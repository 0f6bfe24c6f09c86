// Package pool maintains a recyclable set of ready connections on top
// of a server set. Checked-in connections are reused by later checkouts;
// the pool replenishes itself through the server set, which keeps the
// per-server load balanced.
package pool

import (
	"fmt"
	"sync"

	"github.com/ValentinKolb/dLDAP/ldap/conn"
	"github.com/ValentinKolb/dLDAP/ldap/serverset"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("pool")

// Pool recycles ready connections created by a server set.
type Pool struct {
	set         *serverset.ServerSet
	size        int
	healthCheck conn.HealthCheck

	idle chan *conn.Connection
	live *xsync.MapOf[*conn.Connection, struct{}] // every connection the pool created and has not closed

	mu     sync.Mutex
	closed bool
}

// Option configures a Pool.
type Option func(p *Pool)

// WithHealthCheck makes the pool run the given check on every connection
// it creates.
func WithHealthCheck(hc conn.HealthCheck) Option {
	return func(p *Pool) { p.healthCheck = hc }
}

// New creates a pool holding at most size idle connections.
func New(set *serverset.ServerSet, size int, opts ...Option) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("pool: size must be at least 1, got %d", size)
	}

	p := &Pool{
		set:  set,
		size: size,
		idle: make(chan *conn.Connection, size),
		live: xsync.NewMapOf[*conn.Connection, struct{}](),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Warm fills the pool up to its size with fresh connections. It stops at
// the first failure and reports how many connections it established.
func (p *Pool) Warm() (int, error) {
	for established := 0; ; established++ {
		p.mu.Lock()
		closed := p.closed
		p.mu.Unlock()
		if closed {
			return established, fmt.Errorf("pool: closed")
		}
		if len(p.idle) >= p.size {
			return established, nil
		}

		c, err := p.set.GetConnection(p.healthCheck)
		if err != nil {
			return established, err
		}
		p.live.Store(c, struct{}{})

		select {
		case p.idle <- c:
		default:
			// Concurrent checkins filled the pool in the meantime
			p.live.Delete(c)
			c.Close()
			return established, nil
		}
	}
}

// Checkout hands out a ready connection, reusing an idle one when
// available and creating a new one through the server set otherwise.
// The caller owns the connection until it checks it back in or closes
// it.
func (p *Pool) Checkout() (*conn.Connection, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("pool: closed")
	}

	select {
	case c := <-p.idle:
		if c.State() == conn.StateReady {
			return c, nil
		}
		// Went bad while idling; drop it and fall through to a fresh one
		p.live.Delete(c)
		c.Close()
	default:
	}

	c, err := p.set.GetConnection(p.healthCheck)
	if err != nil {
		return nil, err
	}
	p.live.Store(c, struct{}{})
	return c, nil
}

// Checkin returns a connection to the pool. Connections that are no
// longer ready, or that do not fit because the pool is full, are closed
// instead.
func (p *Pool) Checkin(c *conn.Connection) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()

	if closed || c.State() != conn.StateReady {
		p.live.Delete(c)
		c.Close()
		return
	}

	select {
	case p.idle <- c:
	default:
		p.live.Delete(c)
		c.Close()
	}
}

// IdleCount returns the number of connections currently idling.
func (p *Pool) IdleCount() int {
	return len(p.idle)
}

// LiveCount returns the number of connections the pool created and has
// not closed, idle and checked out combined.
func (p *Pool) LiveCount() int {
	return p.live.Size()
}

// Close shuts the pool down and closes every connection it still knows
// about, including checked-out ones. Closing twice is a no-op.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	// Drain the idle channel first so nothing new is handed out
	for {
		select {
		case c := <-p.idle:
			p.live.Delete(c)
			c.Close()
		default:
			p.live.Range(func(c *conn.Connection, _ struct{}) bool {
				p.live.Delete(c)
				c.Close()
				return true
			})
			Logger.Infof("pool closed")
			return
		}
	}
}
