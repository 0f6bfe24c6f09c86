package pool

import (
	"net"
	"testing"

	"github.com/ValentinKolb/dLDAP/ldap/conn"
	"github.com/ValentinKolb/dLDAP/ldap/serverset"
)

// --------------------------------------------------------------------------
// Test Infrastructure
// --------------------------------------------------------------------------

// drainConnector hands out in-memory connections whose server side
// absorbs everything written to it.
type drainConnector struct{}

func (drainConnector) Connect(address string, port int) (net.Conn, error) {
	client, server := net.Pipe()
	go func() {
		defer server.Close()
		buf := make([]byte, 256)
		for {
			if _, err := server.Read(buf); err != nil {
				return
			}
		}
	}()
	return client, nil
}

func (drainConnector) Name() string { return "drain" }

func newTestPool(t *testing.T, size int, opts ...Option) *Pool {
	t.Helper()

	set, err := serverset.NewFewestConnections(drainConnector{}, []conn.Target{
		{Address: "a.example.com", Port: 389},
		{Address: "b.example.com", Port: 389},
	})
	if err != nil {
		t.Fatalf("NewFewestConnections() failed: %v", err)
	}

	p, err := New(set, size, opts...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return p
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, 0); err == nil {
		t.Error("expected error for size 0, got nil")
	}
}

// TestCheckoutCheckin checks that a checked-in connection is reused
func TestCheckoutCheckin(t *testing.T) {
	p := newTestPool(t, 2)
	defer p.Close()

	c, err := p.Checkout()
	if err != nil {
		t.Fatalf("Checkout() failed: %v", err)
	}
	if c.State() != conn.StateReady {
		t.Fatalf("checked-out connection state = %s", c.State())
	}
	if p.LiveCount() != 1 {
		t.Errorf("live count = %d, want 1", p.LiveCount())
	}

	p.Checkin(c)
	if p.IdleCount() != 1 {
		t.Errorf("idle count after checkin = %d, want 1", p.IdleCount())
	}

	again, err := p.Checkout()
	if err != nil {
		t.Fatalf("second Checkout() failed: %v", err)
	}
	if again != c {
		t.Error("checkout did not reuse the idle connection")
	}
	if p.LiveCount() != 1 {
		t.Errorf("live count after reuse = %d, want 1", p.LiveCount())
	}
	p.Checkin(again)
}

// TestCheckinClosedConnection checks that stale connections are dropped
// instead of recycled
func TestCheckinClosedConnection(t *testing.T) {
	p := newTestPool(t, 2)
	defer p.Close()

	c, err := p.Checkout()
	if err != nil {
		t.Fatalf("Checkout() failed: %v", err)
	}

	c.Close()
	p.Checkin(c)

	if p.IdleCount() != 0 {
		t.Errorf("idle count = %d, want 0", p.IdleCount())
	}
	if p.LiveCount() != 0 {
		t.Errorf("live count = %d, want 0", p.LiveCount())
	}
}

// TestCheckoutDropsStaleIdle checks that a connection that went bad while
// idling is replaced transparently
func TestCheckoutDropsStaleIdle(t *testing.T) {
	p := newTestPool(t, 2)
	defer p.Close()

	c, err := p.Checkout()
	if err != nil {
		t.Fatalf("Checkout() failed: %v", err)
	}
	p.Checkin(c)

	// The connection dies while idling in the pool
	c.Close()

	fresh, err := p.Checkout()
	if err != nil {
		t.Fatalf("Checkout() failed: %v", err)
	}
	defer p.Checkin(fresh)

	if fresh == c {
		t.Error("checkout handed out a closed connection")
	}
	if fresh.State() != conn.StateReady {
		t.Errorf("fresh connection state = %s", fresh.State())
	}
}

// TestCheckinOverflowCloses checks that a full pool closes the surplus
func TestCheckinOverflowCloses(t *testing.T) {
	p := newTestPool(t, 1)
	defer p.Close()

	c1, err := p.Checkout()
	if err != nil {
		t.Fatalf("Checkout() failed: %v", err)
	}
	c2, err := p.Checkout()
	if err != nil {
		t.Fatalf("Checkout() failed: %v", err)
	}

	p.Checkin(c1)
	p.Checkin(c2)

	if p.IdleCount() != 1 {
		t.Errorf("idle count = %d, want 1", p.IdleCount())
	}
	if c2.State() != conn.StateClosed {
		t.Errorf("surplus connection state = %s, want closed", c2.State())
	}
	if p.LiveCount() != 1 {
		t.Errorf("live count = %d, want 1", p.LiveCount())
	}
}

// TestWarm checks pre-filling the pool
func TestWarm(t *testing.T) {
	p := newTestPool(t, 3)
	defer p.Close()

	established, err := p.Warm()
	if err != nil {
		t.Fatalf("Warm() failed: %v", err)
	}
	if established != 3 {
		t.Errorf("established = %d, want 3", established)
	}
	if p.IdleCount() != 3 {
		t.Errorf("idle count = %d, want 3", p.IdleCount())
	}

	// Warming a full pool is a no-op
	established, err = p.Warm()
	if err != nil {
		t.Fatalf("second Warm() failed: %v", err)
	}
	if established != 0 {
		t.Errorf("established = %d, want 0", established)
	}
}

// TestClose checks that close tears down idle and checked-out
// connections alike
func TestClose(t *testing.T) {
	p := newTestPool(t, 2)

	held, err := p.Checkout()
	if err != nil {
		t.Fatalf("Checkout() failed: %v", err)
	}
	idle, err := p.Checkout()
	if err != nil {
		t.Fatalf("Checkout() failed: %v", err)
	}
	p.Checkin(idle)

	p.Close()
	p.Close() // closing twice is a no-op

	if held.State() != conn.StateClosed {
		t.Errorf("held connection state = %s, want closed", held.State())
	}
	if idle.State() != conn.StateClosed {
		t.Errorf("idle connection state = %s, want closed", idle.State())
	}
	if p.LiveCount() != 0 {
		t.Errorf("live count = %d, want 0", p.LiveCount())
	}

	if _, err := p.Checkout(); err == nil {
		t.Error("expected error checking out of a closed pool")
	}
	if _, err := p.Warm(); err == nil {
		t.Error("expected error warming a closed pool")
	}
}
