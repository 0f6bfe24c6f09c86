package conn

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dLDAP/ldap/ber"
	"github.com/ValentinKolb/dLDAP/ldap/protocol"
)

// --------------------------------------------------------------------------
// Test Infrastructure
// --------------------------------------------------------------------------

// pipeConnector hands out in-memory connections served by handler.
type pipeConnector struct {
	handler func(nc net.Conn)
	dials   atomic.Int64
}

func (p *pipeConnector) Connect(address string, port int) (net.Conn, error) {
	p.dials.Add(1)
	client, server := net.Pipe()
	go p.handler(server)
	return client, nil
}

func (p *pipeConnector) Name() string { return "pipe" }

// writeEnvelope sends one response message to the client side
func writeEnvelope(nc net.Conn, messageID int64, op ber.Element) {
	_, _ = nc.Write(ber.NewSequence(ber.NewInteger(messageID), op).Encode())
}

func resultOp(tag byte, code protocol.ResultCode, diag string, extra ...ber.Element) ber.Element {
	elements := []ber.Element{
		ber.NewEnumerated(int64(code)),
		ber.NewOctetString(""),
		ber.NewOctetString(diag),
	}
	elements = append(elements, extra...)
	return ber.NewTaggedSequence(tag, elements...)
}

// serveDirectory emulates a directory server. Binds succeed only with
// goodPassword, extended requests succeed generically, unbind ends the
// session.
func serveDirectory(goodPassword string, seenUnbind *atomic.Bool) func(nc net.Conn) {
	return func(nc net.Conn) {
		defer nc.Close()
		for {
			el, err := ber.ReadElement(nc)
			if err != nil {
				return
			}
			id, op, err := protocol.DecodeEnvelope(el)
			if err != nil {
				return
			}

			switch op.Tag() {
			case protocol.TagBindRequest:
				fields, err := op.DecodeSequence()
				if err != nil || len(fields) != 3 {
					return
				}
				if fields[2].StringValue() == goodPassword {
					writeEnvelope(nc, id, resultOp(protocol.TagBindResponse, protocol.ResultSuccess, ""))
				} else {
					writeEnvelope(nc, id, resultOp(protocol.TagBindResponse, protocol.ResultInvalidCredentials, "wrong password"))
				}

			case protocol.TagUnbindRequest:
				if seenUnbind != nil {
					seenUnbind.Store(true)
				}
				return

			case protocol.TagExtendedRequest:
				writeEnvelope(nc, id, resultOp(protocol.TagExtendedResponse, protocol.ResultSuccess, ""))

			default:
				return
			}
		}
	}
}

func newTestConnection(handler func(nc net.Conn)) *Connection {
	connector := &pipeConnector{handler: handler}
	return New(connector, Target{Address: "test", Port: 389}, WithTimeout(2*time.Second))
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestTargetString(t *testing.T) {
	if got := (Target{Address: "ldap.example.com", Port: 636}).String(); got != "ldap.example.com:636" {
		t.Errorf("String() = %q", got)
	}
}

// TestLifecycle walks the full setup pipeline and checks each state
func TestLifecycle(t *testing.T) {
	c := newTestConnection(serveDirectory("secret", nil))
	defer c.Close()

	if c.State() != StateUnopened {
		t.Fatalf("initial state = %s", c.State())
	}

	if err := c.Open(); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if c.State() != StateOpened {
		t.Fatalf("state after open = %s", c.State())
	}

	if err := c.Authenticate(&SimpleBind{DN: "cn=admin", Password: "secret"}); err != nil {
		t.Fatalf("Authenticate() failed: %v", err)
	}
	if c.State() != StateAuthenticated {
		t.Fatalf("state after authenticate = %s", c.State())
	}

	ran := false
	if err := c.PostConnect(PostConnectFunc(func(c *Connection) error {
		ran = true
		return nil
	})); err != nil {
		t.Fatalf("PostConnect() failed: %v", err)
	}
	if !ran {
		t.Error("post-connect processor did not run")
	}
	if c.State() != StatePostConnected {
		t.Fatalf("state after post-connect = %s", c.State())
	}

	if err := c.CheckHealth(WhoAmIHealthCheck{}); err != nil {
		t.Fatalf("CheckHealth() failed: %v", err)
	}
	if c.State() != StateHealthChecked {
		t.Fatalf("state after health check = %s", c.State())
	}

	if err := c.MarkReady(); err != nil {
		t.Fatalf("MarkReady() failed: %v", err)
	}
	if c.State() != StateReady {
		t.Fatalf("state after mark ready = %s", c.State())
	}
}

// TestOptionalStepsSkipped checks that a connection can go straight from
// opened to ready
func TestOptionalStepsSkipped(t *testing.T) {
	c := newTestConnection(serveDirectory("", nil))
	defer c.Close()

	if err := c.Open(); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := c.MarkReady(); err != nil {
		t.Fatalf("MarkReady() failed: %v", err)
	}
}

// TestStateEnforcement checks that out-of-order lifecycle calls fail
func TestStateEnforcement(t *testing.T) {
	t.Run("authenticate before open", func(t *testing.T) {
		c := newTestConnection(serveDirectory("secret", nil))
		if err := c.Authenticate(&SimpleBind{Password: "secret"}); err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("open twice", func(t *testing.T) {
		c := newTestConnection(serveDirectory("secret", nil))
		defer c.Close()
		if err := c.Open(); err != nil {
			t.Fatalf("Open() failed: %v", err)
		}
		if err := c.Open(); err == nil {
			t.Error("expected error on second open, got nil")
		}
	})

	t.Run("health check after ready", func(t *testing.T) {
		c := newTestConnection(serveDirectory("", nil))
		defer c.Close()
		if err := c.Open(); err != nil {
			t.Fatalf("Open() failed: %v", err)
		}
		if err := c.MarkReady(); err != nil {
			t.Fatalf("MarkReady() failed: %v", err)
		}
		if err := c.CheckHealth(WhoAmIHealthCheck{}); err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("mark ready after close", func(t *testing.T) {
		c := newTestConnection(serveDirectory("", nil))
		if err := c.Open(); err != nil {
			t.Fatalf("Open() failed: %v", err)
		}
		c.Close()
		if err := c.MarkReady(); err == nil {
			t.Error("expected error, got nil")
		}
	})
}

// gateConnector blocks every dial on a shared gate so tests can overlap
// connection attempts deliberately.
type gateConnector struct {
	gate    chan struct{}
	mu      sync.Mutex
	servers []net.Conn
}

func (g *gateConnector) Connect(address string, port int) (net.Conn, error) {
	<-g.gate
	client, server := net.Pipe()
	g.mu.Lock()
	g.servers = append(g.servers, server)
	g.mu.Unlock()
	return client, nil
}

func (g *gateConnector) Name() string { return "gate" }

// TestConcurrentOpen checks that overlapping opens commit exactly one
// socket and close every other dialed one
func TestConcurrentOpen(t *testing.T) {
	connector := &gateConnector{gate: make(chan struct{})}
	c := New(connector, Target{Address: "test", Port: 389})

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { results <- c.Open() }()
	}
	close(connector.gate)

	failures := 0
	for i := 0; i < 2; i++ {
		if err := <-results; err != nil {
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("got %d failed opens, want exactly 1", failures)
	}
	if c.State() != StateOpened {
		t.Fatalf("state = %s, want opened", c.State())
	}

	// Of all the sockets actually dialed, only the committed one may
	// still be open: its server end times out reading, the losers see EOF
	connector.mu.Lock()
	servers := connector.servers
	connector.mu.Unlock()

	stillOpen := 0
	for _, server := range servers {
		_ = server.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		_, err := server.Read(make([]byte, 1))

		var ne net.Error
		switch {
		case errors.As(err, &ne) && ne.Timeout():
			stillOpen++
		case err == io.EOF:
			// loser socket was closed
		default:
			t.Errorf("unexpected read result: %v", err)
		}
	}
	if stillOpen != 1 {
		t.Errorf("%d sockets left open, want 1", stillOpen)
	}

	c.Close()
}

// TestSimpleBindRejected checks that a failed bind surfaces the server's
// result
func TestSimpleBindRejected(t *testing.T) {
	c := newTestConnection(serveDirectory("secret", nil))
	defer c.Close()

	if err := c.Open(); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	err := c.Authenticate(&SimpleBind{DN: "cn=admin", Password: "nope"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var bindErr *BindError
	if !errors.As(err, &bindErr) {
		t.Fatalf("error %v is not a *BindError", err)
	}
	if bindErr.Result.ResultCode != protocol.ResultInvalidCredentials {
		t.Errorf("result code = %v, want invalid credentials", bindErr.Result.ResultCode)
	}
	if c.State() != StateOpened {
		t.Errorf("state after failed bind = %s, want opened", c.State())
	}
}

// TestSendExtendedRequest checks result and intermediate response
// dispatch
func TestSendExtendedRequest(t *testing.T) {
	handler := func(nc net.Conn) {
		defer nc.Close()
		el, err := ber.ReadElement(nc)
		if err != nil {
			return
		}
		id, _, err := protocol.DecodeEnvelope(el)
		if err != nil {
			return
		}

		// Two intermediate responses, then the final result
		for i := 0; i < 2; i++ {
			writeEnvelope(nc, id, ber.NewTaggedSequence(protocol.TagIntermediateResponse,
				ber.NewTaggedOctetString(0x80, "1.2.3.4"),
			))
		}
		writeEnvelope(nc, id, resultOp(protocol.TagExtendedResponse, protocol.ResultSuccess, "",
			ber.NewTaggedOctetString(0x8A, "1.2.3.5"),
		))
	}

	c := newTestConnection(handler)
	defer c.Close()
	if err := c.Open(); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	var intermediates []protocol.IntermediateResponse
	res, err := c.SendExtendedRequest("1.2.3", nil, func(ir protocol.IntermediateResponse) {
		intermediates = append(intermediates, ir)
	})
	if err != nil {
		t.Fatalf("SendExtendedRequest() failed: %v", err)
	}

	if len(intermediates) != 2 {
		t.Errorf("got %d intermediate responses, want 2", len(intermediates))
	}
	for _, ir := range intermediates {
		if ir.OID != "1.2.3.4" {
			t.Errorf("intermediate OID = %q", ir.OID)
		}
	}
	if res.ResultCode != protocol.ResultSuccess || res.OID != "1.2.3.5" {
		t.Errorf("unexpected result: %+v", res)
	}
}

// TestSendExtendedRequestSkipsForeignIDs checks that responses to other
// message IDs are skipped
func TestSendExtendedRequestSkipsForeignIDs(t *testing.T) {
	handler := func(nc net.Conn) {
		defer nc.Close()
		el, err := ber.ReadElement(nc)
		if err != nil {
			return
		}
		id, _, err := protocol.DecodeEnvelope(el)
		if err != nil {
			return
		}

		// A stale response under a different ID, then the real one
		writeEnvelope(nc, id+100, resultOp(protocol.TagExtendedResponse, protocol.ResultOther, "stale"))
		writeEnvelope(nc, id, resultOp(protocol.TagExtendedResponse, protocol.ResultSuccess, ""))
	}

	c := newTestConnection(handler)
	defer c.Close()
	if err := c.Open(); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	res, err := c.SendExtendedRequest("1.2.3", nil, nil)
	if err != nil {
		t.Fatalf("SendExtendedRequest() failed: %v", err)
	}
	if res.ResultCode != protocol.ResultSuccess {
		t.Errorf("result code = %v, want success", res.ResultCode)
	}
}

// TestCloseSendsUnbind checks the orderly shutdown of a ready connection
func TestCloseSendsUnbind(t *testing.T) {
	var seenUnbind atomic.Bool
	c := newTestConnection(serveDirectory("", &seenUnbind))

	if err := c.Open(); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := c.MarkReady(); err != nil {
		t.Fatalf("MarkReady() failed: %v", err)
	}

	c.Close()

	// The pipe is synchronous, so the server has consumed the unbind by
	// the time Close returns; give the handler goroutine a moment to
	// record it
	deadline := time.Now().Add(time.Second)
	for !seenUnbind.Load() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !seenUnbind.Load() {
		t.Error("server never received an unbind")
	}
	if c.State() != StateClosed {
		t.Errorf("state after close = %s", c.State())
	}
}

// TestCloseIdempotent checks that the close hook fires exactly once
func TestCloseIdempotent(t *testing.T) {
	c := newTestConnection(serveDirectory("", nil))
	if err := c.Open(); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	var hookCalls atomic.Int64
	c.OnClose(func(target Target) {
		hookCalls.Add(1)
		if target.Address != "test" {
			t.Errorf("hook received target %v", target)
		}
	})

	c.Close()
	c.Close()
	c.Close()

	if hookCalls.Load() != 1 {
		t.Errorf("close hook ran %d times, want 1", hookCalls.Load())
	}
}

// TestMessageIDsIncrement checks per-connection message ID allocation
func TestMessageIDsIncrement(t *testing.T) {
	c := newTestConnection(serveDirectory("", nil))

	first := c.NextMessageID()
	second := c.NextMessageID()
	if first != 1 || second != 2 {
		t.Errorf("message IDs = %d, %d, want 1, 2", first, second)
	}
}

// TestIOOnClosedConnection checks that reads and writes fail cleanly
func TestIOOnClosedConnection(t *testing.T) {
	c := newTestConnection(serveDirectory("", nil))
	if err := c.Open(); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	c.Close()

	if err := c.WriteMessage(protocol.EncodeUnbindRequest(1)); err == nil {
		t.Error("expected write error, got nil")
	}
	if _, err := c.ReadMessage(); err == nil {
		t.Error("expected read error, got nil")
	}
}
