package serverset

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dLDAP/ldap/conn"
	"github.com/ValentinKolb/dLDAP/ldap/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("serverset")

// AllTargetsFailedError is returned by GetConnection after every target
// in the roster has been tried once. It carries the last underlying
// error as a representative failure rather than an exhaustive report.
type AllTargetsFailedError struct {
	Last error
}

// Error implements the error interface.
func (e *AllTargetsFailedError) Error() string {
	return fmt.Sprintf("serverset: all targets failed, last error: %v", e.Last)
}

// Unwrap returns the last underlying error.
func (e *AllTargetsFailedError) Unwrap() error {
	return e.Last
}

// targetMetrics holds the per-target counters exported for monitoring.
type targetMetrics struct {
	attempts    *metrics.Counter
	failures    *metrics.Counter
	established *metrics.Counter
}

// ServerSet selects among a fixed roster of directory servers for each
// new connection request, preferring the server with the fewest
// connections previously established by this same instance.
type ServerSet struct {
	targets []conn.Target                 // roster order, immutable
	counts  map[conn.Target]*atomic.Int64 // fixed key set, one atomic cell per target
	stats   map[conn.Target]*targetMetrics

	connector   transport.Connector
	auth        conn.Authenticator
	postConnect []conn.PostConnectProcessor
	connOpts    []conn.Option

	rndMu sync.Mutex // rand.Rand is not safe for concurrent use
	rnd   *rand.Rand
}

// Option configures a ServerSet.
type Option func(s *ServerSet)

// WithAuthenticator makes the set authenticate every new connection.
func WithAuthenticator(a conn.Authenticator) Option {
	return func(s *ServerSet) { s.auth = a }
}

// WithPostConnect adds setup steps run in order on every new connection.
func WithPostConnect(processors ...conn.PostConnectProcessor) Option {
	return func(s *ServerSet) { s.postConnect = append(s.postConnect, processors...) }
}

// WithConnectionOptions passes options through to every connection the
// set creates.
func WithConnectionOptions(opts ...conn.Option) Option {
	return func(s *ServerSet) { s.connOpts = append(s.connOpts, opts...) }
}

// WithRandSeed seeds the tie-break shuffle deterministically. Tests use
// this to assert exact selection order; production code should not.
func WithRandSeed(seed int64) Option {
	return func(s *ServerSet) { s.rnd = rand.New(rand.NewSource(seed)) }
}

// NewFewestConnections creates a server set over the given roster. The
// roster must not be empty; duplicate targets collapse into one entry.
func NewFewestConnections(connector transport.Connector, targets []conn.Target, opts ...Option) (*ServerSet, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("serverset: roster must not be empty")
	}

	s := &ServerSet{
		counts:    make(map[conn.Target]*atomic.Int64, len(targets)),
		stats:     make(map[conn.Target]*targetMetrics, len(targets)),
		connector: connector,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, t := range targets {
		if _, ok := s.counts[t]; ok {
			continue
		}
		s.targets = append(s.targets, t)
		s.counts[t] = &atomic.Int64{}
		s.stats[t] = &targetMetrics{
			attempts:    metrics.GetOrCreateCounter(fmt.Sprintf(`dldap_connect_attempts_total{server=%q}`, t)),
			failures:    metrics.GetOrCreateCounter(fmt.Sprintf(`dldap_connect_failures_total{server=%q}`, t)),
			established: metrics.GetOrCreateCounter(fmt.Sprintf(`dldap_connections_established_total{server=%q}`, t)),
		}
	}

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// --------------------------------------------------------------------------
// Selection
// --------------------------------------------------------------------------

// GetConnection selects a target, establishes a connection to it and
// returns it ready for use. Targets are tried from fewest established
// connections to most, failing over to the next candidate on error; the
// first success wins. The optional health check runs as the last setup
// step. If every target fails, the last error is propagated.
//
// The call either returns a usable connection or fails; it performs no
// internal retry loop. The walk over the roster is the failover
// strategy, exhausted exactly once per call.
func (s *ServerSet) GetConnection(healthCheck conn.HealthCheck) (*conn.Connection, error) {
	// Organize the targets into buckets by increasing connection count.
	// This is a point-in-time snapshot; counts may move underneath us and
	// that is fine.
	buckets := make(map[int64][]conn.Target)
	for _, t := range s.targets {
		count := s.counts[t].Load()
		buckets[count] = append(buckets[count], t)
	}

	countValues := make([]int64, 0, len(buckets))
	for count := range buckets {
		countValues = append(countValues, count)
	}
	sort.Slice(countValues, func(i, j int) bool { return countValues[i] < countValues[j] })

	var lastErr error
	for _, count := range countValues {
		bucket := buckets[count]

		// Randomize the order within a bucket so equally loaded targets
		// share the traffic instead of the roster-first one taking it all
		if len(bucket) > 1 {
			s.shuffle(bucket)
		}

		for _, t := range bucket {
			c, err := s.attempt(t, healthCheck)
			if err != nil {
				s.stats[t].failures.Inc()
				Logger.Debugf("connection attempt to %s failed: %v", t, err)
				lastErr = err
				continue
			}

			s.counts[t].Add(1)
			s.stats[t].established.Inc()

			// Register the close hook only after the increment committed so
			// the decrement can never run ahead of it
			c.OnClose(s.handleConnectionClosed)
			return c, nil
		}
	}

	return nil, &AllTargetsFailedError{Last: lastErr}
}

// attempt runs the full setup pipeline against one target. It holds no
// lock: a slow or dead server only delays its own attempt.
func (s *ServerSet) attempt(t conn.Target, healthCheck conn.HealthCheck) (*conn.Connection, error) {
	s.stats[t].attempts.Inc()

	c := conn.New(s.connector, t, s.connOpts...)
	if err := c.Open(); err != nil {
		return nil, err
	}
	if s.auth != nil {
		if err := c.Authenticate(s.auth); err != nil {
			c.Close()
			return nil, err
		}
	}
	if len(s.postConnect) > 0 {
		if err := c.PostConnect(s.postConnect...); err != nil {
			c.Close()
			return nil, err
		}
	}
	if healthCheck != nil {
		if err := c.CheckHealth(healthCheck); err != nil {
			c.Close()
			return nil, err
		}
	}
	if err := c.MarkReady(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// shuffle randomizes a bucket in place. Recomputed on every call since
// counts shift between calls.
func (s *ServerSet) shuffle(bucket []conn.Target) {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	s.rnd.Shuffle(len(bucket), func(i, j int) {
		bucket[i], bucket[j] = bucket[j], bucket[i]
	})
}

// handleConnectionClosed reconciles the count table when a connection
// created by this set closes.
func (s *ServerSet) handleConnectionClosed(t conn.Target) {
	counter, ok := s.counts[t]
	if !ok {
		return
	}
	remaining := counter.Add(-1)
	if remaining < 0 {
		// Shouldn't happen since the hook is registered after the
		// increment; reset to zero rather than letting the count drift
		counter.CompareAndSwap(remaining, 0)
	}
}

// --------------------------------------------------------------------------
// Introspection
// --------------------------------------------------------------------------

// Targets returns the roster in its original order.
func (s *ServerSet) Targets() []conn.Target {
	out := make([]conn.Target, len(s.targets))
	copy(out, s.targets)
	return out
}

// ActiveConnections returns the live-connection count currently recorded
// for the given target.
func (s *ServerSet) ActiveConnections(t conn.Target) int64 {
	counter, ok := s.counts[t]
	if !ok {
		return 0
	}
	return counter.Load()
}

// String returns a formatted representation of the set and its counts.
func (s *ServerSet) String() string {
	var sb strings.Builder
	sb.WriteString("FewestConnectionsServerSet(servers={")
	for i, t := range s.targets {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "'%s':%d", t, s.counts[t].Load())
	}
	fmt.Fprintf(&sb, "}, includesAuthentication=%t", s.auth != nil)
	fmt.Fprintf(&sb, ", includesPostConnectProcessing=%t)", len(s.postConnect) > 0)
	return sb.String()
}
