// Package transport abstracts how raw byte streams to directory servers
// are produced. The Connector interface is the single seam between the
// connection layer and the network: timeouts, TLS and socket options are
// a connector's responsibility, everything above it only sees a
// net.Conn.
//
// The package ships a plain TCP connector; tests inject in-memory
// connectors through the same interface.
package transport
