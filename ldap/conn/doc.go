// Package conn implements a single logical connection to one directory
// server.
//
// A connection walks a one-way state machine:
//
//	Unopened -> Opened -> Authenticated -> PostConnected -> HealthChecked -> Ready -> Closed
//
// The authentication, post-connect and health-check stages are optional
// and each is performed at most once; any failed transition leaves the
// connection unusable and the caller discards it. Retry and failover are
// not this layer's job, the server set owns them.
//
// Closing a ready connection notifies the owner that created it through
// the registered close hook so per-server connection counts stay
// accurate. Closing an already-closed connection is a no-op.
package conn
