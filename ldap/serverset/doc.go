// Package serverset implements the server-selection engine that routes
// new connection requests across a fixed roster of directory servers.
//
// The fewest-connections strategy tracks how many live connections this
// set has established per server and always tries the least-loaded
// server first. Servers tied on count are attempted in random order on
// every call so sustained ties spread load instead of starving all but
// the first target. When a server is unreachable the next-best one is
// tried; only after every target has failed does the caller see an
// error, carrying the last failure encountered.
//
// The per-target count table is the only shared mutable state: an
// immutable map from target to an atomic counter cell, built once at
// construction. Snapshots for bucketing are point-in-time reads; the
// invariant is that no increment or decrement is ever lost, not that
// selection sees a perfectly fresh count. Network attempts run without
// holding any lock, so one slow server never stalls selection for
// other callers.
package serverset
