// Package common holds the configuration structures and logging setup
// shared across the client runtime: the ClientConfig consumed by the
// CLI and the pool, endpoint parsing into server targets, and the
// logger factory that gives every package a uniformly formatted named
// logger.
package common
