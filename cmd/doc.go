// Package cmd implements the command-line interface for the dLDAP directory
// client runtime. It provides a hierarchical command structure for inspecting
// directory servers and exercising the connection layer.
//
// The package is organized into several subpackages:
//
//   - server: Commands for checking server health and measuring connection latency
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dldap -help for a list of all commands.
package cmd
