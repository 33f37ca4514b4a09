// Package cmd implements the command-line interface of orbitapi, a client for
// the OrbitDB HTTP gateway.
//
// The package is organized into several subpackages:
//
//   - db: Commands for database operations (open, get, put, events, perf, ...)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set through the environment with the prefix
// ORBITAPI_ (e.g. ORBITAPI_BASE_URL), .env and .env.local are loaded first.
//
// See orbitapi -help for a list of all commands.
package cmd
