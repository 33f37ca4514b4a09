// Package common provides the data structures and utilities shared by the
// OrbitDB gateway client packages.
//
// The package focuses on:
//   - The wire protocol: request descriptions and strict path escaping
//   - Configuration of the client
//   - The error taxonomy surfaced to callers
//   - Custom logging integrated with Dragonboat's logger package
//
// Key Components:
//
//   - Request: Describes one HTTP call (method, escaped endpoint, body,
//     query, stream flag, timeout override). Factory functions exist for every
//     endpoint of the gateway, e.g. NewOpenRequest or NewIncRequest.
//
//   - EscapeSegment: Percent-encodes a string so it is safe as a single path
//     segment. Database addresses contain "/" and are always encoded as one
//     segment.
//
//   - ClientConfig: Base URL, headers, timeout and database cache switch.
//
//   - TransportError, DecodeError, ServerError: Typed failures for I/O errors,
//     bodies that are not JSON and non-2xx replies. Nothing is retried.
//
//   - Logger: Custom logging implementation that integrates with Dragonboat's
//     logging system while providing consistent formatting across the application.
package common
