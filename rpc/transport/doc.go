// Package transport defines the transport adapter used by the OrbitDB gateway
// client: a contract for performing HTTP requests against a base url with
// configured headers and timeouts.
//
// The package focuses on:
//   - A single interface (IHTTPClientTransport) so the client can be tested
//     against fakes and instrumented transports
//   - Per-call options: query, JSON body, streamed responses, timeout override
//
// Implementations:
//
//   - http: net/http based implementation with request metrics.
//
//   - sse: Not a transport itself, but the incremental reader (on top of
//     github.com/tmaxmax/go-sse) that splits a streamed response body into
//     server-sent event frames.
package transport
