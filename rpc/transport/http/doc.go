// Package http implements the transport adapter of the OrbitDB gateway client
// on top of net/http.
//
// Key Components:
//
//   - httpClientTransport: Implements transport.IHTTPClientTransport. It joins
//     the base url and the escaped endpoint with a single "/", applies the
//     configured headers to every request and enforces the timeout per call.
//     For streamed requests the timeout only covers the wait for the response
//     headers, the stream itself may stay open indefinitely.
//
// Every request is logged at debug level before it is sent. I/O failures are
// logged and returned as *common.TransportError, they are never retried.
//
// Metrics (github.com/VictoriaMetrics/metrics, default set):
//
//	orbitapi_requests_total{method="..."}
//	orbitapi_request_errors_total{method="..."}
//	orbitapi_request_duration_seconds{method="..."}
//
// Thread Safety:
//
//	The transport is thread-safe and can be used concurrently.
package http
