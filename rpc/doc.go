// Package rpc provides the client side of the OrbitDB HTTP gateway protocol.
//
// The package is organized into several subpackages:
//
//   - common: Request descriptions and path escaping, configuration, the
//     error taxonomy and logging.
//
//   - transport: The transport contract and its net/http implementation,
//     plus an incremental server-sent event reader.
//
//   - serializer: JSON codecs (encoding/json, json-iterator) for request
//     bodies, responses and event payloads.
//
//   - client: The client, the typed database handles and event subscriptions.
//
//   - gatewaytest: An in-memory gateway for tests.
package rpc
