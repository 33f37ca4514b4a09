// Package serializer provides the JSON codecs used by the OrbitDB gateway
// client. The gateway speaks JSON only, so the implementations differ in
// speed, not in format.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - jsonSerializerImpl: encoding/json from the standard library. The default.
//
//   - jsonIterSerializerImpl: json-iterator in its standard library compatible
//     configuration. Faster on large iterator and docstore replies.
//
// Both implementations reject trailing data and empty input, which the
// client reports as a decode error.
package serializer
