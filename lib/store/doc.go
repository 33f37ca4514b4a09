// Package store defines the client-side view of an OrbitDB database: the
// database types, the capabilities each type exposes, and one interface per
// type that the RPC client implements.
//
// The package focuses on:
//   - A single canonical capability table (DBType -> CapabilitySet)
//   - Interfaces that make capability gating a compile-time property
//   - Request and event shapes shared by the client and the CLI
//
// Key Components:
//
//   - IStore: Operations every opened database supports regardless of its
//     type (info, peers, events, unload).
//
//   - IKeyValue, IFeed, IEventLog, IDocStore, ICounter: One interface per
//     database type. Each exposes exactly the capabilities listed for that
//     type by Capabilities.
//
//   - IEventStream: A pull-based sequence of server-sent events that must be
//     closed by its consumer.
//
// Capability table:
//
//	keyvalue  get, put, remove
//	feed      add, get, iterator, remove
//	eventlog  add, get, iterator
//	docstore  get, put, putAll, query, remove
//	counter   inc, value
package store
