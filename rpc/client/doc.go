// Package client implements the Go client of the OrbitDB HTTP gateway.
//
// A Client owns the configuration, the transport, the optional server side
// session and the registries of open databases and event subscriptions.
// Databases are opened through the client and returned as one of five
// concrete handle kinds. Each kind only has the methods its database type
// supports, so calling an unsupported operation does not compile:
//
//	| type     | handle       | operations                          |
//	|----------|--------------|-------------------------------------|
//	| keyvalue | *KeyValueDB  | Get, Put, Remove                    |
//	| feed     | *FeedDB      | Add, Get, Iterator, Remove          |
//	| eventlog | *EventLogDB  | Add, Get, Iterator                  |
//	| docstore | *DocStoreDB  | Get, Put, PutAll, Query, Remove     |
//	| counter  | *CounterDB   | Inc, Value                          |
//
// Usage Example:
//
//	config := common.DefaultClientConfig("http://localhost:3000")
//	c, _ := client.New(config, http.NewHttpClientTransport(), serializer.NewJSONSerializer())
//	defer c.Close(ctx)
//
//	kv, _ := c.OpenKeyValue(ctx, "settings", store.OpenOptions{Create: true})
//	kv.Put(ctx, "theme", "dark")
//	value, _ := kv.Get(ctx, "theme")
//
//	events, _ := kv.Events(ctx, "write")
//	defer events.Close()
//	for event, err := range events.All() {
//		...
//	}
//
// Errors:
//
//	Failures are returned, never retried: *common.TransportError (I/O),
//	*common.DecodeError (body is not JSON), *common.ServerError (non-2xx
//	status, decoded body attached). Operations on an unloaded handle return
//	common.ErrUnloaded, calls after Close return common.ErrClientClosed.
//
// Timeouts:
//
//	Every request is bounded by ClientConfig.TimeoutSecond. WithTimeout
//	overrides it for the calls made with the returned context.
//
// Concurrency:
//
//	Client and handles are safe for concurrent use. Client.Async returns
//	a view whose operations return futures; Go wraps any other call.
package client
