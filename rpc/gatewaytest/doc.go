// Package gatewaytest provides an in-memory implementation of the OrbitDB
// HTTP gateway for tests.
//
// The Gateway keeps databases of all five types in memory and answers the
// same routes as the real gateway, including the server-sent event streams.
// Failures can be injected per route (Respond) or for the unload of a single
// database (FailUnload), readiness can be delayed (SetPending) and events
// can be pushed to subscribers (Emit).
//
// Usage Example:
//
//	gw, srv := gatewaytest.NewServer(t)
//	c, _ := client.New(common.DefaultClientConfig(srv.URL), http.NewHttpClientTransport(), nil)
//	kv, _ := c.OpenKeyValue(ctx, "settings", store.OpenOptions{Create: true})
//	...
//	assert.Equal(t, 1, gw.Count(nethttp.MethodPost, "/db/settings"))
package gatewaytest
