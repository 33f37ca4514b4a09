package client

import (
	"context"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/ValentinKolb/orbitapi/lib/store"
)

// --------------------------------------------------------------------------
// Future
// --------------------------------------------------------------------------

// Future is the result of an operation running in its own goroutine.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Go runs fn in a new goroutine and returns its future. Any blocking call of
// the client or of a handle can be made asynchronous this way:
//
//	f := client.Go(ctx, func(ctx context.Context) (any, error) {
//		return kv.Put(ctx, "key", "value")
//	})
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.value, f.err = fn(ctx)
	}()
	return f
}

// Done is closed once the result is available
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await waits for the result. If ctx ends first, ctx.Err() is returned and
// the operation keeps running (it is bound to the context passed to Go).
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// AwaitAll waits for all futures and returns their values in order.
// The errors of all failed futures are returned together.
func AwaitAll[T any](ctx context.Context, futures ...*Future[T]) ([]T, error) {
	values := make([]T, len(futures))
	var result *multierror.Error
	for i, f := range futures {
		v, err := f.Await(ctx)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		values[i] = v
	}
	return values, result.ErrorOrNil()
}

// --------------------------------------------------------------------------
// AsyncClient
// --------------------------------------------------------------------------

// AsyncClient exposes the operations of a Client as futures. It shares all
// state with the Client it was created from.
type AsyncClient struct {
	c *Client
}

// Async returns the asynchronous view of c
func (c *Client) Async() *AsyncClient {
	return &AsyncClient{c: c}
}

// Sync returns the underlying client
func (a *AsyncClient) Sync() *Client {
	return a.c
}

func (a *AsyncClient) CreateSession(ctx context.Context) *Future[uuid.UUID] {
	return Go(ctx, a.c.CreateSession)
}

func (a *AsyncClient) DestroySession(ctx context.Context) *Future[struct{}] {
	return Go(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.c.DestroySession(ctx)
	})
}

func (a *AsyncClient) ListDatabases(ctx context.Context) *Future[[]any] {
	return Go(ctx, a.c.ListDatabases)
}

func (a *AsyncClient) Searches(ctx context.Context) *Future[[]any] {
	return Go(ctx, a.c.Searches)
}

func (a *AsyncClient) Events(ctx context.Context, names ...string) *Future[*Subscription] {
	return Go(ctx, func(ctx context.Context) (*Subscription, error) {
		return a.c.Events(ctx, names...)
	})
}

func (a *AsyncClient) OpenDatabase(ctx context.Context, name string, opts store.OpenOptions) *Future[DB] {
	return Go(ctx, func(ctx context.Context) (DB, error) {
		return a.c.OpenDatabase(ctx, name, opts)
	})
}

func (a *AsyncClient) OpenKeyValue(ctx context.Context, name string, opts store.OpenOptions) *Future[*KeyValueDB] {
	return Go(ctx, func(ctx context.Context) (*KeyValueDB, error) {
		return a.c.OpenKeyValue(ctx, name, opts)
	})
}

func (a *AsyncClient) OpenFeed(ctx context.Context, name string, opts store.OpenOptions) *Future[*FeedDB] {
	return Go(ctx, func(ctx context.Context) (*FeedDB, error) {
		return a.c.OpenFeed(ctx, name, opts)
	})
}

func (a *AsyncClient) OpenEventLog(ctx context.Context, name string, opts store.OpenOptions) *Future[*EventLogDB] {
	return Go(ctx, func(ctx context.Context) (*EventLogDB, error) {
		return a.c.OpenEventLog(ctx, name, opts)
	})
}

func (a *AsyncClient) OpenDocStore(ctx context.Context, name string, opts store.OpenOptions) *Future[*DocStoreDB] {
	return Go(ctx, func(ctx context.Context) (*DocStoreDB, error) {
		return a.c.OpenDocStore(ctx, name, opts)
	})
}

func (a *AsyncClient) OpenCounter(ctx context.Context, name string, opts store.OpenOptions) *Future[*CounterDB] {
	return Go(ctx, func(ctx context.Context) (*CounterDB, error) {
		return a.c.OpenCounter(ctx, name, opts)
	})
}

func (a *AsyncClient) Close(ctx context.Context) *Future[struct{}] {
	return Go(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.c.Close(ctx)
	})
}
