package client

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ValentinKolb/orbitapi/lib/store"
	"github.com/ValentinKolb/orbitapi/rpc/common"
)

func TestAsyncConcurrentPuts(t *testing.T) {
	c, _, _ := newTestClient(t)
	ctx := context.Background()
	a := c.Async()
	assert.Same(t, c, a.Sync())

	kv, err := a.OpenKeyValue(ctx, "kv", store.OpenOptions{Create: true}).Await(ctx)
	require.NoError(t, err)

	const n = 50
	futures := make([]*Future[any], n)
	for i := range n {
		futures[i] = Go(ctx, func(ctx context.Context) (any, error) {
			return kv.Put(ctx, fmt.Sprintf("k%d", i), i)
		})
	}
	hashes, err := AwaitAll(ctx, futures...)
	require.NoError(t, err)
	assert.Len(t, hashes, n)

	all, err := kv.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, n)
}

func TestAsyncClientOperations(t *testing.T) {
	c, gw, _ := newTestClient(t)
	ctx := context.Background()
	a := c.Async()

	id, err := a.CreateSession(ctx).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{id.String()}, gw.Sessions())

	counter, err := a.OpenCounter(ctx, "count", store.OpenOptions{Create: true}).Await(ctx)
	require.NoError(t, err)
	_, err = Go(ctx, func(ctx context.Context) (any, error) { return counter.Inc(ctx, 2) }).Await(ctx)
	require.NoError(t, err)

	dbs, err := a.ListDatabases(ctx).Await(ctx)
	require.NoError(t, err)
	assert.Len(t, dbs, 1)

	_, err = a.Close(ctx).Await(ctx)
	require.NoError(t, err)
	assert.Empty(t, gw.Sessions())

	_, err = a.ListDatabases(ctx).Await(ctx)
	assert.ErrorIs(t, err, common.ErrClientClosed)
}

func TestFutureAwaitHonorsContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	f := Go(context.Background(), func(context.Context) (int, error) {
		<-release
		return 1, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-f.Done():
		t.Fatal("future must still be running")
	default:
	}
}

func TestAwaitAllCollectsErrors(t *testing.T) {
	ctx := context.Background()
	errA, errB := errors.New("a"), errors.New("b")

	values, err := AwaitAll(ctx,
		Go(ctx, func(context.Context) (int, error) { return 1, nil }),
		Go(ctx, func(context.Context) (int, error) { return 0, errA }),
		Go(ctx, func(context.Context) (int, error) { return 0, errB }),
	)
	assert.Equal(t, []int{1, 0, 0}, values)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}
