package client

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ValentinKolb/orbitapi/lib/store"
	"github.com/ValentinKolb/orbitapi/rpc/common"
)

func TestKeyValueRoundTrip(t *testing.T) {
	c, gw, _ := newTestClient(t)
	ctx := context.Background()

	kv, err := c.OpenKeyValue(ctx, "kv", store.OpenOptions{Create: true})
	require.NoError(t, err)

	const n = 100
	for i := range n {
		hash, err := kv.Put(ctx, fmt.Sprintf("key/%d", i), fmt.Sprintf("value-%d", i))
		require.NoError(t, err)
		assert.NotEmpty(t, hash)
	}
	for i := range n {
		value, err := kv.Get(ctx, fmt.Sprintf("key/%d", i))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("value-%d", i), value)
	}
	assert.Equal(t, n, gw.Count(http.MethodPost, dbPath(kv.Address(), "put")), "address is one escaped segment")

	// structured values survive the round trip
	_, err = kv.Put(ctx, "doc", map[string]any{"nested": []any{1.0, "two"}})
	require.NoError(t, err)
	value, err := kv.Get(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"nested": []any{1.0, "two"}}, value)

	// keys are escaped as one segment as well
	assert.Equal(t, 1, gw.Count(http.MethodGet, dbPath(kv.Address(), "key%2F7")))
}

func TestKeyValueRemove(t *testing.T) {
	c, _, _ := newTestClient(t)
	ctx := context.Background()

	kv, err := c.OpenKeyValue(ctx, "kv", store.OpenOptions{Create: true})
	require.NoError(t, err)

	_, err = kv.Put(ctx, "a", "1")
	require.NoError(t, err)
	_, err = kv.Put(ctx, "b", "2")
	require.NoError(t, err)
	_, err = kv.Remove(ctx, "a")
	require.NoError(t, err)

	all, err := kv.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"b": "2"}, all)

	_, err = kv.Get(ctx, "a")
	assert.Equal(t, http.StatusNotFound, common.StatusCodeOf(err))

	index, err := kv.Index(ctx)
	require.NoError(t, err)
	assert.Equal(t, all, index)
}

func TestFeedIterator(t *testing.T) {
	c, _, _ := newTestClient(t)
	ctx := context.Background()

	feed, err := c.OpenFeed(ctx, "feed", store.OpenOptions{Create: true})
	require.NoError(t, err)

	hashes := make([]string, 5)
	for i := range hashes {
		h, err := feed.Add(ctx, map[string]any{"n": float64(i)})
		require.NoError(t, err)
		hashes[i] = h.(string)
	}

	valueOf := func(e any) any { return e.(map[string]any)["value"].(map[string]any)["n"] }
	limit := func(n int) *int { return &n }

	all, err := feed.Iterator(ctx, store.IteratorOptions{Limit: limit(-1)})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, 0.0, valueOf(all[0]))

	last, err := feed.Iterator(ctx, store.IteratorOptions{})
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, 4.0, valueOf(last[0]))

	reversed, err := feed.Iterator(ctx, store.IteratorOptions{Limit: limit(2), Reverse: true})
	require.NoError(t, err)
	require.Len(t, reversed, 2)
	assert.Equal(t, 4.0, valueOf(reversed[0]))
	assert.Equal(t, 3.0, valueOf(reversed[1]))

	between, err := feed.Iterator(ctx, store.IteratorOptions{Limit: limit(-1), Gt: hashes[0], Lte: hashes[2]})
	require.NoError(t, err)
	require.Len(t, between, 2)
	assert.Equal(t, 1.0, valueOf(between[0]))

	entry, err := feed.Get(ctx, hashes[3])
	require.NoError(t, err)
	assert.Equal(t, 3.0, valueOf(entry))

	_, err = feed.Remove(ctx, hashes[3])
	require.NoError(t, err)
	all, err = feed.Iterator(ctx, store.IteratorOptions{Limit: limit(-1)})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestEventLogAppendOnly(t *testing.T) {
	c, _, _ := newTestClient(t)
	ctx := context.Background()

	log, err := c.OpenEventLog(ctx, "log", store.OpenOptions{Create: true})
	require.NoError(t, err)

	h, err := log.Add(ctx, "first")
	require.NoError(t, err)
	_, err = log.Add(ctx, "second")
	require.NoError(t, err)

	entry, err := log.Get(ctx, h.(string))
	require.NoError(t, err)
	assert.Equal(t, "first", entry.(map[string]any)["value"])

	entries, err := log.Iterator(ctx, store.IteratorOptions{Limit: new(int)})
	require.NoError(t, err)
	assert.Empty(t, entries)

	// removal is not part of the eventlog kind
	_, isFeed := any(log).(store.IFeed)
	assert.False(t, isFeed)
}

func TestDocStore(t *testing.T) {
	c, _, _ := newTestClient(t)
	ctx := context.Background()

	docs, err := c.OpenDocStore(ctx, "docs", store.OpenOptions{Create: true})
	require.NoError(t, err)

	_, err = docs.Put(ctx, map[string]any{"_id": "alice", "age": 31.0})
	require.NoError(t, err)
	_, err = docs.PutAll(ctx, []any{
		map[string]any{"_id": "bob", "age": 25.0},
		map[string]any{"_id": "carol", "age": 42.0},
	})
	require.NoError(t, err)

	got, err := docs.Get(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 25.0, got[0].(map[string]any)["age"])

	none, err := docs.Get(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)

	older, err := docs.Query(ctx, store.Query{PropName: "age", Comp: "gt", Values: []any{30}})
	require.NoError(t, err)
	assert.Len(t, older, 2)

	_, err = docs.Put(ctx, map[string]any{"name": "no id"})
	assert.Equal(t, http.StatusBadRequest, common.StatusCodeOf(err))

	_, err = docs.Remove(ctx, "alice")
	require.NoError(t, err)
	all, err := docs.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCounter(t *testing.T) {
	c, _, _ := newTestClient(t)
	ctx := context.Background()

	counter, err := c.OpenCounter(ctx, "visits", store.OpenOptions{Create: true})
	require.NoError(t, err)

	_, err = counter.Inc(ctx, 5)
	require.NoError(t, err)
	_, err = counter.Inc(ctx, 3)
	require.NoError(t, err)

	value, err := counter.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8), value)
}

func TestInfoAndAwaitReady(t *testing.T) {
	c, gw, _ := newTestClient(t)
	ctx := context.Background()

	gw.SetPending("slow", 3)
	kv, err := c.OpenKeyValue(ctx, "slow", store.OpenOptions{Create: true})
	require.NoError(t, err)
	assert.False(t, kv.Ready())

	require.NoError(t, kv.AwaitReady(ctx))
	assert.True(t, kv.Ready())
	assert.Equal(t, 3, gw.Count(http.MethodGet, dbPath(kv.Address())))

	// ready handles return at once
	require.NoError(t, kv.AwaitReady(ctx))
	assert.Equal(t, 3, gw.Count(http.MethodGet, dbPath(kv.Address())))

	info, err := kv.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, kv.Address(), info.Address)
	assert.Equal(t, "slow", info.DBName)
	assert.Equal(t, store.TypeKeyValue, info.Type)
	assert.True(t, info.Ready)
}

func TestAwaitReadyHonorsContext(t *testing.T) {
	c, gw, _ := newTestClient(t)

	gw.SetPending("never", 1_000_000)
	kv, err := c.OpenKeyValue(context.Background(), "never", store.OpenOptions{Create: true})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err = kv.AwaitReady(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, kv.Ready())
}

func TestAwaitReadyStopsOnError(t *testing.T) {
	c, gw, _ := newTestClient(t)
	ctx := context.Background()

	gw.SetPending("broken", 5)
	kv, err := c.OpenKeyValue(ctx, "broken", store.OpenOptions{Create: true})
	require.NoError(t, err)
	gw.Respond(http.MethodGet, dbPath(kv.Address()), http.StatusInternalServerError, `{"message":"gone"}`)

	err = kv.AwaitReady(ctx)
	assert.Equal(t, http.StatusInternalServerError, common.StatusCodeOf(err))
	assert.Equal(t, 1, gw.Count(http.MethodGet, dbPath(kv.Address())))
}
