package client

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ValentinKolb/orbitapi/lib/store"
	"github.com/ValentinKolb/orbitapi/rpc/common"
)

func TestEventsDecodePayloads(t *testing.T) {
	c, gw, _ := newTestClient(t)
	ctx := context.Background()

	sub, err := c.Events(ctx, "ready", "replicated")
	require.NoError(t, err)
	assert.Equal(t, []string{"ready", "replicated"}, sub.Names())
	assert.Equal(t, 1, gw.Count(http.MethodGet, "/events/ready%2Creplicated"))

	require.Equal(t, 1, gw.Emit("", "ready", "not json"))
	require.Equal(t, 1, gw.Emit("", "replicated", map[string]any{"address": "/orbitdb/x"}))

	// a malformed payload fails only this event
	event, err := sub.Next()
	var de *common.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "ready", event.Name)
	assert.Equal(t, "not json", event.Data)
	assert.Equal(t, []byte("not json"), de.Body)

	event, err = sub.Next()
	require.NoError(t, err)
	assert.Equal(t, "replicated", event.Name)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, map[string]any{"address": "/orbitdb/x"}, event.Value)

	var payload struct {
		Address string `json:"address"`
	}
	require.NoError(t, event.JSON(&payload))
	assert.Equal(t, "/orbitdb/x", payload.Address)

	// events the subscription did not ask for are not delivered
	assert.Equal(t, 0, gw.Emit("", "write", "{}"))
}

func TestEventsCloseReleasesStream(t *testing.T) {
	c, gw, _ := newTestClient(t)

	sub, err := c.Events(context.Background(), "write")
	require.NoError(t, err)
	require.Len(t, c.ActiveSubscriptions(), 1)
	require.Equal(t, 1, gw.Streams())

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	assert.True(t, sub.Complete())
	assert.Empty(t, c.ActiveSubscriptions())

	_, err = sub.Next()
	assert.ErrorIs(t, err, store.ErrStreamDone)

	assert.Eventually(t, func() bool { return gw.Streams() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestEventsEndNaturally(t *testing.T) {
	c, gw, _ := newTestClient(t)

	sub, err := c.Events(context.Background(), "write")
	require.NoError(t, err)

	gw.Emit("", "write", `{"n":1}`)
	event, err := sub.Next()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": 1.0}, event.Value)

	gw.CloseStreams()
	_, err = sub.Next()
	assert.ErrorIs(t, err, store.ErrStreamDone)
	assert.True(t, sub.Complete())
	assert.Empty(t, c.ActiveSubscriptions())

	// pulling again stays done
	_, err = sub.Next()
	assert.ErrorIs(t, err, store.ErrStreamDone)
}

func TestEventsAllStopsEarly(t *testing.T) {
	c, gw, _ := newTestClient(t)

	sub, err := c.Events(context.Background(), "write")
	require.NoError(t, err)
	for i := range 3 {
		gw.Emit("", "write", map[string]any{"n": i})
	}

	var seen []any
	for event, err := range sub.All() {
		require.NoError(t, err)
		seen = append(seen, event.Value)
		if len(seen) == 2 {
			break
		}
	}

	assert.Len(t, seen, 2)
	assert.True(t, sub.Complete())
	assert.Empty(t, c.ActiveSubscriptions())
}

func TestEventsRefusedBeforeReading(t *testing.T) {
	c, gw, _ := newTestClient(t)
	gw.Respond(http.MethodGet, "/events/write", http.StatusServiceUnavailable, `{"message":"no pubsub"}`)

	sub, err := c.Events(context.Background(), "write")
	assert.Nil(t, sub)
	var se *common.ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, map[string]any{"message": "no pubsub"}, se.Body)
	assert.Empty(t, c.ActiveSubscriptions())
}

func TestDatabaseEvents(t *testing.T) {
	c, gw, _ := newTestClient(t)
	ctx := context.Background()

	kv, err := c.OpenKeyValue(ctx, "kv", store.OpenOptions{Create: true})
	require.NoError(t, err)
	other, err := c.OpenKeyValue(ctx, "other", store.OpenOptions{Create: true})
	require.NoError(t, err)

	events, err := kv.Events(ctx, "write")
	require.NoError(t, err)
	assert.Equal(t, 1, gw.Count(http.MethodGet, dbPath(kv.Address(), "events", "write")))

	// writes to another database are not part of this stream
	_, err = other.Put(ctx, "ignored", 1)
	require.NoError(t, err)
	_, err = kv.Put(ctx, "greeting", "hello")
	require.NoError(t, err)

	event, err := events.Next()
	require.NoError(t, err)
	assert.Equal(t, "write", event.Name)
	payload := event.Value.(map[string]any)
	assert.Equal(t, "greeting", payload["key"])
	assert.Equal(t, "hello", payload["value"])
}

func TestUnloadClosesDatabaseEvents(t *testing.T) {
	c, _, _ := newTestClient(t)
	ctx := context.Background()

	kv, err := c.OpenKeyValue(ctx, "kv", store.OpenOptions{Create: true})
	require.NoError(t, err)
	dbEvents, err := kv.Events(ctx, "write")
	require.NoError(t, err)
	global, err := c.Events(ctx, "write")
	require.NoError(t, err)
	require.Len(t, c.ActiveSubscriptions(), 2)

	require.NoError(t, kv.Unload(ctx))
	assert.True(t, dbEvents.Complete())
	assert.False(t, global.Complete())
	assert.Equal(t, []*Subscription{global}, c.ActiveSubscriptions())
}
