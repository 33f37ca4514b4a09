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

func TestDecoderServerErrorCarriesBody(t *testing.T) {
	c, gw, _ := newTestClient(t)
	gw.Respond(http.MethodGet, "/dbs", http.StatusInternalServerError, `{"statusCode":500,"message":"boom"}`)

	_, err := c.ListDatabases(context.Background())
	var se *common.ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, map[string]any{"statusCode": 500.0, "message": "boom"}, se.Body)
	assert.Contains(t, se.Error(), "boom")
}

func TestDecoderParsesBeforeCheckingStatus(t *testing.T) {
	c, gw, _ := newTestClient(t)
	ctx := context.Background()

	// a non-JSON body is a decode error, whatever the status
	gw.Respond(http.MethodGet, "/dbs", http.StatusBadGateway, `<html>bad gateway</html>`)
	_, err := c.ListDatabases(ctx)
	var de *common.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, http.StatusBadGateway, de.StatusCode)
	assert.Equal(t, "<html>bad gateway</html>", string(de.Body))

	gw.Respond(http.MethodGet, "/dbs", http.StatusOK, `[1, 2`)
	_, err = c.ListDatabases(ctx)
	require.ErrorAs(t, err, &de)
	assert.Equal(t, http.StatusOK, de.StatusCode)
}

func TestDecoderUnexpectedShape(t *testing.T) {
	c, gw, _ := newTestClient(t)

	// valid JSON that does not fit the result type
	gw.Respond(http.MethodGet, "/dbs", http.StatusOK, `{"not":"a list"}`)
	_, err := c.ListDatabases(context.Background())
	var de *common.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, http.StatusOK, de.StatusCode)
}

func TestWithTimeoutOverridesConfiguredTimeout(t *testing.T) {
	c, gw, _ := newTestClient(t)
	ctx := context.Background()
	hold := gw.Hold(http.MethodGet, "/dbs")
	defer hold.Release()

	start := time.Now()
	_, err := c.ListDatabases(WithTimeout(ctx, 100*time.Millisecond))
	var te *common.TransportError
	require.ErrorAs(t, err, &te)
	assert.Less(t, time.Since(start), 5*time.Second, "configured timeout is 30s")

	// a generous override does not get in the way
	kv, err := c.OpenKeyValue(ctx, "kv", store.OpenOptions{Create: true})
	require.NoError(t, err)
	_, err = kv.Put(WithTimeout(ctx, 5*time.Second), "k", "v")
	assert.NoError(t, err)
}
