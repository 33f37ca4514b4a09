package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ValentinKolb/orbitapi/rpc/common"
	"github.com/ValentinKolb/orbitapi/rpc/transport"
)

func connect(t *testing.T, baseURL string, timeoutSecond int) transport.IHTTPClientTransport {
	t.Helper()
	tr := NewHttpClientTransport()
	config := common.DefaultClientConfig(baseURL)
	config.TimeoutSecond = timeoutSecond
	config.Headers = map[string]string{"X-Api-Key": "secret", "Connection": "close"}
	require.NoError(t, tr.Connect(config))
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "http://h/api/dbs", joinURL("http://h/api", "dbs", nil))
	assert.Equal(t, "http://h//dbs", joinURL("http://h/", "dbs", nil), "duplicate slashes are kept")
	assert.Equal(t, "http://h/x?limit=-1", joinURL("http://h", "x", url.Values{"limit": {"-1"}}))
}

func TestDoSendsHeadersBodyAndEscapedPath(t *testing.T) {
	var gotPath, gotKey, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotKey = r.Header.Get("X-Api-Key")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	tr := connect(t, srv.URL, 5)
	endpoint := common.Endpoint("db", common.EscapeSegment("/orbitdb/zdpuA/kv"), "put")
	resp, err := tr.Do(context.Background(), http.MethodPost, endpoint, transport.RequestOptions{Body: []byte(`{"key":"k"}`)})
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, "/db/%2Forbitdb%2FzdpuA%2Fkv/put", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, `{"key":"k"}`, string(gotBody))
}

func TestDoHonorsPerCallTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	tr := connect(t, srv.URL, 30)
	start := time.Now()
	_, err := tr.Do(context.Background(), http.MethodGet, "dbs", transport.RequestOptions{Timeout: 50 * time.Millisecond})
	require.Error(t, err)

	var te *common.TransportError
	assert.True(t, errors.As(err, &te))
	assert.Less(t, time.Since(start), time.Second)
}

func TestStreamOutlivesTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte("data: {}\n\n"))
	}))
	defer srv.Close()

	tr := connect(t, srv.URL, 1)
	resp, err := tr.Do(context.Background(), http.MethodGet, "events/ready", transport.RequestOptions{
		Stream:  true,
		Timeout: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "data: {}\n\n", string(body))
}

func TestDoReturnsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	tr := connect(t, baseURL, 1)
	_, err := tr.Do(context.Background(), http.MethodGet, "dbs", transport.RequestOptions{})

	var te *common.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.MethodGet, te.Method)
	assert.Equal(t, baseURL+"/dbs", te.URL)
}

func TestDoAfterClose(t *testing.T) {
	tr := connect(t, "http://127.0.0.1:1", 1)
	require.NoError(t, tr.Close())

	_, err := tr.Do(context.Background(), http.MethodGet, "dbs", transport.RequestOptions{})
	assert.ErrorIs(t, err, common.ErrClientClosed)
}

func TestConnectValidatesConfig(t *testing.T) {
	tr := NewHttpClientTransport()
	assert.Error(t, tr.Connect(common.ClientConfig{}))
	assert.Error(t, tr.Connect(common.ClientConfig{BaseURL: "ftp://host"}))
}
