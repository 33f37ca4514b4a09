package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"

	"github.com/ValentinKolb/orbitapi/rpc/common"
	"github.com/ValentinKolb/orbitapi/rpc/transport"
)

var Logger = logger.GetLogger(common.LoggerTransport)

func NewHttpClientTransport() transport.IHTTPClientTransport {
	return &httpClientTransport{}
}

type httpClientTransport struct {
	mu      sync.RWMutex
	baseURL string
	headers http.Header
	timeout time.Duration
	client  *http.Client
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IHTTPClientTransport)
// --------------------------------------------------------------------------

func (t *httpClientTransport) Connect(config common.ClientConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}

	headers := make(http.Header, len(config.Headers))
	for k, v := range config.Headers {
		headers.Set(k, v)
	}

	// Create client with default transport. No client level timeout: it
	// would also cut off event streams, timeouts are set per request.
	client := &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.client = client
	t.baseURL = config.BaseURL
	t.headers = headers
	t.timeout = config.Timeout()

	Logger.Debugf("Base url: %s", t.baseURL)
	Logger.Debugf("Headers: %v", t.headers)
	return nil
}

func (t *httpClientTransport) Do(ctx context.Context, method, endpoint string, opts transport.RequestOptions) (*http.Response, error) {
	t.mu.RLock()
	client, baseURL, headers, timeout := t.client, t.baseURL, t.headers, t.timeout
	t.mu.RUnlock()

	requestURL := joinURL(baseURL, endpoint, opts.Query)

	// Check if the transport is initialized
	if client == nil {
		return nil, &common.TransportError{Method: method, URL: requestURL, Err: common.ErrClientClosed}
	}

	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	Logger.Debugf("%s %s stream=%t timeout=%s body=%s", method, requestURL, opts.Stream, timeout, opts.Body)

	// Streams may stay open forever, the timeout only covers the wait for the headers
	reqCtx, cancel := context.WithCancel(ctx)
	timer := time.AfterFunc(timeout, cancel)

	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}
	httpRequest, err := http.NewRequestWithContext(reqCtx, method, requestURL, body)
	if err != nil {
		timer.Stop()
		cancel()
		return nil, &common.TransportError{Method: method, URL: requestURL, Err: err}
	}

	if opts.Stream {
		httpRequest.Header.Set("Accept", "text/event-stream")
		httpRequest.Header.Set("Cache-Control", "no-cache")
	} else {
		httpRequest.Header.Set("Accept", "application/json")
	}
	if opts.Body != nil {
		httpRequest.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		httpRequest.Header[k] = v
	}

	start := time.Now()
	requestCounter(method).Inc()
	httpResponse, err := client.Do(httpRequest)
	if err != nil {
		timer.Stop()
		cancel()
		errorCounter(method).Inc()
		Logger.Errorf("Exception during api call %s %s: %v", method, requestURL, err)
		return nil, &common.TransportError{Method: method, URL: requestURL, Err: err}
	}
	durationHistogram(method).Update(time.Since(start).Seconds())

	if opts.Stream {
		timer.Stop()
	}

	// The request context lives until the body is closed
	httpResponse.Body = &cancelOnClose{ReadCloser: httpResponse.Body, cancel: func() {
		timer.Stop()
		cancel()
	}}
	return httpResponse, nil
}

func (t *httpClientTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Close the client
	if t.client != nil {
		t.client.CloseIdleConnections()
	}

	// Reset the client
	t.client = nil
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// cancelOnClose releases the request context once the body is closed
type cancelOnClose struct {
	io.ReadCloser
	cancel func()
	once   sync.Once
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.once.Do(c.cancel)
	return err
}

func requestCounter(method string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`orbitapi_requests_total{method=%q}`, method))
}

func errorCounter(method string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`orbitapi_request_errors_total{method=%q}`, method))
}

func durationHistogram(method string) *metrics.Histogram {
	return metrics.GetOrCreateHistogram(fmt.Sprintf(`orbitapi_request_duration_seconds{method=%q}`, method))
}

// joinURL creates the complete URL (no normalization of duplicate slashes)
func joinURL(baseURL, endpoint string, query url.Values) string {
	u := strings.Join([]string{baseURL, endpoint}, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}
