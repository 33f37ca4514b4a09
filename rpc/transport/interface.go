package transport

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/ValentinKolb/orbitapi/rpc/common"
)

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// RequestOptions are the per-call settings of a request
type RequestOptions struct {
	// Query parameters appended to the url
	Query url.Values
	// Body is sent as application/json if not nil
	Body []byte
	// Stream requests a persistent response (server-sent events). The timeout
	// then only applies until the response headers arrive.
	Stream bool
	// Timeout overrides the configured timeout if > 0
	Timeout time.Duration
}

// IHTTPClientTransport is the interface for the transport adapter. It joins the
// configured base url with an already escaped endpoint, applies headers and
// timeouts and surfaces the raw response. The caller must close the body.
type IHTTPClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Do sends a request and returns the raw response. I/O failures are
	// returned as *common.TransportError.
	Do(ctx context.Context, method, endpoint string, opts RequestOptions) (*http.Response, error)
	// Close releases idle connections. Do fails after Close.
	Close() error
}
