package common

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/orbitapi/lib/store"
)

// --------------------------------------------------------------------------
// Request Structure
// --------------------------------------------------------------------------

// Request describes a single call to the gateway.
type Request struct {
	// HTTP method
	Method string
	// Endpoint relative to the base url, every segment already escaped
	Endpoint string
	// Query parameters (may be nil)
	Query url.Values
	// Body is serialized as JSON, nil means no body
	Body any
	// Stream keeps the response open (server-sent events)
	Stream bool
	// Timeout overrides the configured timeout for this call if > 0
	Timeout time.Duration
}

// KeyValueEntry is the body of a keyvalue put
type KeyValueEntry struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// IncBody is the body of a counter increment
type IncBody struct {
	Val int64 `json:"val"`
}

// --------------------------------------------------------------------------
// Path escaping
// --------------------------------------------------------------------------

// EscapeSegment percent-encodes s so it can be used as a single path
// segment. Only unreserved characters (ALPHA, DIGIT, "-", ".", "_", "~")
// are kept, "/" is encoded as well.
func EscapeSegment(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(upperhex[c>>4])
		sb.WriteByte(upperhex[c&15])
	}
	return sb.String()
}

const upperhex = "0123456789ABCDEF"

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}

// Endpoint joins already escaped segments with "/"
func Endpoint(segments ...string) string {
	return strings.Join(segments, "/")
}

// dbEndpoint builds db/{address}[/op...]; the address is one escaped segment
func dbEndpoint(address string, ops ...string) string {
	return Endpoint(append([]string{"db", EscapeSegment(address)}, ops...)...)
}

// --------------------------------------------------------------------------
// Request Factory Functions (client level)
// --------------------------------------------------------------------------

// NewListDBsRequest creates a request listing all open databases
func NewListDBsRequest() *Request {
	return &Request{Method: http.MethodGet, Endpoint: "dbs"}
}

// NewOpenRequest creates a request opening (or creating) the database name
func NewOpenRequest(name string, opts store.OpenOptions) *Request {
	return &Request{
		Method:   http.MethodPost,
		Endpoint: Endpoint("db", EscapeSegment(name)),
		Body:     opts,
	}
}

// NewSearchesRequest creates a request listing running peer searches
func NewSearchesRequest() *Request {
	return &Request{Method: http.MethodGet, Endpoint: Endpoint("peers", "searches")}
}

// NewEventsRequest creates a streamed request for global events
func NewEventsRequest(names []string) *Request {
	return &Request{
		Method:   http.MethodGet,
		Endpoint: Endpoint("events", EscapeSegment(strings.Join(names, ","))),
		Stream:   true,
	}
}

// NewCreateSessionRequest registers a session
func NewCreateSessionRequest(id string) *Request {
	return &Request{Method: http.MethodPost, Endpoint: Endpoint("sessions", EscapeSegment(id))}
}

// NewDestroySessionRequest removes a session
func NewDestroySessionRequest(id string) *Request {
	return &Request{Method: http.MethodDelete, Endpoint: Endpoint("sessions", EscapeSegment(id))}
}

// --------------------------------------------------------------------------
// Request Factory Functions (database level)
// --------------------------------------------------------------------------

// NewInfoRequest creates a request for the database descriptor
func NewInfoRequest(address string) *Request {
	return &Request{Method: http.MethodGet, Endpoint: dbEndpoint(address)}
}

// NewUnloadRequest closes the database on the server
func NewUnloadRequest(address string) *Request {
	return &Request{Method: http.MethodDelete, Endpoint: dbEndpoint(address)}
}

// NewAllRequest lists all entries of a database
func NewAllRequest(address string) *Request {
	return &Request{Method: http.MethodGet, Endpoint: dbEndpoint(address, "all")}
}

// NewIndexRequest returns the raw index of a database
func NewIndexRequest(address string) *Request {
	return &Request{Method: http.MethodGet, Endpoint: dbEndpoint(address, "index")}
}

// NewGetRequest reads an item (key, hash or document key)
func NewGetRequest(address, item string) *Request {
	return &Request{Method: http.MethodGet, Endpoint: dbEndpoint(address, EscapeSegment(item))}
}

// NewRemoveRequest deletes an item
func NewRemoveRequest(address, item string) *Request {
	return &Request{Method: http.MethodDelete, Endpoint: dbEndpoint(address, EscapeSegment(item))}
}

// NewPutRequest stores a keyvalue entry or a document
func NewPutRequest(address string, body any) *Request {
	return &Request{Method: http.MethodPost, Endpoint: dbEndpoint(address, "put"), Body: body}
}

// NewAddRequest appends a feed or eventlog entry
func NewAddRequest(address string, entry any) *Request {
	return &Request{Method: http.MethodPost, Endpoint: dbEndpoint(address, "add"), Body: entry}
}

// NewPutAllRequest stores several documents
func NewPutAllRequest(address string, docs []any) *Request {
	return &Request{Method: http.MethodPost, Endpoint: dbEndpoint(address, "putAll"), Body: docs}
}

// NewQueryRequest queries a docstore
func NewQueryRequest(address string, q store.Query) *Request {
	return &Request{Method: http.MethodPost, Endpoint: dbEndpoint(address, "query"), Body: q}
}

// NewIncRequest increments a counter
func NewIncRequest(address string, n int64) *Request {
	return &Request{Method: http.MethodPost, Endpoint: dbEndpoint(address, "inc"), Body: IncBody{Val: n}}
}

// NewValueRequest reads a counter
func NewValueRequest(address string) *Request {
	return &Request{Method: http.MethodGet, Endpoint: dbEndpoint(address, "value")}
}

// NewIteratorRequest lists feed or eventlog entries
func NewIteratorRequest(address string, opts store.IteratorOptions) *Request {
	q := url.Values{}
	if opts.Limit != nil {
		q.Set("limit", strconv.Itoa(*opts.Limit))
	}
	for k, v := range map[string]string{"gt": opts.Gt, "gte": opts.Gte, "lt": opts.Lt, "lte": opts.Lte} {
		if v != "" {
			q.Set(k, v)
		}
	}
	if opts.Reverse {
		q.Set("reverse", "true")
	}
	return &Request{Method: http.MethodGet, Endpoint: dbEndpoint(address, "iterator"), Query: q}
}

// NewPeersRequest lists the peers of a database
func NewPeersRequest(address string) *Request {
	return &Request{Method: http.MethodGet, Endpoint: dbEndpoint(address, "peers")}
}

// NewFindPeersRequest starts a peer search for a database
func NewFindPeersRequest(address string, options map[string]any) *Request {
	if options == nil {
		options = map[string]any{}
	}
	return &Request{Method: http.MethodPost, Endpoint: dbEndpoint(address, "peers", "searches"), Body: options}
}

// NewDBEventsRequest creates a streamed request for events of one database
func NewDBEventsRequest(address string, names []string) *Request {
	return &Request{
		Method:   http.MethodGet,
		Endpoint: dbEndpoint(address, "events", EscapeSegment(strings.Join(names, ","))),
		Stream:   true,
	}
}
