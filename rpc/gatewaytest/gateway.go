package gatewaytest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/lni/dragonboat/v4/logger"

	"github.com/ValentinKolb/orbitapi/lib/store"
)

var Logger = logger.GetLogger("gateway")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Gateway is an in-memory gateway. It implements http.Handler.
type Gateway struct {
	mu        sync.Mutex
	dbs       map[string]*database // by address
	names     map[string]string    // name -> address
	sessions  map[string]struct{}
	searches  []any
	overrides map[string]override
	holds     []*Hold
	pending   map[string]int
	requests  []string
	nextHash  uint64
	nextDB    uint64

	subMu       sync.Mutex
	subscribers map[*subscriber]struct{}
	nextEventID uint64
}

type override struct {
	status int
	body   string
}

// New creates an empty gateway
func New() *Gateway {
	return &Gateway{
		dbs:         make(map[string]*database),
		names:       make(map[string]string),
		sessions:    make(map[string]struct{}),
		overrides:   make(map[string]override),
		pending:     make(map[string]int),
		subscribers: make(map[*subscriber]struct{}),
	}
}

// NewServer starts a gateway on a local httptest server that is closed
// when the test ends.
func NewServer(t testing.TB) (*Gateway, *httptest.Server) {
	t.Helper()
	g := New()
	srv := httptest.NewServer(g)
	t.Cleanup(func() {
		g.CloseStreams()
		g.releaseHolds()
		srv.Close()
	})
	return g, srv
}

// --------------------------------------------------------------------------
// Test controls
// --------------------------------------------------------------------------

// Respond makes every request for method and the escaped path (e.g.
// "/db/%2Forbitdb%2Fx/put") answer with status and the raw body.
func (g *Gateway) Respond(method, escapedPath string, status int, body string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.overrides[method+" "+escapedPath] = override{status: status, body: body}
}

// Hold blocks every request for method whose escaped path starts with
// prefix until Release is called or the client gives up on the request.
func (g *Gateway) Hold(method, prefix string) *Hold {
	h := &Hold{
		method:  method,
		prefix:  prefix,
		arrived: make(chan struct{}),
		release: make(chan struct{}),
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.holds = append(g.holds, h)
	return h
}

// Hold is a route blocked by Gateway.Hold
type Hold struct {
	method  string
	prefix  string
	arrived chan struct{}
	release chan struct{}

	arrivedOnce sync.Once
	releaseOnce sync.Once
}

// Arrived is closed once the first matching request is blocked
func (h *Hold) Arrived() <-chan struct{} {
	return h.arrived
}

// Release lets all blocked and future matching requests through
func (h *Hold) Release() {
	h.releaseOnce.Do(func() { close(h.release) })
}

func (h *Hold) wait(r *http.Request) {
	h.arrivedOnce.Do(func() { close(h.arrived) })
	select {
	case <-h.release:
	case <-r.Context().Done():
	}
}

func (g *Gateway) releaseHolds() {
	g.mu.Lock()
	holds := append([]*Hold(nil), g.holds...)
	g.mu.Unlock()
	for _, h := range holds {
		h.Release()
	}
}

// FailUnload makes the unload of the database name answer with status 500
func (g *Gateway) FailUnload(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if address, ok := g.names[name]; ok {
		g.dbs[address].failUnload = true
	}
}

// SetPending makes the database name report ready=false until the polls-th
// info call. It applies to the open database or, if name is not open, to the
// next open.
func (g *Gateway) SetPending(name string, polls int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if address, ok := g.names[name]; ok && g.dbs[address].open {
		g.dbs[address].setPending(polls)
		return
	}
	g.pending[name] = polls
}

// Address returns the address of the database name, "" if it was never opened
func (g *Gateway) Address(name string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.names[name]
}

// IsOpen reports whether the database name is currently open
func (g *Gateway) IsOpen(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	address, ok := g.names[name]
	return ok && g.dbs[address].open
}

// Sessions returns the registered session ids
func (g *Gateway) Sessions() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, 0, len(g.sessions))
	for id := range g.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Requests returns all received requests as "METHOD /escaped/path"
func (g *Gateway) Requests() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.requests...)
}

// Count returns how often method was called on the escaped path
func (g *Gateway) Count(method, escapedPath string) int {
	n := 0
	for _, r := range g.Requests() {
		if r == method+" "+escapedPath {
			n++
		}
	}
	return n
}

// --------------------------------------------------------------------------
// Routing
// --------------------------------------------------------------------------

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	escaped := r.URL.EscapedPath()
	Logger.Debugf("%s %s", r.Method, escaped)

	g.mu.Lock()
	g.requests = append(g.requests, r.Method+" "+escaped)
	o, overridden := g.overrides[r.Method+" "+escaped]
	var holds []*Hold
	for _, h := range g.holds {
		if h.method == r.Method && strings.HasPrefix(escaped, h.prefix) {
			holds = append(holds, h)
		}
	}
	g.mu.Unlock()

	for _, h := range holds {
		h.wait(r)
	}
	if r.Context().Err() != nil {
		return
	}

	if overridden {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(o.status)
		_, _ = io.WriteString(w, o.body)
		return
	}

	segments, err := splitPath(escaped)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch {
	case len(segments) == 1 && segments[0] == "dbs" && r.Method == http.MethodGet:
		g.handleListDBs(w)
	case len(segments) == 2 && segments[0] == "peers" && segments[1] == "searches" && r.Method == http.MethodGet:
		g.mu.Lock()
		searches := append([]any{}, g.searches...)
		g.mu.Unlock()
		writeJSON(w, http.StatusOK, searches)
	case len(segments) == 2 && segments[0] == "events" && r.Method == http.MethodGet:
		g.serveEvents(w, r, "", segments[1])
	case len(segments) == 2 && segments[0] == "sessions":
		g.handleSession(w, r.Method, segments[1])
	case len(segments) == 2 && segments[0] == "db" && r.Method == http.MethodPost:
		g.handleOpen(w, r, segments[1])
	case len(segments) >= 2 && segments[0] == "db":
		g.handleDB(w, r, segments[1], segments[2:])
	default:
		writeError(w, http.StatusNotFound, "route not found")
	}
}

// splitPath splits the escaped path into unescaped segments.
// "%2F" stays inside its segment.
func splitPath(escaped string) ([]string, error) {
	parts := strings.Split(strings.Trim(escaped, "/"), "/")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		s, err := url.PathUnescape(p)
		if err != nil {
			return nil, fmt.Errorf("invalid path segment %q: %w", p, err)
		}
		segments = append(segments, s)
	}
	return segments, nil
}

// --------------------------------------------------------------------------
// Client level handlers
// --------------------------------------------------------------------------

func (g *Gateway) handleListDBs(w http.ResponseWriter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	list := make([]any, 0, len(g.dbs))
	for _, db := range g.sortedDBs() {
		if db.open {
			list = append(list, db.descriptor())
		}
	}
	writeJSON(w, http.StatusOK, list)
}

func (g *Gateway) handleSession(w http.ResponseWriter, method, id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch method {
	case http.MethodPost:
		if _, ok := g.sessions[id]; ok {
			writeError(w, http.StatusConflict, "session already exists")
			return
		}
		g.sessions[id] = struct{}{}
		writeJSON(w, http.StatusCreated, map[string]any{"id": id})
	case http.MethodDelete:
		if _, ok := g.sessions[id]; !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		delete(g.sessions, id)
		writeJSON(w, http.StatusOK, map[string]any{"id": id})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleOpen opens the database name (a name or an address).
func (g *Gateway) handleOpen(w http.ResponseWriter, r *http.Request, name string) {
	var opts store.OpenOptions
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
			writeError(w, http.StatusBadRequest, "invalid open options: "+err.Error())
			return
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	address, ok := g.names[name]
	if !ok {
		if _, isAddress := g.dbs[name]; isAddress {
			address, ok = name, true
		}
	}

	if ok {
		db := g.dbs[address]
		if opts.Overwrite && opts.Create {
			db.reset()
		}
		db.open = true
		g.applyPending(db)
		writeJSON(w, http.StatusOK, db.descriptor())
		return
	}

	if !opts.Create {
		writeError(w, http.StatusNotFound, fmt.Sprintf("database %s does not exist", name))
		return
	}
	dbType, err := store.ParseDBType(string(opts.Type))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	g.nextDB++
	db := newDatabase(name, fmt.Sprintf("/orbitdb/zdpu%06x/%s", g.nextDB, name), dbType, opts.IndexBy)
	g.dbs[db.address] = db
	g.names[name] = db.address
	g.applyPending(db)
	writeJSON(w, http.StatusOK, db.descriptor())
}

func (g *Gateway) applyPending(db *database) {
	if polls, ok := g.pending[db.name]; ok {
		delete(g.pending, db.name)
		db.setPending(polls)
	}
}

// --------------------------------------------------------------------------
// Response helpers
// --------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError writes an error body in the gateway's format
func writeError(w http.ResponseWriter, status int, message string) {
	body, _ := json.Marshal(map[string]any{
		"statusCode": status,
		"error":      http.StatusText(status),
		"message":    message,
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
