package gatewaytest

import (
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-contrib/sse"
)

// subscriber is one open event stream
type subscriber struct {
	address string // "" for global events
	names   map[string]struct{}
	events  chan sse.Event
	done    chan struct{}
	once    sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

func (s *subscriber) wants(address, name string) bool {
	if s.address != address {
		return false
	}
	_, ok := s.names[name]
	return ok
}

// serveEvents streams the events in namesCSV until the client goes away
// or the stream is closed by CloseStreams.
func (g *Gateway) serveEvents(w http.ResponseWriter, r *http.Request, address, namesCSV string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub := &subscriber{
		address: address,
		names:   make(map[string]struct{}),
		events:  make(chan sse.Event, 64),
		done:    make(chan struct{}),
	}
	for _, name := range strings.Split(namesCSV, ",") {
		if name = strings.TrimSpace(name); name != "" {
			sub.names[name] = struct{}{}
		}
	}

	g.subMu.Lock()
	g.subscribers[sub] = struct{}{}
	g.subMu.Unlock()
	defer func() {
		g.subMu.Lock()
		delete(g.subscribers, sub)
		g.subMu.Unlock()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	Logger.Debugf("Stream opened (address=%q, names=%s)", address, namesCSV)
	for {
		select {
		case <-r.Context().Done():
			return
		case <-sub.done:
			return
		case event := <-sub.events:
			if err := sse.Encode(w, event); err != nil {
				Logger.Warningf("Failed to write event: %v", err)
				return
			}
			flusher.Flush()
		}
	}
}

// Emit sends an event to every stream of address ("" for global events)
// that subscribed to name. A string data is sent as is (it does not have to
// be valid JSON), any other value is encoded as JSON. Emit returns the
// number of streams the event was delivered to.
func (g *Gateway) Emit(address, name string, data any) int {
	if _, raw := data.(string); !raw {
		b, err := json.Marshal(data)
		if err != nil {
			return 0
		}
		data = string(b)
	}

	g.subMu.Lock()
	defer g.subMu.Unlock()
	delivered := 0
	for sub := range g.subscribers {
		if !sub.wants(address, name) {
			continue
		}
		g.nextEventID++
		event := sse.Event{Event: name, Id: strconv.FormatUint(g.nextEventID, 10), Data: data}
		select {
		case sub.events <- event:
			delivered++
		case <-sub.done:
		}
	}
	return delivered
}

// Streams returns the number of open event streams
func (g *Gateway) Streams() int {
	g.subMu.Lock()
	defer g.subMu.Unlock()
	return len(g.subscribers)
}

// CloseStreams ends all open event streams from the server side
func (g *Gateway) CloseStreams() {
	g.subMu.Lock()
	defer g.subMu.Unlock()
	for sub := range g.subscribers {
		sub.close()
	}
}
