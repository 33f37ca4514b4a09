package client

import (
	"context"
	"errors"
	"io"
	"iter"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/orbitapi/lib/store"
	"github.com/ValentinKolb/orbitapi/rpc/common"
	"github.com/ValentinKolb/orbitapi/rpc/transport/sse"
)

// Subscription is a live event stream. It is registered with its client
// from creation until it is exhausted or closed. Next must not be called
// from several goroutines at once, Close may be called from anywhere.
type Subscription struct {
	id     uint64
	client *Client
	owner  *baseDB // nil for client level subscriptions
	names  []string
	method string
	url    string

	body   io.ReadCloser
	reader *sse.Reader

	complete  atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ store.IEventStream = (*Subscription)(nil)

// subscribe opens a streamed request and registers the subscription. A non-2xx
// status fails before any event is read.
func (c *Client) subscribe(ctx context.Context, req *common.Request, owner *baseDB, names []string) (*Subscription, error) {
	if c.closing.Load() {
		return nil, common.ErrClientClosed
	}

	resp, err := c.sendRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, statusError(resp, c.serializer)
	}

	method, url := requestOf(resp)
	sub := &Subscription{
		client: c,
		owner:  owner,
		names:  names,
		method: method,
		url:    url,
		body:   resp.Body,
		reader: sse.NewReader(resp.Body),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing.Load() {
		_ = resp.Body.Close()
		sub.reader.Close()
		return nil, common.ErrClientClosed
	}
	sub.id = c.nextID.Add(1)
	c.subs.Store(sub.id, sub)

	eventsLogger.Debugf("Subscribed to %v (%s)", names, url)
	return sub, nil
}

// Names returns the event names the subscription was created for
func (s *Subscription) Names() []string {
	return append([]string(nil), s.names...)
}

// Complete reports whether the subscription yields no further events
func (s *Subscription) Complete() bool {
	return s.complete.Load()
}

// Next blocks until the next event arrives. The payload is parsed as JSON
// here, a malformed payload returns the event together with a
// *common.DecodeError and the stream stays usable. After the stream ended
// or was closed, Next returns store.ErrStreamDone.
func (s *Subscription) Next() (store.Event, error) {
	if s.complete.Load() {
		_ = s.release()
		return store.Event{}, store.ErrStreamDone
	}

	frame, err := s.reader.Next()
	if err != nil {
		closedByUs := s.complete.Load()
		s.complete.Store(true)
		_ = s.release()
		if closedByUs || errors.Is(err, io.EOF) {
			return store.Event{}, store.ErrStreamDone
		}
		eventsLogger.Errorf("Event stream %s failed: %v", s.url, err)
		return store.Event{}, &common.TransportError{Method: s.method, URL: s.url, Err: err}
	}

	event := store.Event{Name: frame.Event, ID: frame.ID, Data: frame.Data}
	if err := s.client.serializer.Deserialize([]byte(frame.Data), &event.Value); err != nil {
		eventsLogger.Warningf("Json decode error in event %q: %v", frame.Event, err)
		eventsLogger.Debugf("%s", frame.Data)
		return event, &common.DecodeError{StatusCode: http.StatusOK, Body: []byte(frame.Data), Err: err}
	}
	return event, nil
}

// All ranges over the remaining events (see store.IEventStream)
func (s *Subscription) All() iter.Seq2[store.Event, error] {
	return func(yield func(store.Event, error) bool) {
		defer s.Close()
		for {
			event, err := s.Next()
			if errors.Is(err, store.ErrStreamDone) {
				return
			}
			if !yield(event, err) {
				return
			}
			var te *common.TransportError
			if errors.As(err, &te) {
				return
			}
		}
	}
}

// Close marks the subscription complete and releases the connection.
// Calling Close more than once is safe.
func (s *Subscription) Close() error {
	s.complete.Store(true)
	return s.release()
}

// release closes the body and deregisters exactly once
func (s *Subscription) release() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
		s.reader.Close()
		s.client.subs.Delete(s.id)
		eventsLogger.Debugf("Released event stream %s", s.url)
	})
	return s.closeErr
}
