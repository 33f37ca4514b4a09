// Package sse reads server-sent events incrementally from a stream.
//
// Parsing is done by github.com/tmaxmax/go-sse. The Reader turns its
// push-style sequence into the pull-style Next used by subscriptions and
// fills in what the gateway relies on: frames without an event name get
// DefaultEvent, frames without data are not dispatched, and the last event
// id seen is carried forward. The parser runs one frame ahead of the
// consumer, the rest of the stream stays in the connection.
package sse

import (
	"io"
	"sync"

	gosse "github.com/tmaxmax/go-sse"
)

const (
	// DefaultEvent is the event name of frames without an "event" field
	DefaultEvent = "message"

	// MaxEventSize bounds a single frame. Write events can carry whole entries.
	MaxEventSize = 16 << 20
)

// Frame is a single dispatched server-sent event
type Frame struct {
	Event string
	ID    string
	Data  string
}

type result struct {
	frame Frame
	err   error
}

// Reader splits a byte stream into frames
type Reader struct {
	results chan result
	done    chan struct{}
	once    sync.Once
}

// NewReader creates a reader on top of r and starts parsing. Close must be
// called (after closing r if it blocks) to stop the parser.
func NewReader(r io.Reader) *Reader {
	reader := &Reader{
		results: make(chan result),
		done:    make(chan struct{}),
	}
	go reader.run(r)
	return reader
}

func (r *Reader) run(src io.Reader) {
	defer close(r.results)

	for event, err := range gosse.Read(src, &gosse.ReadConfig{MaxEventSize: MaxEventSize}) {
		var res result
		if err != nil {
			res.err = err
		} else {
			if event.Data == "" {
				continue
			}
			res.frame = Frame{Event: event.Type, ID: event.LastEventID, Data: event.Data}
			if res.frame.Event == "" {
				res.frame.Event = DefaultEvent
			}
		}

		select {
		case r.results <- res:
		case <-r.done:
			return
		}
	}
}

// Next blocks until the next frame is complete. It returns io.EOF once the
// stream ends or the reader was closed, and any other read error as is.
func (r *Reader) Next() (Frame, error) {
	select {
	case res, ok := <-r.results:
		if !ok {
			return Frame{}, io.EOF
		}
		return res.frame, res.err
	case <-r.done:
		return Frame{}, io.EOF
	}
}

// Close stops the reader. A blocked Next returns io.EOF.
func (r *Reader) Close() {
	r.once.Do(func() { close(r.done) })
}
