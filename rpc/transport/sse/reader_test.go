package sse

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/gin-contrib/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReader(t *testing.T, src io.Reader) *Reader {
	r := NewReader(src)
	t.Cleanup(r.Close)
	return r
}

func readAll(t *testing.T, r *Reader) []Frame {
	t.Helper()
	var frames []Frame
	for {
		f, err := r.Next()
		if errors.Is(err, io.EOF) {
			return frames
		}
		require.NoError(t, err)
		frames = append(frames, f)
	}
}

func TestReaderDecodesEncodedEvents(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sse.Encode(&buf, sse.Event{Event: "ready", Id: "1", Data: `{"address":"/orbitdb/X"}`}))
	require.NoError(t, sse.Encode(&buf, sse.Event{Event: "write", Id: "2", Data: map[string]any{"n": 1}}))

	frames := readAll(t, newTestReader(t, &buf))
	require.Len(t, frames, 2)

	assert.Equal(t, "ready", frames[0].Event)
	assert.Equal(t, "1", frames[0].ID)
	assert.Equal(t, `{"address":"/orbitdb/X"}`, frames[0].Data)

	assert.Equal(t, "write", frames[1].Event)
	assert.Equal(t, "2", frames[1].ID)
	assert.JSONEq(t, `{"n":1}`, frames[1].Data)
}

func TestReaderFieldHandling(t *testing.T) {
	stream := strings.Join([]string{
		": keep-alive comment",
		"event: replicated",
		"data: line one",
		"data:line two",
		"retry: 3000",
		"unknown: ignored",
		"",
		"data: no event name",
		"",
		"event: only-name-no-data",
		"",
		"data: {\"a\":1}\r",
		"\r",
		"",
	}, "\n")

	frames := readAll(t, newTestReader(t, strings.NewReader(stream)))
	require.Len(t, frames, 3)

	assert.Equal(t, Frame{Event: "replicated", Data: "line one\nline two"}, frames[0])
	assert.Equal(t, DefaultEvent, frames[1].Event)
	assert.Equal(t, "no event name", frames[1].Data)
	assert.Equal(t, DefaultEvent, frames[2].Event, "a frame without data is not dispatched and resets the name")
	assert.Equal(t, `{"a":1}`, frames[2].Data)
}

func TestReaderKeepsLastID(t *testing.T) {
	stream := "id: 7\ndata: a\n\ndata: b\n\n"
	frames := readAll(t, newTestReader(t, strings.NewReader(stream)))
	require.Len(t, frames, 2)
	assert.Equal(t, "7", frames[0].ID)
	assert.Equal(t, "7", frames[1].ID)
}

func TestReaderIsIncremental(t *testing.T) {
	pr, pw := io.Pipe()
	r := newTestReader(t, pr)

	go func() {
		_, _ = pw.Write([]byte("event: open\ndata: {}\n\n"))
	}()

	f, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "open", f.Event)

	// the writer is still open, closing it ends the stream
	require.NoError(t, pw.Close())
	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderPropagatesReadErrors(t *testing.T) {
	pr, pw := io.Pipe()
	boom := errors.New("connection reset")
	go func() {
		_, _ = pw.Write([]byte("data: partial\n"))
		_ = pw.CloseWithError(boom)
	}()

	_, err := newTestReader(t, pr).Next()
	assert.ErrorIs(t, err, boom)
}

func TestReaderCloseUnblocksNext(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	r := NewReader(pr)

	done := make(chan error, 1)
	go func() {
		_, err := r.Next()
		done <- err
	}()

	r.Close()
	assert.ErrorIs(t, <-done, io.EOF)

	// the parser stops once the source is closed as well
	require.NoError(t, pr.Close())
	_, err := r.Next()
	assert.ErrorIs(t, err, io.EOF)
}
