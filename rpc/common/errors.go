package common

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Sentinel errors
// --------------------------------------------------------------------------

var (
	// ErrSessionAlreadyActive is returned by CreateSession if a session is registered.
	ErrSessionAlreadyActive = errors.New("session already active")
	// ErrNoActiveSession is returned by DestroySession without a registered session.
	ErrNoActiveSession = errors.New("no active session")
	// ErrClientClosed is returned by every call after Close.
	ErrClientClosed = errors.New("client closed")
	// ErrUnloaded is returned by operations on an unloaded database handle.
	ErrUnloaded = errors.New("database unloaded")
)

// --------------------------------------------------------------------------
// Error types
// --------------------------------------------------------------------------

// TransportError is an I/O failure while talking to the gateway.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when a response body is not valid JSON.
type DecodeError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("json decode error (status %d): %v", e.StatusCode, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ServerError is a non-2xx response. Body holds the decoded JSON error body.
type ServerError struct {
	StatusCode int
	Status     string
	Body       any
}

func (e *ServerError) Error() string {
	if m, ok := e.Body.(map[string]any); ok {
		if msg, ok := m["message"].(string); ok {
			return fmt.Sprintf("server error: %s: %s", e.Status, msg)
		}
	}
	return fmt.Sprintf("server error: %s", e.Status)
}

// StatusCodeOf returns the HTTP status embedded in err, 0 if there is none.
func StatusCodeOf(err error) int {
	var se *ServerError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	var de *DecodeError
	if errors.As(err, &de) {
		return de.StatusCode
	}
	return 0
}
