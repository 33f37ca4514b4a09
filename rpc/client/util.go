package client

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/lni/dragonboat/v4/logger"

	"github.com/ValentinKolb/orbitapi/rpc/common"
	"github.com/ValentinKolb/orbitapi/rpc/serializer"
	"github.com/ValentinKolb/orbitapi/rpc/transport"
)

var (
	Logger       = logger.GetLogger(common.LoggerClient)
	eventsLogger = logger.GetLogger(common.LoggerEvents)
)

// rpcClientAdapter stores everything needed to talk to the gateway.
// It is embedded by the Client, handles reach it through their client.
type rpcClientAdapter struct {
	config     common.ClientConfig
	transport  transport.IHTTPClientTransport
	serializer serializer.IRPCSerializer
}

type timeoutKey struct{}

// WithTimeout returns a copy of ctx whose requests use d instead of the
// configured timeout. For event streams d bounds the wait for the response
// headers only.
//
//	info, err := db.Info(client.WithTimeout(ctx, 2*time.Second))
func WithTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, timeoutKey{}, d)
}

func timeoutFrom(ctx context.Context) time.Duration {
	d, _ := ctx.Value(timeoutKey{}).(time.Duration)
	return d
}

// sendRequest serializes the body of req and hands it to the transport.
// The caller owns the returned body.
func (a *rpcClientAdapter) sendRequest(ctx context.Context, req *common.Request) (*http.Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = timeoutFrom(ctx)
	}

	var body []byte
	if req.Body != nil {
		var err error
		if body, err = a.serializer.Serialize(req.Body); err != nil {
			return nil, err
		}
	}
	return a.transport.Do(ctx, req.Method, req.Endpoint, transport.RequestOptions{
		Query:   req.Query,
		Body:    body,
		Stream:  req.Stream,
		Timeout: timeout,
	})
}

// invokeRequest is the helper used for all request/response calls.
// It sends req and decodes the response into out (nil discards the body,
// *any receives the generic JSON value).
func (a *rpcClientAdapter) invokeRequest(ctx context.Context, req *common.Request, out any) error {
	resp, err := a.sendRequest(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, a.serializer, out)
}

// decodeResponse is the response decoder. The body is parsed as JSON first,
// the status is checked strictly afterwards, so a server error always carries
// the decoded body.
func decodeResponse(resp *http.Response, s serializer.IRPCSerializer, out any) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		method, url := requestOf(resp)
		Logger.Errorf("Exception while reading response of %s %s: %v", method, url, err)
		return &common.TransportError{Method: method, URL: url, Err: err}
	}

	// Parse the body
	var parsed any
	if err := s.Deserialize(raw, &parsed); err != nil {
		Logger.Warningf("Json decode error (status %d): %v", resp.StatusCode, err)
		Logger.Debugf("%s", raw)
		return &common.DecodeError{StatusCode: resp.StatusCode, Body: raw, Err: err}
	}

	// Check the status
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		Logger.Errorf("Server Error: %s", resp.Status)
		Logger.Errorf("%s", raw)
		return &common.ServerError{StatusCode: resp.StatusCode, Status: resp.Status, Body: parsed}
	}

	switch target := out.(type) {
	case nil:
		return nil
	case *any:
		*target = parsed
		return nil
	}

	if err := s.Deserialize(raw, out); err != nil {
		Logger.Warningf("Json decode error (unexpected shape, status %d): %v", resp.StatusCode, err)
		Logger.Debugf("%s", raw)
		return &common.DecodeError{StatusCode: resp.StatusCode, Body: raw, Err: err}
	}
	return nil
}

// statusError builds the error for a streamed request that was refused.
// The body is decoded if possible, otherwise attached as string.
func statusError(resp *http.Response, s serializer.IRPCSerializer) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var body any
	if err := s.Deserialize(raw, &body); err != nil {
		body = string(raw)
	}
	Logger.Errorf("Server Error: %s", resp.Status)
	return &common.ServerError{StatusCode: resp.StatusCode, Status: resp.Status, Body: body}
}

func requestOf(resp *http.Response) (method, url string) {
	if resp.Request == nil {
		return "", ""
	}
	return resp.Request.Method, resp.Request.URL.String()
}
