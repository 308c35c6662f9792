package httpclient

import (
	"fmt"
	"io"
	"strings"
)

// Response is a fully materialized HTTP response.
type Response struct {
	StatusCode   int
	ReasonPhrase string
	Headers      Headers
	Body         []byte
}

// IsSuccess returns true if the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsError returns true if the status code is 4xx or 5xx.
func (r *Response) IsError() bool {
	return r.StatusCode >= 400
}

// String renders the response with the body as text.
func (r *Response) String() string {
	status := fmt.Sprintf("%d", r.StatusCode)
	if r.ReasonPhrase != "" {
		status += " " + r.ReasonPhrase
	}
	return fmt.Sprintf("HttpResponse(status=%s, headers=%s, body=%s)",
		status, r.Headers, strings.ToValidUTF8(string(r.Body), "�"))
}

// StreamResponse is a live response whose body is read on demand. Close
// releases the underlying transport and may be called more than once.
type StreamResponse interface {
	StatusCode() int
	ReasonPhrase() string
	Headers() Headers
	io.ReadCloser
}

// Listener receives a streamed response in push style: OnStatus, then
// OnHeaders, then zero or more OnBytes calls until the stream ends. The
// slice passed to OnBytes is only valid for the duration of the call.
type Listener interface {
	OnStatus(code int, reason string)
	OnHeaders(headers Headers)
	OnBytes(p []byte)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Status func(code int, reason string)
	Header func(headers Headers)
	Bytes  func(p []byte)
}

func (l ListenerFuncs) OnStatus(code int, reason string) {
	if l.Status != nil {
		l.Status(code, reason)
	}
}

func (l ListenerFuncs) OnHeaders(headers Headers) {
	if l.Header != nil {
		l.Header(headers)
	}
}

func (l ListenerFuncs) OnBytes(p []byte) {
	if l.Bytes != nil {
		l.Bytes(p)
	}
}
