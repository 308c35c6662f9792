package httpclient

import (
	"github.com/kbukum/anyhttp/validation"
)

// Method is an HTTP request method.
type Method string

const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodPatch   Method = "PATCH"
	MethodHead    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
)

// Methods lists the supported methods.
var Methods = []Method{MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch, MethodHead, MethodOptions}

// String returns the method token. The zero value renders as GET.
func (m Method) String() string {
	if m == "" {
		return string(MethodGet)
	}
	return string(m)
}

// Valid reports whether m is one of Methods or empty.
func (m Method) Valid() bool {
	if m == "" {
		return true
	}
	for _, known := range Methods {
		if m == known {
			return true
		}
	}
	return false
}

// Request describes an outbound call. An empty Method means GET and an empty
// Body means no body is sent.
type Request struct {
	URL     string
	Method  Method
	Headers Headers
	Body    []byte
}

// RequestOption customizes a Request built by NewRequest.
type RequestOption func(*Request)

// WithHeader appends a header pair.
func WithHeader(name, value string) RequestOption {
	return func(r *Request) { r.Headers = r.Headers.Add(name, value) }
}

// WithHeaders replaces the header collection.
func WithHeaders(h Headers) RequestOption {
	return func(r *Request) { r.Headers = h }
}

// WithBody sets a copy of body as the request payload.
func WithBody(body []byte) RequestOption {
	return func(r *Request) {
		if len(body) == 0 {
			r.Body = nil
			return
		}
		r.Body = append([]byte(nil), body...)
	}
}

// NewRequest builds a request.
func NewRequest(method Method, url string, opts ...RequestOption) Request {
	r := Request{URL: url, Method: method}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// HasBody reports whether a body will be written.
func (r Request) HasBody() bool { return len(r.Body) > 0 }

// Validate checks the URL and method.
func (r Request) Validate() error {
	v := validation.New().HTTPURL("url", r.URL)
	v.Custom(r.Method.Valid(), "method", "is not a supported HTTP method")
	return v.Err()
}
