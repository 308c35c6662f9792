// Package stream implements the live response handle shared by all engines.
package stream

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/kbukum/anyhttp/httpclient"
)

// BufferSize is the chunk size used when pushing a body to a Listener.
const BufferSize = 4096

// Config describes one live exchange.
type Config struct {
	URL          string
	StatusCode   int
	ReasonPhrase string
	Headers      httpclient.Headers
	// Body yields the response body according to its acquisition plan.
	Body io.Reader
	// Closer releases the transport.
	Closer io.Closer
	// Cancel ends the call context. May be nil.
	Cancel context.CancelFunc
	// Classify converts body read failures. Nil wraps them as read errors.
	Classify func(error) *httpclient.Error
	// OnClose runs once after the transport is released. May be nil.
	OnClose func()
}

// Response is an httpclient.StreamResponse over a single exchange.
type Response struct {
	cfg       Config
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ httpclient.StreamResponse = (*Response)(nil)

// New wraps an exchange whose status line and headers have been read.
func New(cfg Config) *Response {
	return &Response{cfg: cfg}
}

func (r *Response) StatusCode() int             { return r.cfg.StatusCode }
func (r *Response) ReasonPhrase() string        { return r.cfg.ReasonPhrase }
func (r *Response) Headers() httpclient.Headers { return r.cfg.Headers }

// Read reads body bytes. After Close it fails with a read error.
func (r *Response) Read(p []byte) (int, error) {
	if r.closed.Load() {
		return 0, httpclient.NewReadError(r.cfg.URL, "Stream from "+r.cfg.URL+" is closed", nil)
	}
	n, err := r.cfg.Body.Read(p)
	if err == nil || err == io.EOF {
		return n, err
	}
	if r.closed.Load() {
		return n, httpclient.NewReadError(r.cfg.URL, "Stream from "+r.cfg.URL+" is closed", err)
	}
	return n, r.classify(err)
}

func (r *Response) classify(err error) error {
	if r.cfg.Classify != nil {
		return r.cfg.Classify(err)
	}
	return httpclient.NewReadError(r.cfg.URL, "Cannot read from "+r.cfg.URL, err)
}

// Close releases the transport. Only the first call has any effect.
func (r *Response) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		if r.cfg.Closer != nil {
			r.closeErr = r.cfg.Closer.Close()
		}
		if r.cfg.Cancel != nil {
			r.cfg.Cancel()
		}
		if r.cfg.OnClose != nil {
			r.cfg.OnClose()
		}
	})
	return r.closeErr
}

// Closed reports whether Close has been called.
func (r *Response) Closed() bool { return r.closed.Load() }

// Drain pushes resp to l: status, headers, then the body in chunks of at
// most BufferSize bytes. It does not close resp.
func Drain(resp httpclient.StreamResponse, l httpclient.Listener) error {
	l.OnStatus(resp.StatusCode(), resp.ReasonPhrase())
	l.OnHeaders(resp.Headers())

	buf := make([]byte, BufferSize)
	for {
		n, err := resp.Read(buf)
		if n > 0 {
			l.OnBytes(buf[:n])
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
