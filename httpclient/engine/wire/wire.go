// Package wire is the engine that speaks HTTP/1.1 directly over a net.Conn.
//
// It is the only engine that writes request headers exactly in caller
// order and reports response headers exactly as received. Proxy
// credentials are requested from the process-wide proxyauth authenticator
// when a proxy challenges the call; SOCKS5 proxies are reached through
// golang.org/x/net/proxy. Each call uses its own connection.
package wire

import (
	"bufio"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http/httputil"
	"net/url"

	"github.com/kbukum/anyhttp/httpclient"
	"github.com/kbukum/anyhttp/httpclient/body"
	"github.com/kbukum/anyhttp/httpclient/classify"
	"github.com/kbukum/anyhttp/httpclient/dispatch"
	"github.com/kbukum/anyhttp/httpclient/proxyauth"
)

// Name is the engine name used in configuration and logs.
const Name = "wire"

// Client is an httpclient.Client writing HTTP/1.1 itself.
type Client struct {
	*dispatch.Dispatcher
	base *tls.Config
}

// New creates a client. base, when set, is the TLS configuration used for
// calls without overrides.
func New(base *tls.Config, opts ...dispatch.Option) *Client {
	c := &Client{base: base}
	c.Dispatcher = dispatch.New(Name, c, opts...)
	return c
}

// Open implements dispatch.Opener.
func (c *Client) Open(ctx context.Context, req httpclient.Request, params httpclient.CallParameters, tracker *classify.Tracker) (dispatch.Exchange, error) {
	target, err := parseTarget(req.URL)
	if err != nil {
		return nil, err
	}
	var proxyURL *url.URL
	if params.Proxy != nil {
		if proxyURL, err = params.Proxy.URL(); err != nil {
			return nil, err
		}
	}

	r := &route{target: target, proxy: proxyURL, client: c, params: params}
	ex, err := r.roundTrip(ctx, req, tracker, "")
	if err != nil {
		return nil, err
	}
	if !r.forwarding() || ex.status != 407 {
		return ex, nil
	}

	// A plain-HTTP proxy challenged the request itself.
	creds, ok := proxyauth.Authenticate(ctx, proxyauth.Challenge{Proxy: proxyURL, Target: req.URL, Scheme: "basic"})
	if !ok {
		return ex, nil
	}
	_ = ex.Close()
	ex, err = r.roundTrip(ctx, req, tracker, creds.BasicAuth())
	if err != nil {
		return nil, err
	}
	if ex.status == 407 {
		_ = ex.Close()
		return nil, &classify.ProxyRejection{Proxy: proxyURL.Host, Status: 407, Offered: true}
	}
	return ex, nil
}

func parseTarget(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &classify.InvalidURL{URL: raw, Err: err}
	}
	if u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, &classify.InvalidURL{URL: raw, Err: errUnsupportedURL}
	}
	return u, nil
}

// route is one call's path to the origin.
type route struct {
	target *url.URL
	proxy  *url.URL
	client *Client
	params httpclient.CallParameters
}

// forwarding reports whether requests go to the proxy in absolute form.
func (r *route) forwarding() bool {
	return r.proxy != nil && r.target.Scheme == "http" &&
		(r.proxy.Scheme == "http" || r.proxy.Scheme == "https")
}

func (r *route) roundTrip(ctx context.Context, req httpclient.Request, tracker *classify.Tracker, proxyAuth string) (*exchange, error) {
	conn, err := r.connect(ctx)
	if err != nil {
		return nil, err
	}

	tracker.Enter(classify.PhaseWrite)
	bw := bufio.NewWriter(conn)
	if err := writeRequest(bw, req, r.target, r.forwarding(), proxyAuth); err != nil {
		conn.release()
		return nil, err
	}

	tracker.Enter(classify.PhaseRead)
	br := bufio.NewReader(conn)
	head, err := readHead(br)
	if err != nil {
		conn.release()
		return nil, err
	}
	return newExchange(head, br, conn.release), nil
}

type exchange struct {
	status  int
	reason  string
	headers httpclient.Headers
	length  int64
	body    io.Reader
	release func()
	closed  bool
}

var _ dispatch.Exchange = (*exchange)(nil)

func newExchange(h *head, br *bufio.Reader, release func()) *exchange {
	ex := &exchange{
		status:  h.status,
		reason:  h.reason,
		headers: h.headers,
		length:  -1,
		body:    br,
		release: release,
	}
	if body.IsChunked(h.headers) {
		ex.body = httputil.NewChunkedReader(br)
	} else {
		ex.length = body.ContentLength(h.headers)
	}
	return ex
}

func (e *exchange) StatusCode() int             { return e.status }
func (e *exchange) ReasonPhrase() string        { return e.reason }
func (e *exchange) Headers() httpclient.Headers { return e.headers }
func (e *exchange) ContentLength() int64        { return e.length }
func (e *exchange) Body() io.Reader             { return e.body }
func (e *exchange) ErrorBody() io.Reader        { return e.body }

func (e *exchange) Close() error {
	if !e.closed {
		e.closed = true
		e.release()
	}
	return nil
}

// bufferedConn replays bytes a bufio.Reader read past a proxy's reply.
type bufferedConn struct {
	net.Conn
	r io.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) { return c.r.Read(p) }
