// Package nethttp is the engine backed by net/http's Transport.
//
// Requests go straight to Transport.RoundTrip, so redirects and cookies are
// left to the caller. Header order on the wire follows net/http, which
// writes from a map; response headers are reported in name order.
package nethttp

import (
	"context"
	"net/http/httptrace"

	"github.com/kbukum/anyhttp/httpclient"
	"github.com/kbukum/anyhttp/httpclient/classify"
	"github.com/kbukum/anyhttp/httpclient/dispatch"
	"github.com/kbukum/anyhttp/httpclient/engine/nettransport"
)

// Name is the engine name used in configuration and logs.
const Name = "nethttp"

// Client is an httpclient.Client backed by net/http.
type Client struct {
	*dispatch.Dispatcher
	pool *nettransport.Pool
}

// New creates a client drawing transports from pool. A nil pool gets a
// private one.
func New(pool *nettransport.Pool, opts ...dispatch.Option) *Client {
	if pool == nil {
		pool = nettransport.NewPool(nil)
	}
	c := &Client{pool: pool}
	c.Dispatcher = dispatch.New(Name, c, opts...)
	return c
}

// Pool returns the transport pool.
func (c *Client) Pool() *nettransport.Pool { return c.pool }

// Open implements dispatch.Opener.
func (c *Client) Open(ctx context.Context, req httpclient.Request, params httpclient.CallParameters, tracker *classify.Tracker) (dispatch.Exchange, error) {
	transport, err := c.pool.Transport(params)
	if err != nil {
		return nil, err
	}

	ctx = httptrace.WithClientTrace(ctx, tracker.ClientTrace())
	httpReq, err := nettransport.NewRequest(ctx, req)
	if err != nil {
		return nil, &classify.InvalidURL{URL: req.URL, Err: err}
	}

	resp, err := transport.RoundTrip(httpReq)
	if err != nil {
		return nil, err
	}
	if err := nettransport.CheckProxyRejection(ctx, resp, httpReq, params); err != nil {
		return nil, err
	}
	return nettransport.NewExchange(resp), nil
}
