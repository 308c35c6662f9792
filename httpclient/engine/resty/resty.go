// Package resty is the engine backed by github.com/go-resty/resty/v2.
//
// One resty client is kept per pooled transport. Responses are not parsed
// by resty; the raw body goes through the shared body acquisition rules.
// resty adds a User-Agent and, for bodies without one, a detected
// Content-Type.
package resty

import (
	"context"
	"net/http"
	"net/http/httptrace"
	"sync"

	"github.com/go-resty/resty/v2"

	"github.com/kbukum/anyhttp/httpclient"
	"github.com/kbukum/anyhttp/httpclient/classify"
	"github.com/kbukum/anyhttp/httpclient/dispatch"
	"github.com/kbukum/anyhttp/httpclient/engine/nettransport"
	"github.com/kbukum/anyhttp/logger"
)

// Name is the engine name used in configuration and logs.
const Name = "resty"

// Client is an httpclient.Client backed by resty.
type Client struct {
	*dispatch.Dispatcher
	pool *nettransport.Pool
	log  *logger.Logger

	mu      sync.Mutex
	clients map[*http.Transport]*resty.Client
}

// New creates a client drawing transports from pool. A nil pool gets a
// private one. log receives resty's own diagnostics and may be nil.
func New(pool *nettransport.Pool, log *logger.Logger, opts ...dispatch.Option) *Client {
	if pool == nil {
		pool = nettransport.NewPool(nil)
	}
	if log == nil {
		log = logger.Nop()
	}
	c := &Client{
		pool:    pool,
		log:     log.WithComponent("resty"),
		clients: make(map[*http.Transport]*resty.Client),
	}
	c.Dispatcher = dispatch.New(Name, c, append([]dispatch.Option{dispatch.WithLogger(log)}, opts...)...)
	return c
}

// Open implements dispatch.Opener.
func (c *Client) Open(ctx context.Context, req httpclient.Request, params httpclient.CallParameters, tracker *classify.Tracker) (dispatch.Exchange, error) {
	transport, err := c.pool.Transport(params)
	if err != nil {
		return nil, err
	}

	r := c.client(transport).R().
		SetContext(httptrace.WithClientTrace(ctx, tracker.ClientTrace())).
		SetDoNotParseResponse(true)
	req.Headers.Each(func(name, value string) {
		r.Header.Add(name, value)
	})
	if req.HasBody() {
		r.SetBody(req.Body)
	}

	resp, err := r.Execute(req.Method.String(), req.URL)
	if err != nil {
		if resp != nil && resp.RawResponse != nil && resp.RawResponse.Body != nil {
			_ = resp.RawResponse.Body.Close()
		}
		return nil, err
	}
	raw := resp.RawResponse
	if err := nettransport.CheckProxyRejection(ctx, raw, raw.Request, params); err != nil {
		return nil, err
	}
	return nettransport.NewExchange(raw), nil
}

func (c *Client) client(t *http.Transport) *resty.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rc, ok := c.clients[t]; ok {
		return rc
	}
	rc := resty.New().
		SetTransport(t).
		SetCookieJar(nil).
		SetLogger(newLogBridge(c.log)).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		})).
		SetRetryCount(0)
	c.clients[t] = rc
	return rc
}
