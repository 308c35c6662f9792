// Package nettransport builds and pools the net/http transports shared by
// the nethttp and resty engines, and converts net/http responses into
// dispatch exchanges.
package nettransport

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/anyhttp/httpclient"
	"github.com/kbukum/anyhttp/httpclient/classify"
	"github.com/kbukum/anyhttp/httpclient/dispatch"
	"github.com/kbukum/anyhttp/httpclient/netconn"
	"github.com/kbukum/anyhttp/httpclient/proxyauth"
)

// profile identifies transports that can be shared. TLS overrides are keyed
// by identity, so callers should reuse one *TLSOverrides per trust setup.
type profile struct {
	connect time.Duration
	read    time.Duration
	write   time.Duration
	proxy   string
	tls     *httpclient.TLSOverrides
}

// Pool hands out one *http.Transport per transport profile.
type Pool struct {
	base *tls.Config

	mu         sync.Mutex
	transports map[profile]*http.Transport
}

// NewPool creates a pool. base, when set, is the TLS configuration used for
// calls without overrides.
func NewPool(base *tls.Config) *Pool {
	return &Pool{
		base:       base,
		transports: make(map[profile]*http.Transport),
	}
}

// Transport returns the shared transport for params.
func (p *Pool) Transport(params httpclient.CallParameters) (*http.Transport, error) {
	var proxyURL *url.URL
	if params.Proxy != nil {
		u, err := params.Proxy.URL()
		if err != nil {
			return nil, err
		}
		proxyURL = u
	}

	key := profile{
		connect: params.Timeouts.Connect,
		read:    params.Timeouts.Read,
		write:   params.Timeouts.Write,
		tls:     params.TLS,
	}
	if proxyURL != nil {
		key.proxy = proxyURL.String()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.transports[key]; ok {
		return t, nil
	}
	t := p.build(key, proxyURL)
	p.transports[key] = t
	return t, nil
}

// Size returns the number of pooled transports.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.transports)
}

// Close drops idle connections of every pooled transport.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, t := range p.transports {
		t.CloseIdleConnections()
		delete(p.transports, k)
	}
}

func (p *Pool) build(key profile, proxyURL *url.URL) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   key.connect,
		KeepAlive: 30 * time.Second,
	}
	var tlsCfg *tls.Config
	if !key.tls.IsZero() {
		tlsCfg = key.tls.ClientConfig(p.base, "")
	} else if p.base != nil {
		tlsCfg = p.base.Clone()
	}

	return &http.Transport{
		Proxy: ProxyFunc(proxyURL),
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return netconn.Wrap(conn, key.read, key.write), nil
		},
		TLSClientConfig:       tlsCfg,
		TLSHandshakeTimeout:   key.connect,
		ResponseHeaderTimeout: key.read,
		DisableCompression:    true,
		ForceAttemptHTTP2:     false,
		TLSNextProto:          map[string]func(string, *tls.Conn) http.RoundTripper{},
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// ProxyFunc returns a Transport.Proxy callback for proxyURL. Credentials are
// resolved per request through proxyauth, using the request's context, so
// concurrent calls with different credentials never share them.
func ProxyFunc(proxyURL *url.URL) func(*http.Request) (*url.URL, error) {
	if proxyURL == nil {
		return nil
	}
	return func(req *http.Request) (*url.URL, error) {
		scheme := "basic"
		if strings.HasPrefix(proxyURL.Scheme, "socks5") {
			scheme = "socks5"
		}
		creds, ok := proxyauth.Authenticate(req.Context(), proxyauth.Challenge{
			Proxy:  proxyURL,
			Target: req.URL.String(),
			Scheme: scheme,
		})
		if !ok {
			return proxyURL, nil
		}
		u := *proxyURL
		u.User = creds.Userinfo()
		return &u, nil
	}
}

// NewRequest converts req into an *http.Request. Header order cannot be kept
// because http.Header is a map; values of repeated names keep their order.
func NewRequest(ctx context.Context, req httpclient.Request) (*http.Request, error) {
	var body io.Reader
	if req.HasBody() {
		body = strings.NewReader(string(req.Body))
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method.String(), req.URL, body)
	if err != nil {
		return nil, err
	}
	ApplyHeaders(httpReq, req.Headers)
	return httpReq, nil
}

// ApplyHeaders copies headers onto r. A Host header sets r.Host. Without a
// caller User-Agent net/http's default one is suppressed.
func ApplyHeaders(r *http.Request, headers httpclient.Headers) {
	headers.Each(func(name, value string) {
		if strings.EqualFold(name, "Host") {
			r.Host = value
			return
		}
		r.Header.Add(name, value)
	})
	if !headers.Has("User-Agent") {
		r.Header["User-Agent"] = []string{""}
	}
}

// Headers flattens resp's headers in name order. net/http moves
// Transfer-Encoding out of the header map; it is restored here.
func Headers(resp *http.Response) httpclient.Headers {
	names := make([]string, 0, len(resp.Header))
	for name := range resp.Header {
		names = append(names, name)
	}
	sort.Strings(names)

	b := httpclient.NewHeadersBuilder()
	for _, name := range names {
		for _, v := range resp.Header[name] {
			b.Add(name, v)
		}
	}
	if _, ok := resp.Header["Transfer-Encoding"]; !ok && len(resp.TransferEncoding) > 0 {
		b.Add("Transfer-Encoding", strings.Join(resp.TransferEncoding, ", "))
	}
	return b.Build()
}

// CheckProxyRejection turns a 407 from a plain-HTTP proxy into a rejection
// when credentials were sent. Without credentials the 407 is an ordinary
// response for the caller to handle. resp is closed when rejected.
func CheckProxyRejection(ctx context.Context, resp *http.Response, req *http.Request, params httpclient.CallParameters) error {
	if resp.StatusCode != http.StatusProxyAuthRequired || params.Proxy == nil {
		return nil
	}
	proxyURL, err := params.Proxy.URL()
	if err != nil {
		return nil
	}
	if _, offered := proxyauth.Authenticate(ctx, proxyauth.Challenge{
		Proxy:  proxyURL,
		Target: req.URL.String(),
		Scheme: "basic",
	}); !offered {
		return nil
	}
	_ = resp.Body.Close()
	return &classify.ProxyRejection{Proxy: proxyURL.Host, Status: resp.StatusCode, Offered: true}
}

// Reason extracts the reason phrase from resp.Status.
func Reason(resp *http.Response) string {
	return strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
}

// Exchange adapts an *http.Response. net/http has a single body stream, so
// ErrorBody and Body are the same.
type Exchange struct {
	resp    *http.Response
	headers httpclient.Headers
}

var _ dispatch.Exchange = (*Exchange)(nil)

// NewExchange wraps resp.
func NewExchange(resp *http.Response) *Exchange {
	return &Exchange{resp: resp, headers: Headers(resp)}
}

func (e *Exchange) StatusCode() int             { return e.resp.StatusCode }
func (e *Exchange) ReasonPhrase() string        { return Reason(e.resp) }
func (e *Exchange) Headers() httpclient.Headers { return e.headers }
func (e *Exchange) Body() io.Reader             { return e.resp.Body }
func (e *Exchange) ErrorBody() io.Reader        { return e.resp.Body }

// ContentLength is -1 for chunked responses.
func (e *Exchange) ContentLength() int64 {
	if len(e.resp.TransferEncoding) > 0 {
		return -1
	}
	return e.resp.ContentLength
}

// Close closes the response body.
func (e *Exchange) Close() error {
	if e.resp.Body == nil {
		return nil
	}
	return e.resp.Body.Close()
}
