package wire

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/proxy"

	"github.com/kbukum/anyhttp/httpclient/classify"
	"github.com/kbukum/anyhttp/httpclient/netconn"
	"github.com/kbukum/anyhttp/httpclient/proxyauth"
)

var errUnsupportedURL = errors.New("unsupported protocol scheme or missing host")

// errChallenged reports a 407 answer to CONNECT.
var errChallenged = errors.New("proxy requires authentication")

// connect returns a connection ready for the request. When an HTTP proxy
// challenges the CONNECT, the process-wide authenticator is asked for
// credentials once and the tunnel is retried on a fresh connection, since
// proxies commonly close after a challenge.
func (r *route) connect(ctx context.Context) (*link, error) {
	l, err := r.connectOnce(ctx, "")
	if !errors.Is(err, errChallenged) {
		return l, err
	}

	creds, ok := proxyauth.Authenticate(ctx, proxyauth.Challenge{
		Proxy:  r.proxy,
		Target: r.target.String(),
		Scheme: "basic",
	})
	if !ok {
		return nil, &classify.ProxyRejection{Proxy: r.proxy.Host, Status: 407}
	}
	l, err = r.connectOnce(ctx, creds.BasicAuth())
	if errors.Is(err, errChallenged) {
		return nil, &classify.ProxyRejection{Proxy: r.proxy.Host, Status: 407, Offered: true}
	}
	return l, err
}

// link is an established connection. Ending the call context closes it.
type link struct {
	net.Conn
	stop func() bool
}

// release detaches the context and closes the connection.
func (l *link) release() {
	l.stop()
	_ = l.Conn.Close()
}

// connectOnce dials, tunnels and wraps in TLS as the route requires. The
// whole phase is bounded by the connect timeout; read and write timeouts
// apply afterwards.
func (r *route) connectOnce(ctx context.Context, proxyAuth string) (*link, error) {
	timeouts := r.params.Timeouts
	raw, err := r.dial(ctx, &net.Dialer{Timeout: timeouts.Connect})
	if err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() { _ = raw.Close() })
	if timeouts.Connect > 0 {
		_ = raw.SetDeadline(time.Now().Add(timeouts.Connect))
	}

	nc := netconn.New(raw)
	conn, err := r.establish(ctx, nc, proxyAuth)
	if err != nil {
		stop()
		_ = raw.Close()
		return nil, err
	}

	_ = raw.SetDeadline(time.Time{})
	nc.SetTimeouts(timeouts.Read, timeouts.Write)
	return &link{Conn: conn, stop: stop}, nil
}

// dial opens the first hop: the origin, the HTTP proxy, or the origin
// through a SOCKS5 proxy.
func (r *route) dial(ctx context.Context, dialer *net.Dialer) (net.Conn, error) {
	origin := hostPort(r.target)
	switch {
	case r.proxy == nil:
		return dialer.DialContext(ctx, "tcp", origin)
	case r.proxy.Scheme == "socks5" || r.proxy.Scheme == "socks5h":
		return r.dialSOCKS(ctx, dialer, origin)
	default:
		return dialer.DialContext(ctx, "tcp", r.proxy.Host)
	}
}

func (r *route) dialSOCKS(ctx context.Context, dialer *net.Dialer, origin string) (net.Conn, error) {
	var auth *proxy.Auth
	creds, offered := proxyauth.Authenticate(ctx, proxyauth.Challenge{
		Proxy:  r.proxy,
		Target: r.target.String(),
		Scheme: "socks5",
	})
	if offered {
		auth = &proxy.Auth{User: creds.Username, Password: creds.Password}
	}
	d, err := proxy.SOCKS5("tcp", r.proxy.Host, auth, dialer)
	if err != nil {
		return nil, err
	}
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, "tcp", origin)
	}
	return d.Dial("tcp", origin)
}

// establish runs proxy TLS, the CONNECT tunnel and origin TLS on top of the
// first hop.
func (r *route) establish(ctx context.Context, first net.Conn, proxyAuth string) (net.Conn, error) {
	conn := first
	if r.proxy != nil && r.proxy.Scheme == "https" {
		tc := tls.Client(conn, r.client.proxyTLS(r.proxy.Hostname()))
		if err := tc.HandshakeContext(ctx); err != nil {
			return nil, err
		}
		conn = tc
	}

	if r.tunnelling() {
		tunnel, err := connectTunnel(conn, r.proxy.Host, hostPort(r.target), proxyAuth)
		if err != nil {
			return nil, err
		}
		conn = tunnel
	}

	if r.target.Scheme == "https" {
		cfg := r.params.TLS.ClientConfig(r.client.base, r.target.Hostname())
		tc := tls.Client(conn, cfg)
		if err := tc.HandshakeContext(ctx); err != nil {
			return nil, err
		}
		conn = tc
	}
	return conn, nil
}

// tunnelling reports whether an HTTP proxy must be asked for a CONNECT tunnel.
func (r *route) tunnelling() bool {
	return r.proxy != nil && r.target.Scheme == "https" &&
		(r.proxy.Scheme == "http" || r.proxy.Scheme == "https")
}

// connectTunnel writes one CONNECT request and reads the reply head.
func connectTunnel(conn net.Conn, proxyHost, origin, proxyAuth string) (net.Conn, error) {
	bw := bufio.NewWriter(conn)
	fmt.Fprintf(bw, "CONNECT %s HTTP/1.1\r\nHost: %s\r\n", origin, origin)
	if proxyAuth != "" {
		fmt.Fprintf(bw, "Proxy-Authorization: %s\r\n", proxyAuth)
	}
	bw.WriteString("\r\n")
	if err := bw.Flush(); err != nil {
		return nil, err
	}

	br := bufio.NewReader(conn)
	h, err := readHead(br)
	if err != nil {
		return nil, err
	}
	switch {
	case h.status == 407:
		return nil, errChallenged
	case h.status < 200 || h.status > 299:
		return nil, fmt.Errorf("proxy %s refused CONNECT to %s with status %d", proxyHost, origin, h.status)
	case br.Buffered() > 0:
		return &bufferedConn{Conn: conn, r: br}, nil
	default:
		return conn, nil
	}
}

func (c *Client) proxyTLS(host string) *tls.Config {
	if c.base != nil {
		cfg := c.base.Clone()
		cfg.ServerName = host
		return cfg
	}
	return &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
}
