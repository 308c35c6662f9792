package fixture

import (
	"context"
	"encoding/base64"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/http/httputil"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/anyhttp/component"
	"github.com/kbukum/anyhttp/testutil"
)

// ProxyRequest is a request seen by the proxy.
type ProxyRequest struct {
	Method string
	// Target is host:port for CONNECT, the absolute URL otherwise.
	Target string
	// Authorization is the Proxy-Authorization header as received.
	Authorization string
	// User is the accepted username, empty when rejected or anonymous.
	User     string
	Accepted bool
}

// ProxyOption configures a Proxy.
type ProxyOption func(*Proxy)

// ProxyUser accepts Basic credentials for user. Without any ProxyUser the
// proxy accepts every request.
func ProxyUser(user, password string) ProxyOption {
	return func(p *Proxy) { p.users[user] = password }
}

// ProxyName sets the component name.
func ProxyName(name string) ProxyOption {
	return func(p *Proxy) { p.name = name }
}

// Proxy is a forward proxy handling CONNECT tunnels and absolute-form
// requests. Requests without acceptable credentials get 407.
type Proxy struct {
	name    string
	users   map[string]string
	forward *httputil.ReverseProxy

	mu   sync.Mutex
	srv  *httptest.Server
	seen []ProxyRequest
}

var (
	_ testutil.TestComponent = (*Proxy)(nil)
	_ component.Describable  = (*Proxy)(nil)
)

// NewProxy creates a proxy. It listens once started.
func NewProxy(opts ...ProxyOption) *Proxy {
	p := &Proxy{
		name:  "proxy",
		users: make(map[string]string),
		forward: &httputil.ReverseProxy{
			// The absolute-form URL is already the destination.
			Rewrite: func(*httputil.ProxyRequest) {},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Proxy) Name() string { return p.name }

// Start listens on a loopback port.
func (p *Proxy) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.srv == nil {
		p.srv = httptest.NewServer(p)
	}
	return nil
}

// Stop closes the listener and open connections.
func (p *Proxy) Stop(_ context.Context) error {
	p.mu.Lock()
	srv := p.srv
	p.srv = nil
	p.mu.Unlock()
	if srv != nil {
		srv.CloseClientConnections()
		srv.Close()
	}
	return nil
}

func (p *Proxy) Health(_ context.Context) component.Health {
	if p.Address() == "" {
		return component.Health{Name: p.name, Status: component.StatusUnhealthy, Message: "not started"}
	}
	return component.Health{Name: p.name, Status: component.StatusHealthy}
}

// Reset forgets recorded requests.
func (p *Proxy) Reset(_ context.Context) error {
	p.mu.Lock()
	p.seen = nil
	p.mu.Unlock()
	return nil
}

func (p *Proxy) Describe() component.Description {
	return component.Description{Name: p.name, Type: "fixture", Details: p.Address()}
}

// URL returns the proxy URL, empty before Start.
func (p *Proxy) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.srv == nil {
		return ""
	}
	return p.srv.URL
}

// Address returns host:port, empty before Start.
func (p *Proxy) Address() string {
	return strings.TrimPrefix(p.URL(), "http://")
}

// Requests returns the requests seen since Start or Reset.
func (p *Proxy) Requests() []ProxyRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ProxyRequest, len(p.seen))
	copy(out, p.seen)
	return out
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Proxy-Authorization")
	user, ok := p.authorize(auth)

	target := r.URL.String()
	if r.Method == http.MethodConnect {
		target = r.Host
	}
	p.mu.Lock()
	p.seen = append(p.seen, ProxyRequest{
		Method:        r.Method,
		Target:        target,
		Authorization: auth,
		User:          user,
		Accepted:      ok,
	})
	p.mu.Unlock()

	if !ok {
		w.Header().Set("Proxy-Authenticate", `Basic realm="fixture"`)
		w.Header().Set("Content-Length", "0")
		w.WriteHeader(http.StatusProxyAuthRequired)
		return
	}
	if r.Method == http.MethodConnect {
		p.tunnel(w, r)
		return
	}
	if !r.URL.IsAbs() {
		http.Error(w, "absolute-form request required", http.StatusBadRequest)
		return
	}
	p.forward.ServeHTTP(w, r)
}

func (p *Proxy) authorize(header string) (string, bool) {
	if len(p.users) == 0 {
		return "", true
	}
	encoded, found := strings.CutPrefix(header, "Basic ")
	if !found {
		return "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	user, password, found := strings.Cut(string(decoded), ":")
	if !found {
		return "", false
	}
	if want, known := p.users[user]; !known || want != password {
		return "", false
	}
	return user, true
}

func (p *Proxy) tunnel(w http.ResponseWriter, r *http.Request) {
	dst, err := net.DialTimeout("tcp", r.Host, 5*time.Second)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	hj, ok := w.(http.Hijacker)
	if !ok {
		dst.Close()
		http.Error(w, "hijacking not supported", http.StatusInternalServerError)
		return
	}
	src, buf, err := hj.Hijack()
	if err != nil {
		dst.Close()
		return
	}
	_, _ = io.WriteString(src, "HTTP/1.1 200 Connection established\r\n\r\n")

	go pipe(dst, buf.Reader, src)
	pipe(src, dst, dst)
}

// pipe copies until either side ends, then closes both ends it knows of.
func pipe(dst net.Conn, src io.Reader, srcConn net.Conn) {
	_, _ = io.Copy(dst, src)
	_ = dst.Close()
	_ = srcConn.Close()
}
