package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/kbukum/anyhttp/security"
)

// Timeouts bounds each phase of a call. A zero value leaves the engine default.
type Timeouts struct {
	// Connect bounds dialing, proxy tunnelling and the TLS handshake.
	Connect time.Duration `yaml:"connect" mapstructure:"connect"`
	// Read bounds each wait for response bytes.
	Read time.Duration `yaml:"read" mapstructure:"read"`
	// Call bounds the whole call. For streams it runs until Close.
	Call time.Duration `yaml:"call" mapstructure:"call"`
	// Write bounds each write of request bytes.
	Write time.Duration `yaml:"write" mapstructure:"write"`
}

// NewTimeouts sets connect and read; call and write follow read.
func NewTimeouts(connect, read time.Duration) Timeouts {
	return Timeouts{Connect: connect, Read: read, Call: read, Write: read}
}

// TimeoutsMillis builds Timeouts from millisecond counts.
func TimeoutsMillis(connect, read, call, write int) Timeouts {
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }
	return Timeouts{Connect: ms(connect), Read: ms(read), Call: ms(call), Write: ms(write)}
}

// Proxy is a forward proxy. Address is host:port for an HTTP proxy or a URL
// with an http, https or socks5 scheme.
type Proxy struct {
	Address  string `yaml:"address" mapstructure:"address" validate:"required"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
}

// HasCredentials reports whether a username is set.
func (p *Proxy) HasCredentials() bool {
	return p != nil && p.Username != ""
}

// URL parses Address. The result never carries credentials.
func (p *Proxy) URL() (*url.URL, error) {
	if p == nil || p.Address == "" {
		return nil, fmt.Errorf("httpclient: proxy address is empty")
	}
	raw := p.Address
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("httpclient: invalid proxy address %q: %w", p.Address, err)
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("httpclient: unsupported proxy scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("httpclient: proxy address %q has no host", p.Address)
	}
	if u.Port() == "" {
		port := "80"
		switch u.Scheme {
		case "https":
			port = "443"
		case "socks5", "socks5h":
			port = "1080"
		}
		u.Host = net.JoinHostPort(u.Hostname(), port)
	}
	u.User = nil
	u.Path = ""
	return u, nil
}

// String returns the address without credentials.
func (p *Proxy) String() string {
	if p == nil {
		return ""
	}
	if u, err := p.URL(); err == nil {
		return u.String()
	}
	return p.Address
}

// TLSOverrides replaces parts of the engine's TLS behaviour for one call.
type TLSOverrides struct {
	// HostnameVerifier replaces the hostname check after chain verification.
	HostnameVerifier security.HostnameVerifier
	// Config is used as the base client configuration.
	Config *tls.Config
	// RootCAs replaces the trusted roots.
	RootCAs *x509.CertPool
}

// IsZero reports whether no override is set.
func (o *TLSOverrides) IsZero() bool {
	return o == nil || (o.HostnameVerifier == nil && o.Config == nil && o.RootCAs == nil)
}

// ClientConfig applies the overrides on top of base for a connection to host.
func (o *TLSOverrides) ClientConfig(base *tls.Config, host string) *tls.Config {
	opts := security.ClientOptions{Base: base, ServerName: host}
	if o != nil {
		if o.Config != nil {
			opts.Base = o.Config
		}
		opts.RootCAs = o.RootCAs
		opts.VerifyHostname = o.HostnameVerifier
	}
	return opts.Build()
}

// CallParameters carries per-call transport settings.
type CallParameters struct {
	Timeouts Timeouts
	Proxy    *Proxy
	TLS      *TLSOverrides
}

// WithDefaults fills unset fields from d.
func (p CallParameters) WithDefaults(d CallParameters) CallParameters {
	if p.Timeouts.Connect == 0 {
		p.Timeouts.Connect = d.Timeouts.Connect
	}
	if p.Timeouts.Read == 0 {
		p.Timeouts.Read = d.Timeouts.Read
	}
	if p.Timeouts.Call == 0 {
		p.Timeouts.Call = d.Timeouts.Call
	}
	if p.Timeouts.Write == 0 {
		p.Timeouts.Write = d.Timeouts.Write
	}
	if p.Proxy == nil {
		p.Proxy = d.Proxy
	}
	if p.TLS == nil {
		p.TLS = d.TLS
	}
	return p
}
