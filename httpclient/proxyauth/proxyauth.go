// Package proxyauth carries per-call proxy credentials to engines whose proxy
// authentication hook is process-wide.
//
// A call installs its credentials into its context immediately before
// dispatch and clears them as soon as the engine has returned. Engines resolve
// credentials through Authenticate, which consults the process-wide
// Authenticator with the call's context. Concurrent calls carry distinct
// contexts and never observe each other's credentials.
package proxyauth

import (
	"context"
	"encoding/base64"
	"net/url"
	"sync"
	"sync/atomic"
)

// Credentials is a proxy username and password.
type Credentials struct {
	Username string
	Password string
}

// IsZero reports whether no username is set.
func (c Credentials) IsZero() bool { return c.Username == "" }

// BasicAuth returns the Proxy-Authorization value for the Basic scheme.
func (c Credentials) BasicAuth() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.Username+":"+c.Password))
}

// Userinfo returns the credentials as URL user info.
func (c Credentials) Userinfo() *url.Userinfo {
	return url.UserPassword(c.Username, c.Password)
}

type scope struct {
	creds  Credentials
	active atomic.Bool
}

type ctxKey struct{}

// Install binds creds to the returned context. The returned clear function
// deactivates the binding and is safe to call more than once.
func Install(ctx context.Context, creds Credentials) (context.Context, func()) {
	s := &scope{creds: creds}
	s.active.Store(true)
	return context.WithValue(ctx, ctxKey{}, s), func() { s.active.Store(false) }
}

// Lookup returns the credentials bound to ctx while their scope is active.
func Lookup(ctx context.Context) (Credentials, bool) {
	if ctx == nil {
		return Credentials{}, false
	}
	s, ok := ctx.Value(ctxKey{}).(*scope)
	if !ok || !s.active.Load() {
		return Credentials{}, false
	}
	return s.creds, true
}

// Active reports whether ctx carries an active credential scope.
func Active(ctx context.Context) bool {
	_, ok := Lookup(ctx)
	return ok
}

// Challenge describes a proxy asking for credentials.
type Challenge struct {
	// Proxy is the proxy that issued the challenge.
	Proxy *url.URL
	// Target is the URL of the call being proxied.
	Target string
	// Scheme is the authentication scheme, "basic" for HTTP proxies and
	// "socks5" for SOCKS proxies.
	Scheme string
}

// Authenticator answers proxy challenges for the whole process.
type Authenticator func(ctx context.Context, ch Challenge) (Credentials, bool)

// FromContext answers challenges with the credentials installed in ctx.
func FromContext(ctx context.Context, _ Challenge) (Credentials, bool) {
	return Lookup(ctx)
}

var (
	mu      sync.RWMutex
	current Authenticator = FromContext
)

// SetDefault replaces the process-wide authenticator and returns a function
// that restores the previous one. Nil restores FromContext.
func SetDefault(a Authenticator) (restore func()) {
	if a == nil {
		a = FromContext
	}
	mu.Lock()
	prev := current
	current = a
	mu.Unlock()
	return func() {
		mu.Lock()
		current = prev
		mu.Unlock()
	}
}

// Default returns the process-wide authenticator.
func Default() Authenticator {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Authenticate asks the process-wide authenticator for credentials.
func Authenticate(ctx context.Context, ch Challenge) (Credentials, bool) {
	creds, ok := Default()(ctx, ch)
	if !ok || creds.IsZero() {
		return Credentials{}, false
	}
	return creds, true
}
