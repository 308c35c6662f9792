// Package classify maps engine failures onto the four httpclient error kinds.
//
// Engines report failures with whatever error their stack produces; the
// phase recorded by a Tracker decides the kind when the error itself is not
// conclusive. Certificate and handshake failures are always connect errors
// and proxy credential rejections are always proxy_auth errors. All matching
// on engine error text lives in this package.
package classify

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kbukum/anyhttp/httpclient"
	"github.com/kbukum/anyhttp/httpclient/body"
)

// Input describes the call that failed.
type Input struct {
	URL      string
	Proxy    string
	Phase    Phase
	Elapsed  time.Duration
	Timeouts httpclient.Timeouts
	// CtxErr is the call context's Err() when the failure was seen. It
	// tells an expired call deadline apart from a socket timeout when the
	// engine error alone cannot.
	CtxErr error
}

// ProxyRejection is reported by engines when a proxy refuses the call for
// lack of acceptable credentials.
type ProxyRejection struct {
	Proxy string
	// Status is the proxy's HTTP status, zero for SOCKS proxies.
	Status int
	// Offered reports whether credentials were sent.
	Offered bool
}

func (e *ProxyRejection) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("proxy %s answered %d (credentials offered: %t)", e.Proxy, e.Status, e.Offered)
	}
	return fmt.Sprintf("proxy %s rejected authentication (credentials offered: %t)", e.Proxy, e.Offered)
}

// InvalidURL is reported by engines that cannot parse the target.
type InvalidURL struct {
	URL string
	Err error
}

func (e *InvalidURL) Error() string { return fmt.Sprintf("invalid url %q: %v", e.URL, e.Err) }
func (e *InvalidURL) Unwrap() error { return e.Err }

// proxyAuthSignatures are error texts engines produce for rejected proxy
// credentials without a structured error.
var proxyAuthSignatures = []string{
	"proxy authentication required",
	"username/password authentication failed",
	"failed to authenticate with proxy",
}

// Classify returns err as an *httpclient.Error. An err that already is one
// is returned with URL and Elapsed filled in.
func Classify(in Input, err error) *httpclient.Error {
	if err == nil {
		return nil
	}
	var out *httpclient.Error
	if errors.As(err, &out) {
		if out.URL == "" {
			out.URL = in.URL
		}
		if out.Elapsed == 0 {
			out.Elapsed = in.Elapsed
		}
		return out
	}
	out = classify(in, err)
	out.Elapsed = in.Elapsed
	return out
}

func classify(in Input, err error) *httpclient.Error {
	var short *body.ShortBodyError
	switch {
	case errors.As(err, &short):
		return httpclient.NewReadError(in.URL, short.Error(), err)
	case isProxyAuth(err):
		return httpclient.NewProxyAuthError(in.URL, proxyAuthMessage(in), err)
	case isInvalidURL(err):
		return httpclient.NewConnectError(in.URL, "Cannot parse url: "+in.URL, err)
	case isCertificate(err):
		return httpclient.NewConnectError(in.URL, "Bad ssl certificate at "+in.URL, err)
	case errors.Is(in.CtxErr, context.Canceled) || errors.Is(err, context.Canceled):
		return byPhase(in, fmt.Sprintf("Call to %s was cancelled", in.URL), err)
	case errors.Is(in.CtxErr, context.DeadlineExceeded) || isContextDeadline(err):
		return byPhase(in, fmt.Sprintf("Call to %s did not complete%s", in.URL, within(in.Timeouts.Call)), err)
	case isTimeout(err):
		return timeout(in, err)
	case isDial(err):
		return httpclient.NewConnectError(in.URL, fmt.Sprintf("Cannot connect to %s%s", in.URL, within(in.Timeouts.Connect)), err)
	case in.Phase == PhaseConnect && isHandshake(err):
		return httpclient.NewConnectError(in.URL, "Bad ssl certificate at "+in.URL, err)
	}

	switch in.Phase {
	case PhaseConnect:
		return httpclient.NewConnectError(in.URL, fmt.Sprintf("Cannot connect to %s%s", in.URL, within(in.Timeouts.Connect)), err)
	case PhaseWrite:
		return httpclient.NewWriteError(in.URL, "Cannot write request to "+in.URL, err)
	default:
		return httpclient.NewReadError(in.URL, "Cannot read from "+in.URL, err)
	}
}

func byPhase(in Input, msg string, err error) *httpclient.Error {
	switch in.Phase {
	case PhaseConnect:
		return httpclient.NewConnectError(in.URL, msg, err)
	case PhaseWrite:
		return httpclient.NewWriteError(in.URL, msg, err)
	default:
		return httpclient.NewReadError(in.URL, msg, err)
	}
}

func timeout(in Input, err error) *httpclient.Error {
	switch in.Phase {
	case PhaseConnect:
		return httpclient.NewConnectError(in.URL,
			fmt.Sprintf("Connection timed out to %s%s", in.URL, within(in.Timeouts.Connect)), err)
	case PhaseWrite:
		return httpclient.NewWriteError(in.URL,
			fmt.Sprintf("Write timed out to %s%s", in.URL, within(in.Timeouts.Write)), err)
	default:
		return httpclient.NewReadError(in.URL,
			fmt.Sprintf("Read timed out from %s%s", in.URL, within(in.Timeouts.Read)), err)
	}
}

func proxyAuthMessage(in Input) string {
	if in.Proxy == "" {
		return "Failed to authenticate with proxy for " + in.URL
	}
	return fmt.Sprintf("Failed to authenticate with proxy %s for %s", in.Proxy, in.URL)
}

func within(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return fmt.Sprintf(" within %d ms", d.Milliseconds())
}

func isProxyAuth(err error) bool {
	var rejection *ProxyRejection
	if errors.As(err, &rejection) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range proxyAuthSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

func isInvalidURL(err error) bool {
	var invalid *InvalidURL
	if errors.As(err, &invalid) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Op == "parse" {
		return true
	}
	return strings.Contains(err.Error(), "unsupported protocol scheme")
}

func isCertificate(err error) bool {
	var (
		verifyErr   *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		invalid     x509.CertificateInvalidError
		hostname    x509.HostnameError
		alert       tls.AlertError
		record      tls.RecordHeaderError
	)
	return errors.As(err, &verifyErr) ||
		errors.As(err, &unknownAuth) ||
		errors.As(err, &invalid) ||
		errors.As(err, &hostname) ||
		errors.As(err, &alert) ||
		errors.As(err, &record)
}

// isHandshake matches handshake failures that carry no typed error.
func isHandshake(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "tls: ") || strings.Contains(msg, "x509: ")
}

// isContextDeadline matches a bare context deadline. Socket timeouts from
// package net also match context.DeadlineExceeded, so they are excluded.
func isContextDeadline(err error) bool {
	if !errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return false
	}
	var opErr *net.OpError
	return !errors.As(err, &opErr)
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isDial(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && (opErr.Op == "dial" || opErr.Op == "proxyconnect")
}
