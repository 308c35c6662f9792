package httpclient

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies transport failures by the phase they happened in.
type ErrorKind int

const (
	// KindConnect covers DNS, refused connections, TLS handshake and
	// certificate failures, proxy tunnelling and connect timeouts.
	KindConnect ErrorKind = iota
	// KindWrite covers failures while sending the request.
	KindWrite
	// KindRead covers failures while waiting for or reading the response.
	KindRead
	// KindProxyAuth is an unambiguous rejection of proxy credentials.
	KindProxyAuth
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindConnect:
		return "connect"
	case KindWrite:
		return "write"
	case KindRead:
		return "read"
	case KindProxyAuth:
		return "proxy_auth"
	default:
		return "unknown"
	}
}

// Error is the only error type returned by Client operations for transport
// failures.
type Error struct {
	// Kind classifies the error.
	Kind ErrorKind
	// URL is the target of the failed call.
	URL string
	// Message describes the error.
	Message string
	// Elapsed is the time spent in the call before it failed.
	Elapsed time.Duration
	// Err is the underlying engine error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("httpclient: %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("httpclient: %s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewConnectError creates a connect error.
func NewConnectError(url, msg string, err error) *Error {
	return &Error{Kind: KindConnect, URL: url, Message: msg, Err: err}
}

// NewWriteError creates a write error.
func NewWriteError(url, msg string, err error) *Error {
	return &Error{Kind: KindWrite, URL: url, Message: msg, Err: err}
}

// NewReadError creates a read error.
func NewReadError(url, msg string, err error) *Error {
	return &Error{Kind: KindRead, URL: url, Message: msg, Err: err}
}

// NewProxyAuthError creates a proxy authentication error.
func NewProxyAuthError(url, msg string, err error) *Error {
	return &Error{Kind: KindProxyAuth, URL: url, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsConnect checks if an error is a connect error.
func IsConnect(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindConnect
}

// IsWrite checks if an error is a write error.
func IsWrite(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindWrite
}

// IsRead checks if an error is a read error.
func IsRead(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindRead
}

// IsProxyAuth checks if an error is a proxy authentication error.
func IsProxyAuth(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindProxyAuth
}
