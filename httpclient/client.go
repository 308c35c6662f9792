package httpclient

import "context"

// Client sends requests through one transport engine. Implementations are
// safe for concurrent use. Every failure is returned as *Error.
type Client interface {
	// Send performs the call and returns the fully read response.
	Send(ctx context.Context, req Request, params CallParameters) (*Response, error)
	// SendStream performs the call and returns once headers are read. The
	// caller must Close the result.
	SendStream(ctx context.Context, req Request, params CallParameters) (StreamResponse, error)
	// SendListener performs the call and pushes the response to l, returning
	// after the body has been delivered or the call failed.
	SendListener(ctx context.Context, req Request, params CallParameters, l Listener) error
}

// Named is implemented by clients that report their engine name.
type Named interface {
	Engine() string
}
