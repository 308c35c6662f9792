package testutil

import (
	"context"

	"github.com/kbukum/anyhttp/component"
)

// TestComponent is a component.Component used as test infrastructure, such
// as a fixture server. It can be registered with a component.Registry like
// any other component.
type TestComponent interface {
	component.Component

	// Reset clears state recorded since Start, keeping the component running.
	Reset(ctx context.Context) error
}

// Addressable is implemented by test components that listen on a URL.
type Addressable interface {
	URL() string
}
