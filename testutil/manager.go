package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/anyhttp/component"
	"github.com/kbukum/anyhttp/logger"
)

// Manager starts, stops and resets a set of test components together. It
// delegates lifecycle ordering to a component.Registry.
type Manager struct {
	ctx      context.Context
	registry *component.Registry

	mu         sync.RWMutex
	components []TestComponent
}

// NewManager creates a manager whose lifecycle calls use ctx.
func NewManager(ctx context.Context) *Manager {
	return &Manager{
		ctx:      ctx,
		registry: component.NewRegistry(logger.Nop()),
	}
}

// Add registers a test component. Names must be unique.
func (m *Manager) Add(c TestComponent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.registry.Register(c); err != nil {
		return err
	}
	m.components = append(m.components, c)
	return nil
}

// Get returns the component registered under name, or nil.
func (m *Manager) Get(name string) TestComponent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.components {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// StartAll starts components in registration order.
func (m *Manager) StartAll() error {
	return m.registry.StartAll(m.ctx)
}

// StopAll stops components in reverse order, collecting every failure.
func (m *Manager) StopAll() error {
	return m.registry.StopAll(m.ctx)
}

// ResetAll resets every component, stopping at the first failure.
func (m *Manager) ResetAll() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.components {
		if err := c.Reset(m.ctx); err != nil {
			return fmt.Errorf("failed to reset component %s: %w", c.Name(), err)
		}
	}
	return nil
}
