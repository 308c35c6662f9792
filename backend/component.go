package backend

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/kbukum/anyhttp/component"
	"github.com/kbukum/anyhttp/logger"
	"github.com/kbukum/anyhttp/observability"
)

// Component wraps a Client with lifecycle management. The client and the
// telemetry providers are created in Start.
type Component struct {
	config Config
	log    *logger.Logger

	mu        sync.RWMutex
	client    *Client
	providers *observability.Providers
}

// compile-time assertions
var _ component.Component = (*Component)(nil)
var _ component.Describable = (*Component)(nil)

// NewComponent creates a client component. A nil log is built from
// cfg.Logging when the component starts.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	return &Component{config: cfg, log: log}
}

// Name returns the component name.
func (c *Component) Name() string {
	if c.config.Name == "" {
		return "httpclient"
	}
	return c.config.Name
}

// Start validates the configuration, starts telemetry and builds the client.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return nil
	}

	c.config.ApplyDefaults()
	if err := c.config.Validate(); err != nil {
		return err
	}
	if c.log == nil {
		c.log = logger.New(&c.config.Logging, c.config.Name)
	}
	log := c.log.WithComponent(c.Name())

	providers, err := observability.Init(ctx, c.config.Name, c.config.Environment, c.config.Telemetry, log)
	if err != nil {
		return fmt.Errorf("backend: telemetry: %w", err)
	}
	opts, err := providers.InstrumentOptions()
	if err != nil {
		_ = providers.Shutdown(ctx)
		return fmt.Errorf("backend: telemetry: %w", err)
	}

	client, err := New(c.config, log, opts...)
	if err != nil {
		_ = providers.Shutdown(ctx)
		return err
	}
	c.client = client
	c.providers = providers
	return nil
}

// Stop closes the client and flushes telemetry.
func (c *Component) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
	err := c.providers.Shutdown(ctx)
	c.providers = nil
	return err
}

// Health reports healthy while the client is started.
func (c *Component) Health(_ context.Context) component.Health {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.client == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

// Describe returns component description for the startup summary.
func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    c.Name(),
		Type:    "httpclient",
		Details: Summary(c.config),
	}
}

// Client returns the client. Nil before Start and after Stop.
func (c *Component) Client() *Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

// MetricsHandler serves the Prometheus registry, nil when
// telemetry.prometheus is off or the component is stopped.
func (c *Component) MetricsHandler() http.Handler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.providers == nil || c.providers.Prom == nil {
		return nil
	}
	return c.providers.Prom.Handler()
}
