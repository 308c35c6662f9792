// Package backend builds an httpclient.Client from configuration.
//
// It selects the engine named in Config, hands it the configured TLS
// settings and call defaults, and decorates it with observability:
//
//	cfg, err := backend.Load("billing")
//	client, err := backend.New(cfg, log)
//	defer client.Close()
//
//	resp, err := client.Send(ctx, httpclient.NewRequest(httpclient.MethodGet, url), httpclient.CallParameters{})
//
// Component wraps the same construction in a lifecycle that also starts
// and stops the telemetry exporters.
package backend

import (
	"fmt"

	"github.com/kbukum/anyhttp/errors"
	"github.com/kbukum/anyhttp/httpclient"
	"github.com/kbukum/anyhttp/httpclient/dispatch"
	"github.com/kbukum/anyhttp/httpclient/engine/nethttp"
	"github.com/kbukum/anyhttp/httpclient/engine/nettransport"
	"github.com/kbukum/anyhttp/httpclient/engine/resty"
	"github.com/kbukum/anyhttp/httpclient/engine/wire"
	"github.com/kbukum/anyhttp/logger"
	"github.com/kbukum/anyhttp/observability"
)

// Client is the configured, instrumented client.
type Client struct {
	*observability.Client
	pool *nettransport.Pool
}

var _ httpclient.Client = (*Client)(nil)

// New builds the engine named by cfg. cfg must have defaults applied.
func New(cfg Config, log *logger.Logger, opts ...observability.InstrumentOption) (*Client, error) {
	if log == nil {
		log = logger.Nop()
	}
	base, err := cfg.TLS.Build()
	if err != nil {
		return nil, errors.InvalidConfig("failed to build tls configuration", err)
	}

	dopts := []dispatch.Option{
		dispatch.WithLogger(log),
		dispatch.WithDefaults(cfg.CallDefaults()),
	}

	var (
		engine httpclient.Client
		pool   *nettransport.Pool
	)
	switch cfg.Engine {
	case nethttp.Name:
		pool = nettransport.NewPool(base)
		engine = nethttp.New(pool, dopts...)
	case resty.Name:
		pool = nettransport.NewPool(base)
		engine = resty.New(pool, log, dopts...)
	case wire.Name:
		engine = wire.New(base, dopts...)
	default:
		return nil, errors.UnsupportedEngine(cfg.Engine)
	}

	log.Debug("client created", logger.Fields(
		"engine", cfg.Engine,
		"proxy", cfg.Proxy.String(),
		"tls", cfg.TLS.IsEnabled(),
	))
	return &Client{
		Client: observability.Instrument(engine, opts...),
		pool:   pool,
	}, nil
}

// Close releases pooled connections. Calls in flight are not interrupted.
func (c *Client) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

// Summary describes the client in one line.
func Summary(cfg Config) string {
	s := fmt.Sprintf("engine=%s connect=%s read=%s call=%s", cfg.Engine,
		cfg.Timeouts.Connect, cfg.Timeouts.Read, cfg.Timeouts.Call)
	if cfg.Proxy != nil {
		s += " proxy=" + cfg.Proxy.String()
	}
	return s
}
