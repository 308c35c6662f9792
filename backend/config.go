package backend

import (
	"fmt"
	"slices"
	"time"

	"github.com/kbukum/anyhttp/config"
	"github.com/kbukum/anyhttp/errors"
	"github.com/kbukum/anyhttp/httpclient"
	"github.com/kbukum/anyhttp/httpclient/engine/nethttp"
	"github.com/kbukum/anyhttp/httpclient/engine/resty"
	"github.com/kbukum/anyhttp/httpclient/engine/wire"
	"github.com/kbukum/anyhttp/observability"
	"github.com/kbukum/anyhttp/security"
	"github.com/kbukum/anyhttp/validation"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultReadTimeout    = 30 * time.Second
	defaultCallTimeout    = 60 * time.Second
	defaultWriteTimeout   = 30 * time.Second
)

// Engines lists the engine names accepted in Config.Engine.
var Engines = []string{nethttp.Name, resty.Name, wire.Name}

// Config configures a client built by New.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	// Engine selects the transport: nethttp, resty or wire. Defaults to nethttp.
	Engine string `yaml:"engine" mapstructure:"engine"`

	// Timeouts are the defaults for calls that leave a timeout unset.
	Timeouts httpclient.Timeouts `yaml:"timeouts" mapstructure:"timeouts"`

	// Proxy is the default proxy. Nil connects directly.
	Proxy *httpclient.Proxy `yaml:"proxy" mapstructure:"proxy"`

	// TLS configures the base TLS settings of the engine.
	TLS security.TLSConfig `yaml:"tls" mapstructure:"tls"`

	// Telemetry configures tracing and metrics.
	Telemetry observability.Config `yaml:"telemetry" mapstructure:"telemetry"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	if c.Engine == "" {
		c.Engine = nethttp.Name
	}
	if c.Timeouts.Connect == 0 {
		c.Timeouts.Connect = defaultConnectTimeout
	}
	if c.Timeouts.Read == 0 {
		c.Timeouts.Read = defaultReadTimeout
	}
	if c.Timeouts.Call == 0 {
		c.Timeouts.Call = defaultCallTimeout
	}
	if c.Timeouts.Write == 0 {
		c.Timeouts.Write = defaultWriteTimeout
	}
	c.Telemetry.ApplyDefaults()
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if !slices.Contains(Engines, c.Engine) {
		return errors.UnsupportedEngine(c.Engine)
	}
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := validation.Validate(c); err != nil {
		return err
	}

	v := validation.New().
		NonNegative("timeouts.connect", c.Timeouts.Connect).
		NonNegative("timeouts.read", c.Timeouts.Read).
		NonNegative("timeouts.call", c.Timeouts.Call).
		NonNegative("timeouts.write", c.Timeouts.Write)
	if c.Proxy != nil {
		if _, err := c.Proxy.URL(); err != nil {
			v.AddError("proxy.address", err.Error())
		}
	}
	if err := v.Err(); err != nil {
		return err
	}

	if err := c.TLS.Validate(); err != nil {
		return errors.InvalidConfig("tls", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return errors.InvalidConfig(fmt.Sprintf("telemetry: %v", err), err)
	}
	return nil
}

// CallDefaults returns the per-call defaults this configuration implies.
func (c *Config) CallDefaults() httpclient.CallParameters {
	return httpclient.CallParameters{
		Timeouts: c.Timeouts,
		Proxy:    c.Proxy,
	}
}

// Load reads the configuration for serviceName, applies defaults and
// validates it.
func Load(serviceName string, opts ...config.LoaderOption) (Config, error) {
	var cfg Config
	if err := config.LoadConfig(serviceName, &cfg, opts...); err != nil {
		return Config{}, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
