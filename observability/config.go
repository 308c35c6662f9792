package observability

import (
	"fmt"
	"time"
)

// Config is the telemetry section of the client configuration.
type Config struct {
	// Enabled turns on the OTLP trace and metric exporters.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Endpoint is the OTLP HTTP endpoint host:port.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure" mapstructure:"insecure"`
	// SampleRate is the trace sampling ratio. Negative samples nothing.
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
	// MetricsInterval is the metric export interval.
	MetricsInterval time.Duration `yaml:"metrics_interval" mapstructure:"metrics_interval"`
	// Prometheus records call metrics into a Prometheus registry as well.
	Prometheus bool `yaml:"prometheus" mapstructure:"prometheus"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.MetricsInterval == 0 {
		c.MetricsInterval = 15 * time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.SampleRate > 1 {
		return fmt.Errorf("sample_rate must not exceed 1 (got: %v)", c.SampleRate)
	}
	if c.MetricsInterval < 0 {
		return fmt.Errorf("metrics_interval must not be negative")
	}
	return nil
}
