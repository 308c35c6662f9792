package observability

import (
	"context"
	"errors"
	"fmt"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/anyhttp/logger"
)

// Providers holds the telemetry set up by Init.
type Providers struct {
	Tracer *sdktrace.TracerProvider
	Meter  *sdkmetric.MeterProvider
	Prom   *PromRecorder
}

// Init sets up telemetry for a client service. With cfg.Enabled false no
// exporter is created; the Prometheus recorder is created when
// cfg.Prometheus is set regardless.
func Init(ctx context.Context, service, environment string, cfg Config, log *logger.Logger) (*Providers, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Providers{}
	if cfg.Prometheus {
		p.Prom = NewPromRecorder()
	}
	if !cfg.Enabled {
		return p, nil
	}

	tc := DefaultTracerConfig(service)
	tc.Environment = environment
	tc.Endpoint = cfg.Endpoint
	tc.Insecure = cfg.Insecure
	tc.SampleRate = cfg.SampleRate
	tp, err := InitTracer(ctx, tc, log)
	if err != nil {
		return nil, err
	}
	p.Tracer = tp

	mc := DefaultMeterConfig(service)
	mc.Environment = environment
	mc.Endpoint = cfg.Endpoint
	mc.Insecure = cfg.Insecure
	mc.Interval = cfg.MetricsInterval
	mp, err := InitMeter(ctx, mc, log)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	p.Meter = mp
	return p, nil
}

// InstrumentOptions returns the options wiring these providers into
// Instrument.
func (p *Providers) InstrumentOptions() ([]InstrumentOption, error) {
	var opts []InstrumentOption
	if p == nil {
		return opts, nil
	}
	if p.Tracer != nil {
		opts = append(opts, WithTracer(p.Tracer.Tracer(InstrumentationName)))
	}
	if p.Meter != nil {
		m, err := NewMetrics(p.Meter.Meter(InstrumentationName))
		if err != nil {
			return nil, fmt.Errorf("creating metrics: %w", err)
		}
		opts = append(opts, WithRecorder(m))
	}
	if p.Prom != nil {
		opts = append(opts, WithRecorder(p.Prom))
	}
	return opts, nil
}

// Shutdown flushes and stops the exporters.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.Tracer != nil {
		if err := p.Tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}
	if p.Meter != nil {
		if err := p.Meter.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}
