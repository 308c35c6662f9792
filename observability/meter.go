package observability

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/anyhttp/logger"
	"github.com/kbukum/anyhttp/version"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: version.Short(),
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider and installs it
// globally. The provider should be shut down on exit.
func InitMeter(ctx context.Context, config MeterConfig, log *logger.Logger) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(ctx, config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	if log != nil {
		log.Info("meter initialized", logger.Fields(
			"service", config.ServiceName,
			"endpoint", config.Endpoint,
			"interval", config.Interval.String(),
		))
	}
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics records client calls as OpenTelemetry instruments.
type Metrics struct {
	callTotal    metric.Int64Counter
	callDuration metric.Float64Histogram
	callActive   metric.Int64UpDownCounter
	errorTotal   metric.Int64Counter
}

var _ Recorder = (*Metrics)(nil)

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	callTotal, err := meter.Int64Counter("http.client.calls",
		metric.WithDescription("Completed client calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating http.client.calls counter: %w", err)
	}

	callDuration, err := meter.Float64Histogram("http.client.duration",
		metric.WithDescription("Duration of client calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating http.client.duration histogram: %w", err)
	}

	callActive, err := meter.Int64UpDownCounter("http.client.active",
		metric.WithDescription("Client calls in flight"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating http.client.active counter: %w", err)
	}

	errorTotal, err := meter.Int64Counter("http.client.errors",
		metric.WithDescription("Failed client calls by error kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating http.client.errors counter: %w", err)
	}

	return &Metrics{
		callTotal:    callTotal,
		callDuration: callDuration,
		callActive:   callActive,
		errorTotal:   errorTotal,
	}, nil
}

// CallStarted implements Recorder.
func (m *Metrics) CallStarted(ctx context.Context, engine, method string) {
	m.callActive.Add(ctx, 1, metric.WithAttributes(attribute.String("engine", engine)))
}

// CallFinished implements Recorder.
func (m *Metrics) CallFinished(ctx context.Context, engine, method string, status int, kind string, d time.Duration) {
	m.callActive.Add(ctx, -1, metric.WithAttributes(attribute.String("engine", engine)))

	attrs := []attribute.KeyValue{
		attribute.String("engine", engine),
		attribute.String("method", NormalizeMethod(method)),
		attribute.String("status", StatusClass(status)),
	}
	m.callTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.callDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attrs[:2]...))
	if kind != "" {
		m.errorTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("engine", engine),
			attribute.String("kind", kind),
		))
	}
}

// knownMethods bounds the method label.
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded method label. Unknown methods map to
// "other".
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// StatusClass returns "2xx" style labels, "none" when no status was read.
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return "none"
	}
	return strconv.Itoa(status/100) + "xx"
}
