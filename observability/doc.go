// Package observability provides OpenTelemetry tracing and metrics plus a
// Prometheus recorder for httpclient calls.
//
// Setup:
//
//	providers, err := observability.Init(ctx, "my-service", "prod", cfg.Telemetry, log)
//	defer providers.Shutdown(ctx)
//
// Instrumenting a client:
//
//	opts, err := providers.InstrumentOptions()
//	client := observability.Instrument(nethttp.New(pool), opts...)
//
// Every call gets a client span carrying the engine, method, URL and call
// id, and is recorded by each configured Recorder. Stream spans end when
// the stream is closed.
package observability
