package observability

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/anyhttp/httpclient"
	"github.com/kbukum/anyhttp/httpclient/dispatch"
	"github.com/kbukum/anyhttp/httpclient/stream"
)

// fakeClient answers every call with the configured status or error.
type fakeClient struct {
	status int
	body   string
	err    error

	mu      sync.Mutex
	callIDs []string
}

func (f *fakeClient) Engine() string { return "fake" }

func (f *fakeClient) seen(ctx context.Context) {
	f.mu.Lock()
	f.callIDs = append(f.callIDs, dispatch.CallID(ctx))
	f.mu.Unlock()
}

func (f *fakeClient) Send(ctx context.Context, req httpclient.Request, _ httpclient.CallParameters) (*httpclient.Response, error) {
	f.seen(ctx)
	if f.err != nil {
		return nil, f.err
	}
	return &httpclient.Response{StatusCode: f.status, Body: []byte(f.body)}, nil
}

func (f *fakeClient) SendStream(ctx context.Context, req httpclient.Request, _ httpclient.CallParameters) (httpclient.StreamResponse, error) {
	f.seen(ctx)
	if f.err != nil {
		return nil, f.err
	}
	return stream.New(stream.Config{URL: req.URL, StatusCode: f.status, Body: strings.NewReader(f.body)}), nil
}

func (f *fakeClient) SendListener(ctx context.Context, req httpclient.Request, params httpclient.CallParameters, l httpclient.Listener) error {
	resp, err := f.SendStream(ctx, req, params)
	if err != nil {
		return err
	}
	defer resp.Close()
	return stream.Drain(resp, l)
}

func newTracer() (*tracetest.InMemoryExporter, trace.Tracer) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	return exp, tp.Tracer("test")
}

func attr(span tracetest.SpanStub, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

// recorder captures CallFinished arguments.
type recorder struct {
	mu       sync.Mutex
	started  int
	statuses []int
	kinds    []string
}

func (r *recorder) CallStarted(context.Context, string, string) {
	r.mu.Lock()
	r.started++
	r.mu.Unlock()
}

func (r *recorder) CallFinished(_ context.Context, _, _ string, status int, kind string, _ time.Duration) {
	r.mu.Lock()
	r.statuses = append(r.statuses, status)
	r.kinds = append(r.kinds, kind)
	r.mu.Unlock()
}

func TestInstrument_SendSpan(t *testing.T) {
	exp, tracer := newTracer()
	next := &fakeClient{status: 200, body: "hello"}
	rec := &recorder{}
	c := Instrument(next, WithTracer(tracer), WithRecorder(rec))

	if c.Engine() != "fake" {
		t.Errorf("expected engine fake, got %q", c.Engine())
	}

	req := httpclient.Request{URL: "http://example.com/a"}
	resp, err := c.Send(context.Background(), req, httpclient.CallParameters{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != "hello" {
		t.Errorf("expected body hello, got %q", resp.Body)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name != "http.client GET" {
		t.Errorf("expected span name 'http.client GET', got %q", span.Name)
	}
	if span.SpanKind != trace.SpanKindClient {
		t.Errorf("expected client span, got %v", span.SpanKind)
	}
	if v, _ := attr(span, AttrStatusCode); v.AsInt64() != 200 {
		t.Errorf("expected status attribute 200, got %v", v.AsInt64())
	}
	if v, _ := attr(span, AttrEngine); v.AsString() != "fake" {
		t.Errorf("expected engine attribute, got %q", v.AsString())
	}
	id, _ := attr(span, AttrCallID)
	if id.AsString() == "" || id.AsString() != next.callIDs[0] {
		t.Errorf("expected span call id to match the one passed down, got %q vs %v", id.AsString(), next.callIDs)
	}
	if rec.started != 1 || len(rec.statuses) != 1 || rec.statuses[0] != 200 || rec.kinds[0] != "" {
		t.Errorf("unexpected recording: %+v", rec)
	}
}

func TestInstrument_KeepsCallerCallID(t *testing.T) {
	exp, tracer := newTracer()
	next := &fakeClient{status: 204}
	c := Instrument(next, WithTracer(tracer))

	ctx := dispatch.WithCallID(context.Background(), "call-7")
	if _, err := c.Send(ctx, httpclient.Request{URL: "http://x"}, httpclient.CallParameters{}); err != nil {
		t.Fatal(err)
	}
	if next.callIDs[0] != "call-7" {
		t.Errorf("expected call-7 downstream, got %q", next.callIDs[0])
	}
	if v, _ := attr(exp.GetSpans()[0], AttrCallID); v.AsString() != "call-7" {
		t.Errorf("expected call-7 on span, got %q", v.AsString())
	}
}

func TestInstrument_ErrorKind(t *testing.T) {
	exp, tracer := newTracer()
	failure := httpclient.NewConnectError("http://x", "Bad ssl certificate at http://x", nil)
	rec := &recorder{}
	c := Instrument(&fakeClient{err: failure}, WithTracer(tracer), WithRecorder(rec))

	_, err := c.Send(context.Background(), httpclient.Request{URL: "http://x"}, httpclient.CallParameters{})
	if !errors.Is(err, failure) {
		t.Fatalf("expected error to pass through, got %v", err)
	}

	span := exp.GetSpans()[0]
	if span.Status.Code != codes.Error {
		t.Errorf("expected error status, got %v", span.Status.Code)
	}
	if v, _ := attr(span, AttrErrorType); v.AsString() != "connect" {
		t.Errorf("expected error.type connect, got %q", v.AsString())
	}
	if _, ok := attr(span, AttrStatusCode); ok {
		t.Error("expected no status attribute on a failed call")
	}
	if rec.kinds[0] != "connect" || rec.statuses[0] != 0 {
		t.Errorf("unexpected recording: %+v", rec)
	}
}

func TestInstrument_StreamEndsOnClose(t *testing.T) {
	exp, tracer := newTracer()
	rec := &recorder{}
	c := Instrument(&fakeClient{status: 200, body: "streamed"}, WithTracer(tracer), WithRecorder(rec))

	resp, err := c.SendStream(context.Background(), httpclient.Request{URL: "http://x"}, httpclient.CallParameters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(exp.GetSpans()) != 0 {
		t.Fatal("expected span to stay open until Close")
	}
	data, err := io.ReadAll(resp)
	if err != nil || string(data) != "streamed" {
		t.Fatalf("unexpected read: %q, %v", data, err)
	}
	if err := resp.Close(); err != nil {
		t.Fatal(err)
	}
	_ = resp.Close()

	if len(exp.GetSpans()) != 1 {
		t.Fatalf("expected exactly 1 span after Close, got %d", len(exp.GetSpans()))
	}
	if len(rec.statuses) != 1 || rec.statuses[0] != 200 {
		t.Errorf("expected one finished call with 200, got %v", rec.statuses)
	}
}

func TestInstrument_ListenerStatus(t *testing.T) {
	exp, tracer := newTracer()
	c := Instrument(&fakeClient{status: 404, body: "nope"}, WithTracer(tracer))

	var got strings.Builder
	err := c.SendListener(context.Background(), httpclient.Request{URL: "http://x"}, httpclient.CallParameters{},
		httpclient.ListenerFuncs{Bytes: func(p []byte) { got.Write(p) }})
	if err != nil {
		t.Fatal(err)
	}
	if got.String() != "nope" {
		t.Errorf("expected body nope, got %q", got.String())
	}
	if v, _ := attr(exp.GetSpans()[0], AttrStatusCode); v.AsInt64() != 404 {
		t.Errorf("expected status 404 on span, got %d", v.AsInt64())
	}
}

func TestInstrument_NoTracer(t *testing.T) {
	c := Instrument(&fakeClient{status: 200})
	if _, err := c.Send(context.Background(), httpclient.Request{URL: "http://x"}, httpclient.CallParameters{}); err != nil {
		t.Fatal(err)
	}
	if c.Unwrap() == nil {
		t.Error("expected wrapped client")
	}
}

func TestMetrics_Recorded(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	m.CallStarted(ctx, "nethttp", "GET")
	m.CallFinished(ctx, "nethttp", "GET", 200, "", 10*time.Millisecond)
	m.CallStarted(ctx, "nethttp", "GET")
	m.CallFinished(ctx, "nethttp", "GET", 0, "read", time.Millisecond)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatal(err)
	}
	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			if data, ok := metric.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[metric.Name] += dp.Value
				}
			}
		}
	}
	if sums["http.client.calls"] != 2 {
		t.Errorf("expected 2 calls, got %d", sums["http.client.calls"])
	}
	if sums["http.client.errors"] != 1 {
		t.Errorf("expected 1 error, got %d", sums["http.client.errors"])
	}
	if sums["http.client.active"] != 0 {
		t.Errorf("expected no active calls, got %d", sums["http.client.active"])
	}
}

func TestPromRecorder_Gather(t *testing.T) {
	r := NewPromRecorder()
	ctx := context.Background()
	r.CallStarted(ctx, "wire", "GET")
	r.CallFinished(ctx, "wire", "BREW", 503, "", 5*time.Millisecond)
	r.CallStarted(ctx, "wire", "GET")
	r.CallFinished(ctx, "wire", "GET", 0, "proxy_auth", 5*time.Millisecond)

	families, err := r.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
		if f.GetName() != "anyhttp_client_calls_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["method"] == "other" && labels["status"] != "5xx" {
				t.Errorf("expected 5xx for the unknown method call, got %v", labels)
			}
		}
	}
	for _, name := range []string{
		"anyhttp_client_calls_total",
		"anyhttp_client_errors_total",
		"anyhttp_client_call_duration_seconds",
		"anyhttp_client_calls_in_flight",
	} {
		if !found[name] {
			t.Errorf("expected %s in gathered metrics", name)
		}
	}

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `anyhttp_client_errors_total{engine="wire",kind="proxy_auth"} 1`) {
		t.Errorf("expected error counter in exposition, got:\n%s", rec.Body.String())
	}
}

func TestNormalizeMethod(t *testing.T) {
	tests := []struct {
		method string
		want   string
	}{
		{"GET", "GET"},
		{"OPTIONS", "OPTIONS"},
		{"get", "other"},
		{"", "other"},
	}
	for _, tt := range tests {
		if got := NormalizeMethod(tt.method); got != tt.want {
			t.Errorf("NormalizeMethod(%q) = %q, want %q", tt.method, got, tt.want)
		}
	}
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{0: "none", 101: "1xx", 200: "2xx", 407: "4xx", 599: "5xx", 600: "none"}
	for status, want := range tests {
		if got := StatusClass(status); got != want {
			t.Errorf("StatusClass(%d) = %q, want %q", status, got, want)
		}
	}
}

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Endpoint != "localhost:4318" || cfg.SampleRate != 1.0 || cfg.MetricsInterval != 15*time.Second {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	cfg.SampleRate = 2
	if err := cfg.Validate(); err == nil {
		t.Error("expected sample rate above 1 to fail")
	}
}

func TestInit_Disabled(t *testing.T) {
	p, err := Init(context.Background(), "svc", "test", Config{Prometheus: true}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.Tracer != nil || p.Meter != nil {
		t.Error("expected no exporters when disabled")
	}
	if p.Prom == nil {
		t.Error("expected prometheus recorder")
	}
	opts, err := p.InstrumentOptions()
	if err != nil || len(opts) != 1 {
		t.Errorf("expected one option, got %d, %v", len(opts), err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("unexpected shutdown error: %v", err)
	}
}

func TestInit_Enabled(t *testing.T) {
	ctx := context.Background()
	p, err := Init(ctx, "svc", "test", Config{Enabled: true, Insecure: true, Endpoint: "127.0.0.1:1"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.Tracer == nil || p.Meter == nil {
		t.Fatal("expected exporters when enabled")
	}
	opts, err := p.InstrumentOptions()
	if err != nil || len(opts) != 2 {
		t.Errorf("expected tracer and meter options, got %d, %v", len(opts), err)
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_ = p.Shutdown(shutdownCtx)
}
