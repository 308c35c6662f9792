package observability

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/kbukum/anyhttp/httpclient"
	"github.com/kbukum/anyhttp/httpclient/dispatch"
)

// Recorder receives call measurements.
type Recorder interface {
	CallStarted(ctx context.Context, engine, method string)
	// CallFinished is called once per call. status is zero when no
	// response was read and kind is empty on success.
	CallFinished(ctx context.Context, engine, method string, status int, kind string, d time.Duration)
}

// Recorders fans out to several recorders.
type Recorders []Recorder

func (rs Recorders) CallStarted(ctx context.Context, engine, method string) {
	for _, r := range rs {
		r.CallStarted(ctx, engine, method)
	}
}

func (rs Recorders) CallFinished(ctx context.Context, engine, method string, status int, kind string, d time.Duration) {
	for _, r := range rs {
		r.CallFinished(ctx, engine, method, status, kind, d)
	}
}

// InstrumentOption configures Instrument.
type InstrumentOption func(*Client)

// WithTracer sets the tracer spans are started on.
func WithTracer(t trace.Tracer) InstrumentOption {
	return func(c *Client) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithRecorder adds a metrics recorder.
func WithRecorder(r Recorder) InstrumentOption {
	return func(c *Client) {
		if r != nil {
			c.recorders = append(c.recorders, r)
		}
	}
}

// Client decorates an httpclient.Client with a span and metrics per call.
type Client struct {
	next      httpclient.Client
	engine    string
	tracer    trace.Tracer
	recorders Recorders
}

var (
	_ httpclient.Client = (*Client)(nil)
	_ httpclient.Named  = (*Client)(nil)
)

// Instrument wraps next. Without WithTracer spans go to a no-op tracer.
func Instrument(next httpclient.Client, opts ...InstrumentOption) *Client {
	c := &Client{
		next:   next,
		engine: "unknown",
		tracer: noop.NewTracerProvider().Tracer(InstrumentationName),
	}
	if n, ok := next.(httpclient.Named); ok {
		c.engine = n.Engine()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Engine implements httpclient.Named.
func (c *Client) Engine() string { return c.engine }

// Unwrap returns the decorated client.
func (c *Client) Unwrap() httpclient.Client { return c.next }

// Send implements httpclient.Client.
func (c *Client) Send(ctx context.Context, req httpclient.Request, params httpclient.CallParameters) (*httpclient.Response, error) {
	ctx, obs := c.start(ctx, req, params)
	resp, err := c.next.Send(ctx, req, params)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	obs.finish(status, err)
	return resp, err
}

// SendStream implements httpclient.Client. The span ends when the stream is
// closed.
func (c *Client) SendStream(ctx context.Context, req httpclient.Request, params httpclient.CallParameters) (httpclient.StreamResponse, error) {
	ctx, obs := c.start(ctx, req, params)
	resp, err := c.next.SendStream(ctx, req, params)
	if err != nil {
		obs.finish(0, err)
		return nil, err
	}
	return &observedStream{StreamResponse: resp, obs: obs}, nil
}

// SendListener implements httpclient.Client.
func (c *Client) SendListener(ctx context.Context, req httpclient.Request, params httpclient.CallParameters, l httpclient.Listener) error {
	ctx, obs := c.start(ctx, req, params)
	sl := &statusListener{Listener: l}
	err := c.next.SendListener(ctx, req, params, sl)
	obs.finish(sl.status, err)
	return err
}

type observation struct {
	ctx     context.Context
	span    trace.Span
	client  *Client
	method  string
	started time.Time
	once    sync.Once
}

func (c *Client) start(ctx context.Context, req httpclient.Request, params httpclient.CallParameters) (context.Context, *observation) {
	id := dispatch.CallID(ctx)
	if id == "" {
		id = uuid.NewString()
		ctx = dispatch.WithCallID(ctx, id)
	}

	attrs := []attribute.KeyValue{
		attribute.String(AttrEngine, c.engine),
		attribute.String(AttrMethod, req.Method.String()),
		attribute.String(AttrURL, req.URL),
		attribute.String(AttrCallID, id),
	}
	if params.Proxy != nil {
		attrs = append(attrs, attribute.String(AttrProxy, params.Proxy.String()))
	}
	ctx, span := c.tracer.Start(ctx, SpanPrefix+req.Method.String(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	c.recorders.CallStarted(ctx, c.engine, req.Method.String())

	return ctx, &observation{
		ctx:     ctx,
		span:    span,
		client:  c,
		method:  req.Method.String(),
		started: time.Now(),
	}
}

func (o *observation) finish(status int, err error) {
	o.once.Do(func() {
		kind := ""
		if status > 0 {
			o.span.SetAttributes(attribute.Int(AttrStatusCode, status))
		}
		if err != nil {
			if k, ok := httpclient.KindOf(err); ok {
				kind = k.String()
			} else {
				kind = "unknown"
			}
			o.span.SetAttributes(attribute.String(AttrErrorType, kind))
			o.span.RecordError(err)
			o.span.SetStatus(codes.Error, err.Error())
		} else if status >= 500 {
			o.span.SetStatus(codes.Error, "")
		}
		o.client.recorders.CallFinished(o.ctx, o.client.engine, o.method, status, kind, time.Since(o.started))
		o.span.End()
	})
}

// observedStream ends the span on Close. A read failure is reported as the
// call's error.
type observedStream struct {
	httpclient.StreamResponse
	obs *observation

	mu      sync.Mutex
	readErr error
}

func (s *observedStream) Read(p []byte) (int, error) {
	n, err := s.StreamResponse.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		s.mu.Lock()
		if s.readErr == nil {
			s.readErr = err
		}
		s.mu.Unlock()
	}
	return n, err
}

func (s *observedStream) Close() error {
	err := s.StreamResponse.Close()
	s.mu.Lock()
	readErr := s.readErr
	s.mu.Unlock()
	s.obs.finish(s.StreamResponse.StatusCode(), readErr)
	return err
}

type statusListener struct {
	httpclient.Listener
	status int
}

func (l *statusListener) OnStatus(code int, reason string) {
	l.status = code
	l.Listener.OnStatus(code, reason)
}
