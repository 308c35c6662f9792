// Package dispatch holds the call sequence shared by every engine.
//
// An engine only implements Opener: establish the transport, write the
// request and return once the status line and headers are read. Dispatcher
// does the rest: defaults, call deadline, proxy credential scope, body
// acquisition, error classification and logging.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kbukum/anyhttp/httpclient"
	"github.com/kbukum/anyhttp/httpclient/body"
	"github.com/kbukum/anyhttp/httpclient/classify"
	"github.com/kbukum/anyhttp/httpclient/proxyauth"
	"github.com/kbukum/anyhttp/httpclient/stream"
	"github.com/kbukum/anyhttp/logger"
)

// Exchange is one request whose response head has been received.
type Exchange interface {
	StatusCode() int
	ReasonPhrase() string
	Headers() httpclient.Headers
	// ContentLength is the declared body length, -1 when unknown.
	ContentLength() int64
	// Body is the success-path body stream.
	Body() io.Reader
	// ErrorBody is the body stream for statuses >= 400. Engines without a
	// separate error stream return Body().
	ErrorBody() io.Reader
	// Close releases the transport.
	Close() error
}

// Opener is implemented by each engine.
type Opener interface {
	// Open sends req and reads the response head. Engines advance tracker
	// through the write and read phases as they go.
	Open(ctx context.Context, req httpclient.Request, params httpclient.CallParameters, tracker *classify.Tracker) (Exchange, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, req httpclient.Request, params httpclient.CallParameters, tracker *classify.Tracker) (Exchange, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context, req httpclient.Request, params httpclient.CallParameters, tracker *classify.Tracker) (Exchange, error) {
	return f(ctx, req, params, tracker)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// WithDefaults sets parameters applied to every call that leaves them unset.
func WithDefaults(p httpclient.CallParameters) Option {
	return func(d *Dispatcher) { d.defaults = p }
}

// Dispatcher implements httpclient.Client on top of an Opener.
type Dispatcher struct {
	engine   string
	opener   Opener
	log      *logger.Logger
	defaults httpclient.CallParameters
}

var (
	_ httpclient.Client = (*Dispatcher)(nil)
	_ httpclient.Named  = (*Dispatcher)(nil)
)

// New creates a Dispatcher for the named engine.
func New(engine string, opener Opener, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		engine: engine,
		opener: opener,
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.WithComponent("httpclient").WithFields(logger.Fields(logger.FieldEngine, engine))
	return d
}

// Engine returns the engine name.
func (d *Dispatcher) Engine() string { return d.engine }

// Defaults returns the parameters applied to calls that leave them unset.
func (d *Dispatcher) Defaults() httpclient.CallParameters { return d.defaults }

// Send performs the call and returns the fully read response.
func (d *Dispatcher) Send(ctx context.Context, req httpclient.Request, params httpclient.CallParameters) (*httpclient.Response, error) {
	c, err := d.begin(ctx, req, params)
	if err != nil {
		return nil, err
	}
	defer c.cancel()

	ex, err := d.open(c)
	if err != nil {
		return nil, d.fail(c, err)
	}
	defer func() { _ = ex.Close() }()

	plan := c.plan(ex)
	data, err := body.ReadAll(plan, source(ex))
	if err != nil {
		return nil, d.fail(c, err)
	}

	resp := &httpclient.Response{
		StatusCode:   ex.StatusCode(),
		ReasonPhrase: ex.ReasonPhrase(),
		Headers:      ex.Headers(),
		Body:         data,
	}
	d.done(c, resp.StatusCode, plan, int64(len(data)))
	return resp, nil
}

// SendStream performs the call and returns once the response head is read.
// The call deadline stays in force until the result is closed.
func (d *Dispatcher) SendStream(ctx context.Context, req httpclient.Request, params httpclient.CallParameters) (httpclient.StreamResponse, error) {
	c, err := d.begin(ctx, req, params)
	if err != nil {
		return nil, err
	}

	ex, err := d.open(c)
	if err != nil {
		// Classify before cancel; the call context must still show the
		// caller's state.
		err = d.fail(c, err)
		c.cancel()
		return nil, err
	}

	plan := c.plan(ex)
	status := ex.StatusCode()
	return stream.New(stream.Config{
		URL:          req.URL,
		StatusCode:   status,
		ReasonPhrase: ex.ReasonPhrase(),
		Headers:      ex.Headers(),
		Body:         body.NewReader(plan, source(ex)),
		Closer:       ex,
		Cancel:       c.cancel,
		Classify:     c.classify,
		OnClose:      func() { d.done(c, status, plan, -1) },
	}), nil
}

// SendListener performs the call and pushes the response to l.
func (d *Dispatcher) SendListener(ctx context.Context, req httpclient.Request, params httpclient.CallParameters, l httpclient.Listener) error {
	resp, err := d.SendStream(ctx, req, params)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Close() }()
	return stream.Drain(resp, l)
}

type call struct {
	id      string
	req     httpclient.Request
	params  httpclient.CallParameters
	tracker *classify.Tracker
	ctx     context.Context
	cancel  context.CancelFunc
}

func (d *Dispatcher) begin(ctx context.Context, req httpclient.Request, params httpclient.CallParameters) (*call, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	c := &call{
		id:      CallID(ctx),
		req:     req,
		params:  params.WithDefaults(d.defaults),
		tracker: classify.NewTracker(),
	}
	if c.id == "" {
		c.id = uuid.NewString()
		ctx = WithCallID(ctx, c.id)
	}
	if err := req.Validate(); err != nil {
		return nil, d.fail(c, invalidRequest(req, err))
	}
	if c.params.Timeouts.Call > 0 {
		c.ctx, c.cancel = context.WithTimeout(ctx, c.params.Timeouts.Call)
	} else {
		c.ctx, c.cancel = context.WithCancel(ctx)
	}
	return c, nil
}

// open runs the engine inside the call's credential scope. The scope is
// cleared as soon as the response head is in, on every path.
func (d *Dispatcher) open(c *call) (Exchange, error) {
	ctx := c.ctx
	if p := c.params.Proxy; p.HasCredentials() {
		var clear func()
		ctx, clear = proxyauth.Install(ctx, proxyauth.Credentials{Username: p.Username, Password: p.Password})
		defer clear()
	}

	ex, err := d.opener.Open(ctx, c.req, c.params, c.tracker)
	if err != nil {
		if ex != nil {
			_ = ex.Close()
		}
		return nil, err
	}
	c.tracker.Enter(classify.PhaseRead)
	return ex, nil
}

func (c *call) plan(ex Exchange) body.Plan {
	return body.Decide(c.req.Method, ex.StatusCode(), ex.ContentLength(), ex.Headers())
}

func (c *call) classify(err error) *httpclient.Error {
	return classify.Classify(classify.Input{
		URL:      c.req.URL,
		Proxy:    c.params.Proxy.String(),
		Phase:    c.tracker.Phase(),
		Elapsed:  c.tracker.Elapsed(),
		Timeouts: c.params.Timeouts,
		CtxErr:   c.ctxErr(),
	}, err)
}

func (c *call) ctxErr() error {
	if c.ctx == nil {
		return nil
	}
	return c.ctx.Err()
}

func (d *Dispatcher) fail(c *call, err error) error {
	out := c.classify(err)
	if d.log.Enabled(zerolog.WarnLevel) {
		d.log.Warn("http call failed", logger.Fields(
			logger.FieldCallID, c.id,
			logger.FieldMethod, c.req.Method.String(),
			logger.FieldURL, c.req.URL,
			logger.FieldErrorKind, out.Kind.String(),
			logger.FieldError, out.Error(),
			logger.FieldDuration, out.Elapsed.Milliseconds(),
		))
	}
	return out
}

func (d *Dispatcher) done(c *call, status int, plan body.Plan, size int64) {
	if !d.log.Enabled(zerolog.DebugLevel) {
		return
	}
	fields := logger.Fields(
		logger.FieldCallID, c.id,
		logger.FieldMethod, c.req.Method.String(),
		logger.FieldURL, c.req.URL,
		logger.FieldStatus, status,
		logger.FieldDuration, c.tracker.Elapsed().Milliseconds(),
		"body_mode", plan.Mode.String(),
	)
	if size >= 0 {
		fields["body_bytes"] = size
	}
	if p := c.params.Proxy; p != nil {
		fields[logger.FieldProxy] = p.String()
	}
	d.log.Debug("http call completed", fields)
}

// source picks the stream the body is read from.
func source(ex Exchange) io.Reader {
	if ex.StatusCode() >= 400 {
		if r := ex.ErrorBody(); r != nil {
			return r
		}
	}
	if r := ex.Body(); r != nil {
		return r
	}
	return strings.NewReader("")
}

func invalidRequest(req httpclient.Request, err error) error {
	if !req.Method.Valid() {
		return httpclient.NewConnectError(req.URL,
			fmt.Sprintf("Unsupported method %s for %s", req.Method, req.URL), err)
	}
	return &classify.InvalidURL{URL: req.URL, Err: err}
}

type callIDKey struct{}

// WithCallID attaches a call identifier used in logs and spans.
func WithCallID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callIDKey{}, id)
}

// CallID returns the identifier attached by WithCallID, or "".
func CallID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(callIDKey{}).(string)
	return id
}
