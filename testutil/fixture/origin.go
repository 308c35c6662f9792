// Package fixture provides servers for exercising client engines: an origin
// with scripted body framing, a forward proxy that checks credentials, and
// a raw server that records request bytes exactly as received. Each one is
// a testutil.TestComponent.
package fixture

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/anyhttp/component"
	"github.com/kbukum/anyhttp/testutil"
)

// Recorded is a request seen by a fixture.
type Recorded struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// OriginOption configures an Origin.
type OriginOption func(*Origin)

// WithTLS serves over TLS with cfg.
func WithTLS(cfg *tls.Config) OriginOption {
	return func(o *Origin) { o.tls = cfg }
}

// WithName sets the component name.
func WithName(name string) OriginOption {
	return func(o *Origin) { o.name = name }
}

// Origin is an HTTP server with one route per body framing:
//
//	GET|HEAD /fixed/:text   text with Content-Length
//	GET /chunked?parts=a,b  each part flushed as its own chunk
//	GET /missing            404 with a chunked 10 byte body
//	GET /status/:code       the given status with body "status <code>"
//	GET /unframed           body without length or chunking, then close
//	GET /short              Content-Length 5 but only 3 bytes, then close
//	GET /big?size=n         n bytes of 'x' with Content-Length
//	GET /slow?delay=d       waits d before answering "ok"
//	GET /drip?delay=d       sends "a", waits d, sends "b"
//	ANY /echo               "<method>\n<body>"
type Origin struct {
	name string
	tls  *tls.Config

	mu       sync.Mutex
	srv      *httptest.Server
	requests []Recorded
}

var (
	_ testutil.TestComponent = (*Origin)(nil)
	_ component.Describable  = (*Origin)(nil)
)

// NewOrigin creates an origin. It listens once started.
func NewOrigin(opts ...OriginOption) *Origin {
	o := &Origin{name: "origin"}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Origin) Name() string { return o.name }

// Start listens on a loopback port.
func (o *Origin) Start(_ context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.srv != nil {
		return nil
	}
	srv := httptest.NewUnstartedServer(o.routes())
	if o.tls != nil {
		srv.TLS = o.tls
		srv.StartTLS()
	} else {
		srv.Start()
	}
	o.srv = srv
	return nil
}

// Stop closes the listener and open connections.
func (o *Origin) Stop(_ context.Context) error {
	o.mu.Lock()
	srv := o.srv
	o.srv = nil
	o.mu.Unlock()
	if srv != nil {
		srv.CloseClientConnections()
		srv.Close()
	}
	return nil
}

func (o *Origin) Health(_ context.Context) component.Health {
	if o.URL() == "" {
		return component.Health{Name: o.name, Status: component.StatusUnhealthy, Message: "not started"}
	}
	return component.Health{Name: o.name, Status: component.StatusHealthy}
}

// Reset forgets recorded requests.
func (o *Origin) Reset(_ context.Context) error {
	o.mu.Lock()
	o.requests = nil
	o.mu.Unlock()
	return nil
}

func (o *Origin) Describe() component.Description {
	return component.Description{Name: o.name, Type: "fixture", Details: o.URL()}
}

// URL returns the base URL, empty before Start.
func (o *Origin) URL() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.srv == nil {
		return ""
	}
	return o.srv.URL
}

// Requests returns the requests seen since Start or Reset.
func (o *Origin) Requests() []Recorded {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Recorded, len(o.requests))
	copy(out, o.requests)
	return out
}

func (o *Origin) record(c *gin.Context) {
	var body []byte
	if c.Request.Body != nil {
		body, _ = io.ReadAll(c.Request.Body)
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
	}
	o.mu.Lock()
	o.requests = append(o.requests, Recorded{
		Method: c.Request.Method,
		Path:   c.Request.URL.Path,
		Header: c.Request.Header.Clone(),
		Body:   body,
	})
	o.mu.Unlock()
	c.Next()
}

func (o *Origin) routes() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(o.record)

	fixed := func(c *gin.Context) {
		text := c.Param("text")
		c.Header("Content-Length", strconv.Itoa(len(text)))
		c.Data(http.StatusOK, "text/plain", []byte(text))
	}
	r.GET("/fixed/:text", fixed)
	r.HEAD("/fixed/:text", fixed)

	r.GET("/chunked", func(c *gin.Context) {
		c.Status(http.StatusOK)
		for _, part := range strings.Split(c.Query("parts"), ",") {
			_, _ = c.Writer.WriteString(part)
			c.Writer.Flush()
		}
	})

	r.GET("/missing", func(c *gin.Context) {
		c.Status(http.StatusNotFound)
		_, _ = c.Writer.WriteString("not ")
		c.Writer.Flush()
		_, _ = c.Writer.WriteString("found!")
		c.Writer.Flush()
	})

	r.GET("/status/:code", func(c *gin.Context) {
		code, err := strconv.Atoi(c.Param("code"))
		if err != nil {
			c.String(http.StatusBadRequest, "bad status %q", c.Param("code"))
			return
		}
		c.Data(code, "text/plain", []byte("status "+c.Param("code")))
	})

	r.GET("/unframed", func(c *gin.Context) {
		raw(c, "HTTP/1.1 200 OK\r\nConnection: close\r\n\r\nunframed body")
	})

	r.GET("/short", func(c *gin.Context) {
		raw(c, "HTTP/1.1 200 OK\r\nContent-Length: 5\r\nConnection: close\r\n\r\nhel")
	})

	r.GET("/big", func(c *gin.Context) {
		size, _ := strconv.Atoi(c.Query("size"))
		c.Header("Content-Length", strconv.Itoa(size))
		c.Data(http.StatusOK, "application/octet-stream", bytes.Repeat([]byte("x"), size))
	})

	r.GET("/slow", func(c *gin.Context) {
		if !wait(c, c.Query("delay")) {
			return
		}
		c.String(http.StatusOK, "ok")
	})

	r.GET("/drip", func(c *gin.Context) {
		c.Status(http.StatusOK)
		_, _ = c.Writer.WriteString("a")
		c.Writer.Flush()
		if !wait(c, c.Query("delay")) {
			return
		}
		_, _ = c.Writer.WriteString("b")
	})

	r.Any("/echo", func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusOK, "%s\n%s", c.Request.Method, body)
	})

	return r
}

// raw writes resp directly to the connection and closes it.
func raw(c *gin.Context, resp string) {
	conn, buf, err := c.Writer.Hijack()
	if err != nil {
		c.String(http.StatusInternalServerError, "hijack: %v", err)
		return
	}
	defer conn.Close()
	_, _ = buf.WriteString(resp)
	_ = buf.Flush()
}

// wait sleeps for the duration in s unless the client goes away first.
func wait(c *gin.Context, s string) bool {
	d, err := time.ParseDuration(s)
	if err != nil {
		c.String(http.StatusBadRequest, "%v", fmt.Errorf("bad delay: %w", err))
		return false
	}
	select {
	case <-time.After(d):
		return true
	case <-c.Request.Context().Done():
		return false
	}
}
