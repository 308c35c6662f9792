// Package enginetest checks that an engine meets the httpclient contract.
// Each engine's tests call Run with a constructor; the suite starts its own
// fixture servers.
package enginetest

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/anyhttp/httpclient"
	"github.com/kbukum/anyhttp/security/tlstest"
	"github.com/kbukum/anyhttp/testutil"
	"github.com/kbukum/anyhttp/testutil/fixture"
)

// Factory builds the client under test.
type Factory func(t *testing.T) httpclient.Client

// Params are the call parameters used unless a case needs others.
var Params = httpclient.CallParameters{
	Timeouts: httpclient.TimeoutsMillis(2000, 2000, 5000, 2000),
}

// Run runs the suite.
func Run(t *testing.T, newClient Factory) {
	origin := fixture.NewOrigin()
	testutil.T(t).Setup(origin)

	t.Run("ExactResponse", func(t *testing.T) { testExactResponse(t, newClient(t)) })
	t.Run("BodyFraming", func(t *testing.T) { testBodyFraming(t, newClient(t), origin) })
	t.Run("ShortBody", func(t *testing.T) { testShortBody(t, newClient(t), origin) })
	t.Run("RequestBody", func(t *testing.T) { testRequestBody(t, newClient(t), origin) })
	t.Run("Stream", func(t *testing.T) { testStream(t, newClient(t), origin) })
	t.Run("Listener", func(t *testing.T) { testListener(t, newClient(t), origin) })
	t.Run("Timeouts", func(t *testing.T) { testTimeouts(t, newClient(t), origin) })
	t.Run("ConnectFailure", func(t *testing.T) { testConnectFailure(t, newClient(t)) })
	t.Run("StreamingFailures", func(t *testing.T) { testStreamingFailures(t, newClient(t), origin) })
	t.Run("InvalidRequest", func(t *testing.T) { testInvalidRequest(t, newClient(t)) })
	t.Run("TLS", func(t *testing.T) { testTLS(t, newClient(t)) })
	t.Run("Proxy", func(t *testing.T) { testProxy(t, newClient(t), origin) })
	t.Run("ProxyIsolation", func(t *testing.T) { testProxyIsolation(t, newClient(t), origin) })
}

func get(u string) httpclient.Request {
	return httpclient.NewRequest(httpclient.MethodGet, u)
}

func testExactResponse(t *testing.T, c httpclient.Client) {
	raw := fixture.NewRawServer("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello")
	testutil.T(t).Setup(raw)

	resp, err := c.Send(context.Background(), get(raw.URL()+"/"), Params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "HttpResponse(status=200 OK, headers=[Content-Length: 5], body=hello)"
	if resp.String() != want {
		t.Errorf("expected %q, got %q", want, resp.String())
	}
}

func testBodyFraming(t *testing.T, c httpclient.Client, origin *fixture.Origin) {
	tests := []struct {
		name   string
		method httpclient.Method
		path   string
		status int
		body   string
	}{
		{"fixed length", httpclient.MethodGet, "/fixed/hello", 200, "hello"},
		{"chunked", httpclient.MethodGet, "/chunked?parts=ab,cd,ef", 200, "abcdef"},
		{"chunked error stream", httpclient.MethodGet, "/missing", 404, "not found!"},
		{"unframed is empty", httpclient.MethodGet, "/unframed", 200, ""},
		{"head has no body", httpclient.MethodHead, "/fixed/hello", 200, ""},
		{"no content", httpclient.MethodGet, "/status/204", 204, ""},
		{"not modified", httpclient.MethodGet, "/status/304", 304, ""},
		{"server error", httpclient.MethodGet, "/status/503", 503, "status 503"},
		{"large fixed length", httpclient.MethodGet, "/big?size=10000", 200, strings.Repeat("x", 10000)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httpclient.NewRequest(tc.method, origin.URL()+tc.path)
			resp, err := c.Send(context.Background(), req, Params)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.StatusCode != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, resp.StatusCode)
			}
			if string(resp.Body) != tc.body {
				t.Errorf("expected body %q, got %q", tc.body, truncate(resp.Body))
			}
		})
	}

	resp, err := c.Send(context.Background(), get(origin.URL()+"/chunked?parts=x"), Params)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(strings.ToLower(resp.Headers.Value("Transfer-Encoding")), "chunked") {
		t.Errorf("expected Transfer-Encoding to be reported, got %v", resp.Headers)
	}
}

func testShortBody(t *testing.T, c httpclient.Client, origin *fixture.Origin) {
	resp, err := c.Send(context.Background(), get(origin.URL()+"/short"), Params)
	if resp != nil {
		t.Errorf("expected no partial response, got %s", resp)
	}
	if !httpclient.IsRead(err) {
		t.Fatalf("expected read error, got %v", err)
	}
	var e *httpclient.Error
	if !asError(err, &e) || e.Message != "Read only 3 but wanted 5" {
		t.Errorf("unexpected message %v", err)
	}
}

func testRequestBody(t *testing.T, c httpclient.Client, origin *fixture.Origin) {
	testutil.T(t).Reset(origin)

	req := httpclient.NewRequest(httpclient.MethodPost, origin.URL()+"/echo",
		httpclient.WithHeader("X-Trace", "abc"),
		httpclient.WithBody([]byte("payload")))
	resp, err := c.Send(context.Background(), req, Params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != "POST\npayload" {
		t.Errorf("unexpected echo %q", resp.Body)
	}

	empty := httpclient.NewRequest(httpclient.MethodPost, origin.URL()+"/echo")
	resp, err = c.Send(context.Background(), empty, Params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != "POST\n" {
		t.Errorf("unexpected echo %q", resp.Body)
	}

	seen := origin.Requests()
	if len(seen) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(seen))
	}
	if string(seen[0].Body) != "payload" || seen[0].Header.Get("X-Trace") != "abc" {
		t.Errorf("unexpected first request %+v", seen[0])
	}
	if len(seen[1].Body) != 0 {
		t.Errorf("expected no body bytes, got %q", seen[1].Body)
	}
}

func testStream(t *testing.T, c httpclient.Client, origin *fixture.Origin) {
	resp, err := c.SendStream(context.Background(), get(origin.URL()+"/chunked?parts=ab,cd"), Params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode() != 200 || resp.ReasonPhrase() != "OK" {
		t.Errorf("unexpected status %d %q", resp.StatusCode(), resp.ReasonPhrase())
	}
	data, err := io.ReadAll(resp)
	if err != nil || string(data) != "abcd" {
		t.Errorf("unexpected stream read %q, %v", data, err)
	}
	if err := resp.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
	_ = resp.Close()
	if _, err := resp.Read(make([]byte, 1)); !httpclient.IsRead(err) {
		t.Errorf("expected read error after close, got %v", err)
	}

	// Closing early releases the exchange without reading the rest.
	resp, err = c.SendStream(context.Background(), get(origin.URL()+"/big?size=100000"), Params)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 10)
	if _, err := io.ReadFull(resp, buf); err != nil {
		t.Fatal(err)
	}
	if err := resp.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
}

func testListener(t *testing.T, c httpclient.Client, origin *fixture.Origin) {
	var (
		events  []string
		body    strings.Builder
		largest int
	)
	l := httpclient.ListenerFuncs{
		Status: func(code int, reason string) { events = append(events, fmt.Sprintf("status %d %s", code, reason)) },
		Header: func(h httpclient.Headers) { events = append(events, "headers") },
		Bytes: func(p []byte) {
			body.Write(p)
			largest = max(largest, len(p))
		},
	}
	if err := c.SendListener(context.Background(), get(origin.URL()+"/missing"), Params, l); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(events, ",") != "status 404 Not Found,headers" {
		t.Errorf("unexpected events %v", events)
	}
	if body.String() != "not found!" {
		t.Errorf("expected error body, got %q", body.String())
	}

	body.Reset()
	if err := c.SendListener(context.Background(), get(origin.URL()+"/big?size=10000"), Params, l); err != nil {
		t.Fatal(err)
	}
	if body.Len() != 10000 || largest > 4096 {
		t.Errorf("expected 10000 bytes in chunks of at most 4096, got %d (largest %d)", body.Len(), largest)
	}
}

func testTimeouts(t *testing.T, c httpclient.Client, origin *fixture.Origin) {
	params := httpclient.CallParameters{Timeouts: httpclient.TimeoutsMillis(2000, 100, 5000, 2000)}
	_, err := c.Send(context.Background(), get(origin.URL()+"/slow?delay=2s"), params)
	if !httpclient.IsRead(err) || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected read timeout, got %v", err)
	}

	params = httpclient.CallParameters{Timeouts: httpclient.TimeoutsMillis(2000, 5000, 100, 2000)}
	_, err = c.Send(context.Background(), get(origin.URL()+"/slow?delay=2s"), params)
	if err == nil || !strings.Contains(err.Error(), "did not complete within 100 ms") {
		t.Errorf("expected call deadline, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	_, err = c.Send(ctx, get(origin.URL()+"/slow?delay=2s"), Params)
	if err == nil || !strings.Contains(err.Error(), "was cancelled") {
		t.Errorf("expected cancellation, got %v", err)
	}
}

func testConnectFailure(t *testing.T, c httpclient.Client) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	u := "http://" + addr + "/"
	_, err = c.Send(context.Background(), get(u), Params)
	if !httpclient.IsConnect(err) {
		t.Fatalf("expected connect error, got %v", err)
	}
	var e *httpclient.Error
	if asError(err, &e); e.Message != "Cannot connect to "+u+" within 2000 ms" {
		t.Errorf("unexpected message %q", e.Message)
	}
}

// streamingCalls runs a call through SendStream and SendListener, closing
// any stream that opens.
func streamingCalls(c httpclient.Client) map[string]func(u string, p httpclient.CallParameters) error {
	return map[string]func(string, httpclient.CallParameters) error{
		"SendStream": func(u string, p httpclient.CallParameters) error {
			resp, err := c.SendStream(context.Background(), get(u), p)
			if err == nil {
				_ = resp.Close()
			}
			return err
		},
		"SendListener": func(u string, p httpclient.CallParameters) error {
			return c.SendListener(context.Background(), get(u), p, httpclient.ListenerFuncs{})
		},
	}
}

func testStreamingFailures(t *testing.T, c httpclient.Client, origin *fixture.Origin) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	closed := "http://" + ln.Addr().String() + "/"
	ln.Close()

	slow := origin.URL() + "/slow?delay=2s"
	readTimeout := httpclient.CallParameters{Timeouts: httpclient.TimeoutsMillis(2000, 100, 5000, 2000)}

	for name, call := range streamingCalls(c) {
		t.Run(name, func(t *testing.T) {
			err := call(closed, Params)
			if !httpclient.IsConnect(err) {
				t.Fatalf("expected connect error, got %v", err)
			}
			var e *httpclient.Error
			if asError(err, &e); e.Message != "Cannot connect to "+closed+" within 2000 ms" {
				t.Errorf("unexpected connect message %q", e.Message)
			}

			err = call(slow, readTimeout)
			if !httpclient.IsRead(err) {
				t.Fatalf("expected read error, got %v", err)
			}
			if asError(err, &e); !strings.Contains(e.Message, "timed out") || !strings.Contains(e.Message, "within 100 ms") {
				t.Errorf("expected read timeout message, got %q", e.Message)
			}
		})
	}
}

func testInvalidRequest(t *testing.T, c httpclient.Client) {
	_, err := c.Send(context.Background(), get("http://"), Params)
	if !httpclient.IsConnect(err) || !strings.Contains(err.Error(), "Cannot parse url: http://") {
		t.Errorf("expected parse error, got %v", err)
	}
	_, err = c.Send(context.Background(), httpclient.NewRequest("BREW", "http://example.com"), Params)
	if !httpclient.IsConnect(err) || !strings.Contains(err.Error(), "Unsupported method BREW") {
		t.Errorf("expected unsupported method, got %v", err)
	}
}

func testTLS(t *testing.T, c httpclient.Client) {
	valid := tlstest.GenerateTLSCerts(t)
	good := fixture.NewOrigin(fixture.WithName("tls"), fixture.WithTLS(valid.ServerConfig()))
	testutil.T(t).Setup(good)

	params := Params
	params.TLS = &httpclient.TLSOverrides{RootCAs: valid.CertPool}
	resp, err := c.Send(context.Background(), get(good.URL()+"/fixed/secure"), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != "secure" {
		t.Errorf("expected secure, got %q", resp.Body)
	}

	expired := tlstest.GenerateTLSCerts(t, tlstest.WithExpired())
	bad := fixture.NewOrigin(fixture.WithName("expired"), fixture.WithTLS(expired.ServerConfig()))
	testutil.T(t).Setup(bad)

	params.TLS = &httpclient.TLSOverrides{RootCAs: expired.CertPool}
	u := bad.URL() + "/fixed/secure"
	_, err = c.Send(context.Background(), get(u), params)
	if !httpclient.IsConnect(err) {
		t.Fatalf("expected connect error, got %v", err)
	}
	var e *httpclient.Error
	if asError(err, &e); e.Message != "Bad ssl certificate at "+u {
		t.Errorf("unexpected message %q", e.Message)
	}

	// Untrusted roots fail the same way.
	_, err = c.Send(context.Background(), get(good.URL()+"/fixed/secure"), Params)
	if !httpclient.IsConnect(err) || !strings.Contains(err.Error(), "Bad ssl certificate") {
		t.Errorf("expected certificate error, got %v", err)
	}
}

func testProxy(t *testing.T, c httpclient.Client, origin *fixture.Origin) {
	proxy := fixture.NewProxy(fixture.ProxyUser("alice", "secret"))
	testutil.T(t).Setup(proxy)

	certs := tlstest.GenerateTLSCerts(t)
	secure := fixture.NewOrigin(fixture.WithName("proxied-tls"), fixture.WithTLS(certs.ServerConfig()))
	testutil.T(t).Setup(secure)

	with := func(user, password string) httpclient.CallParameters {
		p := Params
		p.Proxy = &httpclient.Proxy{Address: proxy.Address(), Username: user, Password: password}
		p.TLS = &httpclient.TLSOverrides{RootCAs: certs.CertPool}
		return p
	}

	t.Run("forwarded", func(t *testing.T) {
		testutil.T(t).Reset(proxy)
		resp, err := c.Send(context.Background(), get(origin.URL()+"/fixed/via-proxy"), with("alice", "secret"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(resp.Body) != "via-proxy" {
			t.Errorf("unexpected body %q", resp.Body)
		}
		if !acceptedFor(proxy, "alice") {
			t.Errorf("expected proxy to accept alice, saw %+v", proxy.Requests())
		}
	})

	t.Run("tunnelled", func(t *testing.T) {
		testutil.T(t).Reset(proxy)
		resp, err := c.Send(context.Background(), get(secure.URL()+"/fixed/tunnel"), with("alice", "secret"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(resp.Body) != "tunnel" {
			t.Errorf("unexpected body %q", resp.Body)
		}
		if !acceptedFor(proxy, "alice") {
			t.Errorf("expected CONNECT accepted for alice, saw %+v", proxy.Requests())
		}
	})

	t.Run("rejected credentials", func(t *testing.T) {
		for _, target := range []string{origin.URL() + "/fixed/x", secure.URL() + "/fixed/x"} {
			_, err := c.Send(context.Background(), get(target), with("alice", "wrong"))
			if !httpclient.IsProxyAuth(err) {
				t.Errorf("%s: expected proxy auth error, got %v", target, err)
				continue
			}
			if !strings.Contains(err.Error(), "Failed to authenticate with proxy") {
				t.Errorf("unexpected message %v", err)
			}
		}
	})

	t.Run("no credentials", func(t *testing.T) {
		p := with("", "")
		resp, err := c.Send(context.Background(), get(origin.URL()+"/fixed/x"), p)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StatusCode != 407 {
			t.Errorf("expected the proxy's 407 response, got %d", resp.StatusCode)
		}

		_, err = c.Send(context.Background(), get(secure.URL()+"/fixed/x"), p)
		if !httpclient.IsProxyAuth(err) {
			t.Errorf("expected refused tunnel to be a proxy auth error, got %v", err)
		}
	})
}

func testProxyIsolation(t *testing.T, c httpclient.Client, origin *fixture.Origin) {
	const callers = 8
	opts := make([]fixture.ProxyOption, 0, callers)
	for i := range callers {
		opts = append(opts, fixture.ProxyUser(fmt.Sprintf("user-%d", i), fmt.Sprintf("pw-%d", i)))
	}
	proxy := fixture.NewProxy(opts...)
	testutil.T(t).Setup(proxy)

	var wg sync.WaitGroup
	errs := make(chan error, callers*4)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := Params
			p.Proxy = &httpclient.Proxy{
				Address:  proxy.Address(),
				Username: fmt.Sprintf("user-%d", i),
				Password: fmt.Sprintf("pw-%d", i),
			}
			for range 4 {
				resp, err := c.Send(context.Background(), get(fmt.Sprintf("%s/fixed/user-%d", origin.URL(), i)), p)
				if err != nil {
					errs <- err
					return
				}
				if resp.StatusCode != 200 {
					errs <- fmt.Errorf("caller %d got status %d", i, resp.StatusCode)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	accepted := 0
	for _, r := range proxy.Requests() {
		if !r.Accepted {
			continue
		}
		accepted++
		if !strings.HasSuffix(r.Target, "/fixed/"+r.User) {
			t.Errorf("credentials of %s were used for %s", r.User, r.Target)
		}
	}
	if accepted != callers*4 {
		t.Errorf("expected %d accepted requests, got %d", callers*4, accepted)
	}
}

func acceptedFor(p *fixture.Proxy, user string) bool {
	for _, r := range p.Requests() {
		if r.Accepted && r.User == user {
			return true
		}
	}
	return false
}

func asError(err error, target **httpclient.Error) bool {
	e, ok := err.(*httpclient.Error)
	if ok {
		*target = e
	} else {
		*target = &httpclient.Error{}
	}
	return ok
}

func truncate(b []byte) string {
	if len(b) > 64 {
		return string(b[:64]) + "..."
	}
	return string(b)
}
