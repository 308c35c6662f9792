package wire

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net/textproto"
	"net/url"
	"strings"
	"testing"

	"github.com/kbukum/anyhttp/httpclient"
	"github.com/kbukum/anyhttp/httpclient/classify"
	"github.com/kbukum/anyhttp/httpclient/enginetest"
	"github.com/kbukum/anyhttp/testutil"
	"github.com/kbukum/anyhttp/testutil/fixture"
)

func TestClient_Conformance(t *testing.T) {
	enginetest.Run(t, func(*testing.T) httpclient.Client { return New(nil) })
}

func TestClient_RequestHeaderOrder(t *testing.T) {
	raw := fixture.NewRawServer("HTTP/1.1 204 No Content\r\n\r\n")
	testutil.T(t).Setup(raw)

	req := httpclient.NewRequest(httpclient.MethodGet, raw.URL()+"/order",
		httpclient.WithHeaders(httpclient.NewHeadersBuilder().
			Add("X-B", "2").
			Add("X-A", "1").
			Add("X-C", "3").
			Build()))
	if _, err := New(nil).Send(context.Background(), req, enginetest.Params); err != nil {
		t.Fatal(err)
	}

	host := strings.TrimPrefix(raw.URL(), "http://")
	want := "GET /order HTTP/1.1\r\nHost: " + host + "\r\nX-B: 2\r\nX-A: 1\r\nX-C: 3\r\n\r\n"
	got := raw.Requests()
	if len(got) != 1 || got[0] != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestClient_ResponseHeaderOrder(t *testing.T) {
	raw := fixture.NewRawServer("HTTP/1.1 200 OK\r\nZeta: 1\r\nAlpha: 2\r\nContent-Length: 2\r\nalpha: 3\r\n\r\nok")
	testutil.T(t).Setup(raw)

	resp, err := New(nil).Send(context.Background(), httpclient.NewRequest(httpclient.MethodGet, raw.URL()+"/"), enginetest.Params)
	if err != nil {
		t.Fatal(err)
	}
	want := "[Zeta: 1, Alpha: 2, Content-Length: 2, alpha: 3]"
	if resp.Headers.String() != want {
		t.Errorf("expected %s, got %s", want, resp.Headers)
	}
	if got := resp.Headers.Values("ALPHA"); len(got) != 2 || got[0] != "2" || got[1] != "3" {
		t.Errorf("expected both alpha values, got %v", got)
	}
}

func TestClient_SkipsInterimResponses(t *testing.T) {
	raw := fixture.NewRawServer("HTTP/1.1 100 Continue\r\n\r\nHTTP/1.1 200 OK\r\nContent-Length: 3\r\n\r\nyes")
	testutil.T(t).Setup(raw)

	resp, err := New(nil).Send(context.Background(), httpclient.NewRequest(httpclient.MethodPost, raw.URL()+"/", httpclient.WithBody([]byte("q"))), enginetest.Params)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 || string(resp.Body) != "yes" {
		t.Errorf("expected final response, got %s", resp)
	}
}

func TestWriteRequest(t *testing.T) {
	target, _ := url.Parse("http://h:1/p?q=1#frag")
	tests := []struct {
		name      string
		req       httpclient.Request
		absolute  bool
		proxyAuth string
		want      string
	}{
		{
			name: "body is framed",
			req:  httpclient.NewRequest(httpclient.MethodPost, target.String(), httpclient.WithBody([]byte("hi"))),
			want: "POST /p?q=1 HTTP/1.1\r\nHost: h:1\r\nContent-Length: 2\r\n\r\nhi",
		},
		{
			name: "empty body adds no framing",
			req:  httpclient.NewRequest(httpclient.MethodPost, target.String()),
			want: "POST /p?q=1 HTTP/1.1\r\nHost: h:1\r\n\r\n",
		},
		{
			name:      "absolute form with proxy credentials",
			req:       httpclient.NewRequest(httpclient.MethodGet, target.String()),
			absolute:  true,
			proxyAuth: "Basic dTpw",
			want:      "GET http://h:1/p?q=1 HTTP/1.1\r\nHost: h:1\r\nProxy-Authorization: Basic dTpw\r\n\r\n",
		},
		{
			name: "caller host",
			req: httpclient.NewRequest(httpclient.MethodGet, target.String(),
				httpclient.WithHeaders(httpclient.SingleHeader("Host", "virtual"))),
			want: "GET /p?q=1 HTTP/1.1\r\nHost: virtual\r\n\r\n",
		},
		{
			name: "caller chunked framing",
			req: httpclient.NewRequest(httpclient.MethodPut, target.String(),
				httpclient.WithHeaders(httpclient.SingleHeader("Transfer-Encoding", "chunked")),
				httpclient.WithBody([]byte("hi"))),
			want: "PUT /p?q=1 HTTP/1.1\r\nHost: h:1\r\nTransfer-Encoding: chunked\r\n\r\n2\r\nhi\r\n0\r\n\r\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := writeRequest(bufio.NewWriter(&buf), tc.req, target, tc.absolute, tc.proxyAuth); err != nil {
				t.Fatal(err)
			}
			if buf.String() != tc.want {
				t.Errorf("expected %q, got %q", tc.want, buf.String())
			}
		})
	}
}

func TestWriteRequest_InvalidHeader(t *testing.T) {
	target, _ := url.Parse("http://h/")
	var buf bytes.Buffer
	req := httpclient.NewRequest(httpclient.MethodGet, target.String(),
		httpclient.WithHeaders(httpclient.SingleHeader("Bad Name", "x")))
	if err := writeRequest(bufio.NewWriter(&buf), req, target, false, ""); err == nil {
		t.Error("expected invalid header name to fail")
	}
	if buf.Len() != 0 {
		t.Errorf("expected nothing written, got %q", buf.String())
	}
}

func TestParseStatusLine(t *testing.T) {
	tests := []struct {
		line   string
		status int
		reason string
		ok     bool
	}{
		{"HTTP/1.1 200 OK", 200, "OK", true},
		{"HTTP/1.0 404 Not Found", 404, "Not Found", true},
		{"HTTP/1.1 204", 204, "", true},
		{"HTTP/1.1 20 OK", 0, "", false},
		{"HTTP/1.1 abc OK", 0, "", false},
		{"ICY 200 OK", 0, "", false},
		{"garbage", 0, "", false},
	}
	for _, tc := range tests {
		status, reason, err := parseStatusLine(tc.line)
		if (err == nil) != tc.ok {
			t.Errorf("parseStatusLine(%q) error = %v", tc.line, err)
			continue
		}
		if status != tc.status || reason != tc.reason {
			t.Errorf("parseStatusLine(%q) = %d %q, want %d %q", tc.line, status, reason, tc.status, tc.reason)
		}
	}
}

func TestReadHeaders(t *testing.T) {
	tp := textproto.NewReader(bufio.NewReader(strings.NewReader("B: 1\r\nA:   2  \r\nb: 3\r\n\r\n")))
	h, err := readHeaders(tp)
	if err != nil {
		t.Fatal(err)
	}
	if h.String() != "[B: 1, A: 2, b: 3]" {
		t.Errorf("unexpected headers %s", h)
	}

	tp = textproto.NewReader(bufio.NewReader(strings.NewReader("no colon\r\n\r\n")))
	if _, err := readHeaders(tp); err == nil {
		t.Error("expected malformed header line to fail")
	}
}

func TestHostPort(t *testing.T) {
	tests := map[string]string{
		"http://h":        "h:80",
		"https://h":       "h:443",
		"http://h:8080/x": "h:8080",
		"http://[::1]/":   "[::1]:80",
	}
	for raw, want := range tests {
		u, _ := url.Parse(raw)
		if got := hostPort(u); got != want {
			t.Errorf("hostPort(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestParseTarget(t *testing.T) {
	for _, raw := range []string{"ftp://h/x", "http://", "/relative"} {
		_, err := parseTarget(raw)
		var invalid *classify.InvalidURL
		if !errors.As(err, &invalid) {
			t.Errorf("parseTarget(%q) expected InvalidURL, got %v", raw, err)
		}
	}
	if u, err := parseTarget("https://h/x"); err != nil || u.Host != "h" {
		t.Errorf("unexpected result %v, %v", u, err)
	}
}
