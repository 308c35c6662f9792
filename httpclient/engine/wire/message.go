package wire

import (
	"bufio"
	"fmt"
	"net"
	"net/http/httputil"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/kbukum/anyhttp/httpclient"
	"github.com/kbukum/anyhttp/httpclient/body"
)

// head is a parsed status line and header block.
type head struct {
	status  int
	reason  string
	headers httpclient.Headers
}

// writeRequest writes req in HTTP/1.1 form. Headers go out in caller order,
// preceded by Host when the caller did not set one. A body is framed with
// Content-Length unless the caller declared its own framing; an empty body
// adds no framing header.
func writeRequest(w *bufio.Writer, req httpclient.Request, target *url.URL, absolute bool, proxyAuth string) error {
	for _, h := range req.Headers.All() {
		if !httpguts.ValidHeaderFieldName(h.Name) {
			return fmt.Errorf("invalid header name %q", h.Name)
		}
		if !httpguts.ValidHeaderFieldValue(h.Value) {
			return fmt.Errorf("invalid value for header %q", h.Name)
		}
	}

	uri := target.RequestURI()
	if absolute {
		u := *target
		u.Fragment = ""
		u.User = nil
		uri = u.String()
	}
	fmt.Fprintf(w, "%s %s HTTP/1.1\r\n", req.Method.String(), uri)

	if !req.Headers.Has("Host") {
		fmt.Fprintf(w, "Host: %s\r\n", target.Host)
	}
	req.Headers.Each(func(name, value string) {
		fmt.Fprintf(w, "%s: %s\r\n", name, value)
	})
	if proxyAuth != "" {
		fmt.Fprintf(w, "Proxy-Authorization: %s\r\n", proxyAuth)
	}

	chunked := body.IsChunked(req.Headers)
	if req.HasBody() && !chunked && !req.Headers.Has("Content-Length") {
		fmt.Fprintf(w, "Content-Length: %d\r\n", len(req.Body))
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return err
	}

	if req.HasBody() {
		if chunked {
			cw := httputil.NewChunkedWriter(w)
			if _, err := cw.Write(req.Body); err != nil {
				return err
			}
			if err := cw.Close(); err != nil {
				return err
			}
			if _, err := w.WriteString("\r\n"); err != nil {
				return err
			}
		} else if _, err := w.Write(req.Body); err != nil {
			return err
		}
	}
	return w.Flush()
}

// readHead reads the final response head, skipping interim 1xx responses
// other than 101.
func readHead(br *bufio.Reader) (*head, error) {
	tp := textproto.NewReader(br)
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return nil, err
		}
		status, reason, err := parseStatusLine(line)
		if err != nil {
			return nil, err
		}
		headers, err := readHeaders(tp)
		if err != nil {
			return nil, err
		}
		if status >= 100 && status < 200 && status != 101 {
			continue
		}
		return &head{status: status, reason: reason, headers: headers}, nil
	}
}

func parseStatusLine(line string) (int, string, error) {
	proto, rest, ok := strings.Cut(line, " ")
	if !ok || !strings.HasPrefix(proto, "HTTP/") {
		return 0, "", fmt.Errorf("malformed status line %q", line)
	}
	code, reason, _ := strings.Cut(rest, " ")
	if len(code) != 3 {
		return 0, "", fmt.Errorf("malformed status code in %q", line)
	}
	status, err := strconv.Atoi(code)
	if err != nil || status < 100 {
		return 0, "", fmt.Errorf("malformed status code in %q", line)
	}
	return status, strings.TrimSpace(reason), nil
}

// readHeaders keeps headers in wire order, unlike textproto.ReadMIMEHeader.
func readHeaders(tp *textproto.Reader) (httpclient.Headers, error) {
	b := httpclient.NewHeadersBuilder()
	for {
		line, err := tp.ReadContinuedLine()
		if err != nil {
			return httpclient.Headers{}, err
		}
		if line == "" {
			return b.Build(), nil
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok || name == "" || !httpguts.ValidHeaderFieldName(name) {
			return httpclient.Headers{}, fmt.Errorf("malformed header line %q", line)
		}
		b.Add(name, strings.TrimSpace(value))
	}
}

// hostPort returns the dial address of u, filling the scheme's default port.
func hostPort(u *url.URL) string {
	if port := u.Port(); port != "" {
		return net.JoinHostPort(u.Hostname(), port)
	}
	if u.Scheme == "https" {
		return net.JoinHostPort(u.Hostname(), "443")
	}
	return net.JoinHostPort(u.Hostname(), "80")
}
