// Package body decides how much of a response body to read and reads it.
//
// The rules, in order:
//
//  1. responses that carry no body by protocol (HEAD requests, 1xx, 204 and
//     304 statuses) are empty;
//  2. a positive Content-Length L means exactly L bytes are read, and a
//     shorter stream is an error;
//  3. a Transfer-Encoding header containing "chunked" in any case means the
//     stream is read to its end;
//  4. anything else is empty, even if the connection still has bytes.
package body

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kbukum/anyhttp/httpclient"
)

// Mode is the acquisition strategy for one response.
type Mode int

const (
	// Empty reads nothing.
	Empty Mode = iota
	// Length reads exactly Plan.Length bytes.
	Length
	// Chunked reads until the stream ends.
	Chunked
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Length:
		return "length"
	case Chunked:
		return "chunked"
	default:
		return "empty"
	}
}

// Plan is the decision for one response.
type Plan struct {
	Mode   Mode
	Length int64
}

// maxPrealloc caps the buffer reserved up front for a declared length.
const maxPrealloc = 1 << 20

// Decide returns the plan for a response. contentLength is -1 when unknown.
func Decide(method httpclient.Method, status int, contentLength int64, headers httpclient.Headers) Plan {
	if !Allowed(method, status) {
		return Plan{Mode: Empty}
	}
	if contentLength > 0 {
		return Plan{Mode: Length, Length: contentLength}
	}
	if IsChunked(headers) {
		return Plan{Mode: Chunked}
	}
	return Plan{Mode: Empty}
}

// Allowed reports whether a response may carry a body at all.
func Allowed(method httpclient.Method, status int) bool {
	if method == httpclient.MethodHead {
		return false
	}
	return status >= 200 && status != 204 && status != 304
}

// IsChunked reports whether any Transfer-Encoding value contains "chunked".
func IsChunked(headers httpclient.Headers) bool {
	for _, v := range headers.Values("Transfer-Encoding") {
		if strings.Contains(strings.ToLower(v), "chunked") {
			return true
		}
	}
	return false
}

// ContentLength parses the first Content-Length header, -1 when absent or invalid.
func ContentLength(headers httpclient.Headers) int64 {
	v, ok := headers.Get("Content-Length")
	if !ok {
		return -1
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// ShortBodyError reports a stream that ended before the declared length.
type ShortBodyError struct {
	Want int64
	Got  int64
}

func (e *ShortBodyError) Error() string {
	return fmt.Sprintf("Read only %d but wanted %d", e.Got, e.Want)
}

// Unwrap lets callers match io.ErrUnexpectedEOF.
func (e *ShortBodyError) Unwrap() error { return io.ErrUnexpectedEOF }

// ReadAll materializes the body described by plan. A partial body is never
// returned alongside an error.
func ReadAll(plan Plan, src io.Reader) ([]byte, error) {
	switch plan.Mode {
	case Length:
		var buf bytes.Buffer
		buf.Grow(int(min(plan.Length, maxPrealloc)))
		n, err := io.CopyN(&buf, src, plan.Length)
		if n < plan.Length {
			if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, &ShortBodyError{Want: plan.Length, Got: n}
			}
			return nil, err
		}
		return buf.Bytes(), nil
	case Chunked:
		b, err := io.ReadAll(src)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return []byte{}, nil
	}
}

// NewReader returns a reader that yields the body described by plan.
func NewReader(plan Plan, src io.Reader) io.Reader {
	switch plan.Mode {
	case Length:
		return &exactReader{src: src, want: plan.Length, remaining: plan.Length}
	case Chunked:
		return src
	default:
		return eofReader{}
	}
}

// exactReader yields exactly want bytes and fails if src ends early.
type exactReader struct {
	src       io.Reader
	want      int64
	remaining int64
}

func (r *exactReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}
	n, err := r.src.Read(p)
	r.remaining -= int64(n)
	switch {
	case r.remaining <= 0:
		return n, nil
	case err == io.EOF || err == io.ErrUnexpectedEOF:
		return n, &ShortBodyError{Want: r.want, Got: r.want - r.remaining}
	default:
		return n, err
	}
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
