package body

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/kbukum/anyhttp/httpclient"
)

func headers(pairs ...string) httpclient.Headers {
	b := httpclient.NewHeadersBuilder()
	for i := 0; i+1 < len(pairs); i += 2 {
		b.Add(pairs[i], pairs[i+1])
	}
	return b.Build()
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name    string
		method  httpclient.Method
		status  int
		length  int64
		headers httpclient.Headers
		want    Plan
	}{
		{"positive length", httpclient.MethodGet, 200, 5, headers("Content-Length", "5"), Plan{Mode: Length, Length: 5}},
		{"length wins over chunked", httpclient.MethodGet, 200, 5, headers("Transfer-Encoding", "chunked"), Plan{Mode: Length, Length: 5}},
		{"chunked", httpclient.MethodGet, 200, -1, headers("Transfer-Encoding", "chunked"), Plan{Mode: Chunked}},
		{"chunked any case in list", httpclient.MethodGet, 200, -1, headers("transfer-encoding", "gzip, Chunked"), Plan{Mode: Chunked}},
		{"chunked second header", httpclient.MethodGet, 200, -1, headers("Transfer-Encoding", "gzip", "Transfer-Encoding", "CHUNKED"), Plan{Mode: Chunked}},
		{"no framing", httpclient.MethodGet, 200, -1, headers(), Plan{Mode: Empty}},
		{"zero length", httpclient.MethodGet, 200, 0, headers("Content-Length", "0"), Plan{Mode: Empty}},
		{"other encoding", httpclient.MethodGet, 200, -1, headers("Transfer-Encoding", "gzip"), Plan{Mode: Empty}},
		{"error status chunked", httpclient.MethodGet, 404, -1, headers("Transfer-Encoding", "chunked"), Plan{Mode: Chunked}},
		{"head request", httpclient.MethodHead, 200, 5, headers("Content-Length", "5"), Plan{Mode: Empty}},
		{"no content", httpclient.MethodGet, 204, 5, headers(), Plan{Mode: Empty}},
		{"not modified", httpclient.MethodGet, 304, -1, headers("Transfer-Encoding", "chunked"), Plan{Mode: Empty}},
		{"informational", httpclient.MethodGet, 101, -1, headers("Transfer-Encoding", "chunked"), Plan{Mode: Empty}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Decide(tc.method, tc.status, tc.length, tc.headers)
			if got != tc.want {
				t.Errorf("Decide() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestContentLength(t *testing.T) {
	tests := []struct {
		headers httpclient.Headers
		want    int64
	}{
		{headers("Content-Length", "42"), 42},
		{headers("content-length", " 7 "), 7},
		{headers("Content-Length", "abc"), -1},
		{headers("Content-Length", "-3"), -1},
		{headers(), -1},
	}
	for _, tc := range tests {
		if got := ContentLength(tc.headers); got != tc.want {
			t.Errorf("ContentLength(%s) = %d, want %d", tc.headers, got, tc.want)
		}
	}
}

func TestReadAll_Length(t *testing.T) {
	got, err := ReadAll(Plan{Mode: Length, Length: 5}, strings.NewReader("helloEXTRA"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("expected exactly 5 bytes, got %q", got)
	}
}

func TestReadAll_LengthSlowSource(t *testing.T) {
	got, err := ReadAll(Plan{Mode: Length, Length: 5}, iotest.OneByteReader(strings.NewReader("hello")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("expected hello, got %q", got)
	}
}

func TestReadAll_ShortLength(t *testing.T) {
	got, err := ReadAll(Plan{Mode: Length, Length: 10}, strings.NewReader("abc"))
	if got != nil {
		t.Errorf("expected no partial body, got %q", got)
	}
	var short *ShortBodyError
	if !errors.As(err, &short) {
		t.Fatalf("expected ShortBodyError, got %v", err)
	}
	if short.Got != 3 || short.Want != 10 {
		t.Errorf("unexpected counts %+v", short)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("expected ShortBodyError to match io.ErrUnexpectedEOF")
	}
	if err.Error() != "Read only 3 but wanted 10" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestReadAll_SourceError(t *testing.T) {
	boom := errors.New("reset")
	_, err := ReadAll(Plan{Mode: Length, Length: 10}, iotest.ErrReader(boom))
	if !errors.Is(err, boom) {
		t.Errorf("expected source error, got %v", err)
	}
	_, err = ReadAll(Plan{Mode: Chunked}, iotest.ErrReader(boom))
	if !errors.Is(err, boom) {
		t.Errorf("expected source error, got %v", err)
	}
}

func TestReadAll_Chunked(t *testing.T) {
	got, err := ReadAll(Plan{Mode: Chunked}, strings.NewReader("everything until eof"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "everything until eof" {
		t.Errorf("expected full drain, got %q", got)
	}
}

func TestReadAll_EmptyIgnoresStream(t *testing.T) {
	src := strings.NewReader("unframed bytes")
	got, err := ReadAll(Plan{Mode: Empty}, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty body, got %q", got)
	}
	if src.Len() != len("unframed bytes") {
		t.Error("expected stream not to be consumed")
	}
}

func TestNewReader_Length(t *testing.T) {
	r := NewReader(Plan{Mode: Length, Length: 5}, strings.NewReader("helloEXTRA"))
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("expected hello, got %q", got)
	}
}

func TestNewReader_Short(t *testing.T) {
	r := NewReader(Plan{Mode: Length, Length: 8}, iotest.HalfReader(strings.NewReader("abcd")))
	_, err := io.ReadAll(r)
	var short *ShortBodyError
	if !errors.As(err, &short) {
		t.Fatalf("expected ShortBodyError, got %v", err)
	}
	if short.Got != 4 {
		t.Errorf("expected 4 bytes read, got %d", short.Got)
	}
}

func TestNewReader_Empty(t *testing.T) {
	r := NewReader(Plan{Mode: Empty}, strings.NewReader("ignored"))
	n, err := r.Read(make([]byte, 4))
	if n != 0 || err != io.EOF {
		t.Errorf("expected immediate EOF, got %d, %v", n, err)
	}
}

func TestMode_String(t *testing.T) {
	if Length.String() != "length" || Chunked.String() != "chunked" || Empty.String() != "empty" {
		t.Error("unexpected mode names")
	}
}
