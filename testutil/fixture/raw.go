package fixture

import (
	"bufio"
	"context"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/kbukum/anyhttp/component"
	"github.com/kbukum/anyhttp/testutil"
)

// RawServer answers every connection with a fixed response after recording
// the request head and body byte for byte.
type RawServer struct {
	name     string
	response string

	mu       sync.Mutex
	ln       net.Listener
	requests []string
	wg       sync.WaitGroup
}

var _ testutil.TestComponent = (*RawServer)(nil)

// NewRawServer creates a server replying with response, which must be a
// complete HTTP/1.1 response.
func NewRawServer(response string) *RawServer {
	return &RawServer{name: "raw", response: response}
}

func (s *RawServer) Name() string { return s.name }

// Start listens on a loopback port.
func (s *RawServer) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	s.ln = ln
	s.wg.Add(1)
	go s.accept(ln)
	return nil
}

// Stop closes the listener and waits for open connections.
func (s *RawServer) Stop(_ context.Context) error {
	s.mu.Lock()
	ln := s.ln
	s.ln = nil
	s.mu.Unlock()
	if ln == nil {
		return nil
	}
	err := ln.Close()
	s.wg.Wait()
	return err
}

func (s *RawServer) Health(_ context.Context) component.Health {
	if s.URL() == "" {
		return component.Health{Name: s.name, Status: component.StatusUnhealthy, Message: "not started"}
	}
	return component.Health{Name: s.name, Status: component.StatusHealthy}
}

// Reset forgets recorded requests.
func (s *RawServer) Reset(_ context.Context) error {
	s.mu.Lock()
	s.requests = nil
	s.mu.Unlock()
	return nil
}

// URL returns the base URL, empty before Start.
func (s *RawServer) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return "http://" + s.ln.Addr().String()
}

// Requests returns the raw requests seen since Start or Reset.
func (s *RawServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *RawServer) accept(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *RawServer) serve(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	br := bufio.NewReader(conn)
	var req strings.Builder
	length := 0
	for {
		line, err := br.ReadString('\n')
		req.WriteString(line)
		if err != nil {
			return
		}
		if line == "\r\n" {
			break
		}
		if name, value, ok := strings.Cut(line, ":"); ok && strings.EqualFold(name, "Content-Length") {
			length, _ = strconv.Atoi(strings.TrimSpace(value))
		}
	}
	if length > 0 {
		body := make([]byte, length)
		if _, err := io.ReadFull(br, body); err != nil {
			return
		}
		req.Write(body)
	}

	s.mu.Lock()
	s.requests = append(s.requests, req.String())
	s.mu.Unlock()

	_, _ = io.WriteString(conn, s.response)
}
