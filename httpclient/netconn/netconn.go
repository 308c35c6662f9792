// Package netconn enforces per-operation read and write timeouts on a net.Conn.
package netconn

import (
	"net"
	"time"
)

// Conn refreshes the read deadline before every Read and the write deadline
// before every Write. A Write also pushes back the read deadline, so a read
// left pending on an idle pooled connection waits a full read timeout for
// the reply.
type Conn struct {
	net.Conn
	read  time.Duration
	write time.Duration
}

// Wrap returns c with the given timeouts. Zero disables a timeout; when both
// are zero c is returned unchanged.
func Wrap(c net.Conn, read, write time.Duration) net.Conn {
	if read <= 0 && write <= 0 {
		return c
	}
	return &Conn{Conn: c, read: read, write: write}
}

// New wraps c with timeouts disabled. See SetTimeouts.
func New(c net.Conn) *Conn {
	return &Conn{Conn: c}
}

// SetTimeouts changes both timeouts. It must not run concurrently with Read
// or Write.
func (c *Conn) SetTimeouts(read, write time.Duration) {
	c.read = read
	c.write = write
}

// Read implements net.Conn.
func (c *Conn) Read(p []byte) (int, error) {
	if c.read > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.read)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(p)
}

// Write implements net.Conn.
func (c *Conn) Write(p []byte) (int, error) {
	now := time.Now()
	if c.write > 0 {
		if err := c.Conn.SetWriteDeadline(now.Add(c.write)); err != nil {
			return 0, err
		}
	}
	n, err := c.Conn.Write(p)
	if err == nil && c.read > 0 {
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.read))
	}
	return n, err
}

// Unwrap returns the wrapped connection.
func (c *Conn) Unwrap() net.Conn { return c.Conn }
