package classify

import (
	"net/http/httptrace"
	"sync/atomic"
	"time"
)

// Phase is the stage a call has reached.
type Phase int32

const (
	// PhaseConnect lasts until a connection (tunnelled and TLS-wrapped when
	// needed) is ready for the request.
	PhaseConnect Phase = iota
	// PhaseWrite lasts while the request line, headers and body are sent.
	PhaseWrite
	// PhaseRead lasts from the end of the request until the body is consumed.
	PhaseRead
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseWrite:
		return "write"
	case PhaseRead:
		return "read"
	default:
		return "connect"
	}
}

// Tracker records the phase of one call. Phases only move forward.
type Tracker struct {
	phase atomic.Int32
	start time.Time
}

// NewTracker starts a tracker in PhaseConnect.
func NewTracker() *Tracker {
	return &Tracker{start: time.Now()}
}

// Enter advances to p unless the call is already past it.
func (t *Tracker) Enter(p Phase) {
	for {
		cur := t.phase.Load()
		if int32(p) <= cur {
			return
		}
		if t.phase.CompareAndSwap(cur, int32(p)) {
			return
		}
	}
}

// Phase returns the current phase.
func (t *Tracker) Phase() Phase {
	return Phase(t.phase.Load())
}

// Elapsed returns the time since the tracker was created.
func (t *Tracker) Elapsed() time.Duration {
	return time.Since(t.start)
}

// ClientTrace feeds phase changes from net/http into the tracker.
func (t *Tracker) ClientTrace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GotConn: func(httptrace.GotConnInfo) {
			t.Enter(PhaseWrite)
		},
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			if info.Err == nil {
				t.Enter(PhaseRead)
			}
		},
		GotFirstResponseByte: func() {
			t.Enter(PhaseRead)
		},
	}
}
