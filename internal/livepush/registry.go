// Package livepush keeps at most one live Server-Sent Events stream per
// member and delivers best-effort pushes to it.
//
// The Registry is the process's only shared map of member to connection. It
// is created by NewRegistry and torn down by Close; there is no package-level
// instance.
//
// Semantics:
//   - Connect overwrites any previous entry for the member (last connect wins).
//     The superseded stream is left open and ends through its own lifecycle.
//   - Send to a member without an entry is a no-op. A failed write evicts the
//     entry and is logged, never returned.
//   - Completion, timeout and write errors all end in Release, which removes the
//     entry only if it still points at the releasing connection.
//   - Removing twice is a no-op.
//
// No registry lock is held while writing to a connection.
package livepush

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Release reasons.
const (
	ReasonCompleted  = "completed"
	ReasonTimeout    = "timeout"
	ReasonError      = "error"
	ReasonClosed     = "closed"
	ReasonSuperseded = "superseded"
)

// Defaults applied by NewRegistry for zero Options fields.
const (
	DefaultTimeout      = 30 * time.Minute
	DefaultWriteTimeout = 10 * time.Second
)

// EventConnect is sent once when a stream opens.
const EventConnect = "connect"

var (
	// liveConns gauges the number of registered connections.
	liveConns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "livepush_connections",
			Help: "Current number of registered live push connections.",
		},
	)

	// liveSends counts push attempts by result (delivered, no_connection, failed).
	liveSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livepush_sends_total",
			Help: "Total number of live push attempts by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(liveConns, liveSends)
}

// Options tunes a Registry.
type Options struct {
	// Timeout bounds the lifetime of a session started by Serve.
	Timeout time.Duration
	// WriteTimeout bounds a single event write.
	WriteTimeout time.Duration
}

// Registry maps member ids to their current live connection.
type Registry struct {
	opts Options

	mu     sync.Mutex
	conns  map[int64]*Conn
	closed bool
}

// NewRegistry returns an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	return &Registry{opts: opts, conns: make(map[int64]*Conn)}
}

// Connect registers a new connection writing to w for memberID, replacing any
// previous one. After Close the returned connection is already closed.
func (r *Registry) Connect(memberID int64, w http.ResponseWriter) *Conn {
	c := newConn(memberID, w, r.opts.WriteTimeout)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		c.Close()
		return c
	}
	prev := r.conns[memberID]
	r.conns[memberID] = c
	liveConns.Set(float64(len(r.conns)))
	r.mu.Unlock()

	if prev != nil {
		log.Info().Int64("member_id", memberID).Str("reason", ReasonSuperseded).Msg("sse connection replaced")
	}
	log.Info().Int64("member_id", memberID).Msg("sse connection opened")
	return c
}

// Send writes one event to memberID's connection, if any. It never fails; a
// write error evicts and closes the connection.
func (r *Registry) Send(memberID int64, event string, payload any) {
	r.mu.Lock()
	c := r.conns[memberID]
	r.mu.Unlock()

	if c == nil {
		liveSends.WithLabelValues("no_connection").Inc()
		log.Debug().Int64("member_id", memberID).Msg("sse send skipped: no connection")
		return
	}
	if err := c.write(event, payload); err != nil {
		liveSends.WithLabelValues("failed").Inc()
		r.remove(memberID, c)
		c.Close()
		log.Warn().Err(err).Int64("member_id", memberID).Msg("sse send failed; connection evicted")
		return
	}
	liveSends.WithLabelValues("delivered").Inc()
	log.Debug().Int64("member_id", memberID).Str("event", event).Msg("sse event sent")
}

// Disconnect removes and closes memberID's connection, if any, and reports
// whether there was one. Operators reach it through the admin API.
func (r *Registry) Disconnect(memberID int64) bool {
	r.mu.Lock()
	c := r.conns[memberID]
	if c != nil {
		delete(r.conns, memberID)
		liveConns.Set(float64(len(r.conns)))
	}
	r.mu.Unlock()

	if c == nil {
		return false
	}
	c.Close()
	log.Info().Int64("member_id", memberID).Str("reason", ReasonClosed).Msg("sse connection closed")
	return true
}

// Release is the single cleanup path for a connection's lifecycle end. It
// closes c and removes the entry only if it is still c, so a stale stream
// never evicts a newer one. It reports whether an entry was removed.
func (r *Registry) Release(memberID int64, c *Conn, reason string) bool {
	removed := r.remove(memberID, c)
	c.Close()
	ev := log.Info()
	if reason == ReasonError {
		ev = log.Warn().Err(c.Err())
	}
	ev.Int64("member_id", memberID).Str("reason", reason).Bool("removed", removed).
		Dur("age", time.Since(c.opened)).Msg("sse connection released")
	return removed
}

// remove deletes memberID's entry if it is c.
func (r *Registry) remove(memberID int64, c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.conns[memberID]; ok && cur == c {
		delete(r.conns, memberID)
		liveConns.Set(float64(len(r.conns)))
		return true
	}
	return false
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Close closes every connection and rejects later connects. Sessions running
// in Serve return promptly.
func (r *Registry) Close() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[int64]*Conn)
	r.closed = true
	liveConns.Set(0)
	r.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	log.Info().Int("connections", len(conns)).Msg("live push registry closed")
}

// Serve runs one SSE session for memberID on w: it writes the stream headers
// and a connect event, registers the connection, and blocks until the client
// goes away (ctx done), the session times out, or the connection is closed.
// The connection is released before Serve returns.
func (r *Registry) Serve(ctx context.Context, memberID int64, w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", sse.ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	c := r.Connect(memberID, w)
	if err := c.write(EventConnect, "connected"); err != nil {
		r.Release(memberID, c, ReasonError)
		return
	}

	timer := time.NewTimer(r.opts.Timeout)
	defer timer.Stop()

	reason := ReasonCompleted
	select {
	case <-ctx.Done():
	case <-timer.C:
		reason = ReasonTimeout
	case <-c.Done():
		reason = ReasonClosed
		if c.Err() != nil {
			reason = ReasonError
		}
	}
	r.Release(memberID, c, reason)
}
