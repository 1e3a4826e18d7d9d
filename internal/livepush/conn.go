package livepush

import (
	"bytes"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/sse"
)

// ErrClosed is returned when writing to a connection that was closed.
var ErrClosed = errors.New("livepush: connection closed")

// Conn is one member's live SSE stream. Writes are serialized; once closed
// the underlying ResponseWriter is never touched again, so the HTTP handler
// that owns it may return.
type Conn struct {
	memberID     int64
	w            http.ResponseWriter
	rc           *http.ResponseController
	writeTimeout time.Duration
	opened       time.Time

	mu     sync.Mutex
	closed bool
	err    error
	done   chan struct{}
}

func newConn(memberID int64, w http.ResponseWriter, writeTimeout time.Duration) *Conn {
	return &Conn{
		memberID:     memberID,
		w:            w,
		rc:           http.NewResponseController(w),
		writeTimeout: writeTimeout,
		opened:       time.Now(),
		done:         make(chan struct{}),
	}
}

// MemberID returns the member this connection belongs to.
func (c *Conn) MemberID() int64 { return c.memberID }

// Done is closed when the connection is closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err returns the write error that closed the connection, or nil if it was
// closed normally or is still open.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// write encodes one SSE event and flushes it. A failed write closes the
// connection and records the error.
func (c *Conn) write(event string, payload any) error {
	var buf bytes.Buffer
	if err := sse.Encode(&buf, sse.Event{Event: event, Data: payload}); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.writeTimeout > 0 {
		// Not every writer supports deadlines (e.g. test recorders).
		_ = c.rc.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		defer func() { _ = c.rc.SetWriteDeadline(time.Time{}) }()
	}
	if _, err := c.w.Write(buf.Bytes()); err != nil {
		c.closeLocked(err)
		return err
	}
	if err := c.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		c.closeLocked(err)
		return err
	}
	return nil
}

// Close closes the connection. It is safe to call more than once.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked(nil)
}

func (c *Conn) closeLocked(err error) {
	if c.closed {
		return
	}
	c.closed = true
	c.err = err
	close(c.done)
}
