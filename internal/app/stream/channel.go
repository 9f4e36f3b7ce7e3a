package stream

import (
	"errors"
	"net/http"
	"sync"
)

var errChannelClosed = errors.New("stream channel closed")

// sseChannel adapts a flushed response writer into a realtime.Channel.
// The dispatcher and the handler's keepalive loop write from different
// goroutines; the mutex serializes them onto the single response. The
// handler marks the channel closed before it returns, because the
// response writer must never be touched after that point and the
// dispatcher may still hold this channel from a fan-out snapshot taken
// before teardown.
type sseChannel struct {
	mu     sync.Mutex
	w      http.ResponseWriter
	fl     http.Flusher
	closed bool
}

func newSSEChannel(w http.ResponseWriter, fl http.Flusher) *sseChannel {
	return &sseChannel{w: w, fl: fl}
}

func (c *sseChannel) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errChannelClosed
	}
	if _, err := c.w.Write(frame); err != nil {
		return err
	}
	c.fl.Flush()
	return nil
}

// close makes every later Send fail without touching the writer. Safe
// to call more than once.
func (c *sseChannel) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}
