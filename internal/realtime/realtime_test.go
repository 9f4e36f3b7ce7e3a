package realtime

import (
	"errors"
	"sync"

	"restaurant-live/internal/common/logger"
)

// recordChannel captures frames in memory; flip fail to simulate a dead
// transport that errors on write.
type recordChannel struct {
	mu       sync.Mutex
	frames   [][]byte
	attempts int
	fail     bool
}

func (c *recordChannel) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	if c.fail {
		return errors.New("write on closed channel")
	}
	c.frames = append(c.frames, append([]byte(nil), frame...))
	return nil
}

func (c *recordChannel) recorded() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.frames))
	copy(out, c.frames)
	return out
}

func (c *recordChannel) sendAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func testLogger() *logger.Logger { return logger.New("test") }
