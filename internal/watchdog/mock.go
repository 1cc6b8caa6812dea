package watchdog

import (
	"fmt"
	"sync"
	"time"
)

// Mock simulates the hardware timer for tests: it tracks feeds and reports
// expiry instead of resetting anything.
type Mock struct {
	mu       sync.Mutex
	timeout  time.Duration
	lastFeed time.Time
	feeds    int
	closed   bool
}

// NewMock arms a mock watchdog; the deadline starts running immediately,
// matching the hardware device.
func NewMock(timeout time.Duration) *Mock {
	return &Mock{timeout: timeout, lastFeed: time.Now()}
}

func (m *Mock) Feed() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("watchdog: feed after close")
	}
	m.feeds++
	m.lastFeed = time.Now()
	return nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Feeds reports how many times the watchdog has been fed.
func (m *Mock) Feeds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.feeds
}

// Expired reports whether the deadline has passed without a feed, i.e. the
// hardware would have reset the board by now.
func (m *Mock) Expired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed && time.Since(m.lastFeed) > m.timeout
}
