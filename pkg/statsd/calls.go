package statsd

import (
	"fmt"
	"slices"
	"sync"
)

// callLog keeps every raw datagram in arrival order. Unlike the record
// store, entries can be consumed by VerifyCall.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(msg string) {
	c.mu.Lock()
	c.calls = append(c.calls, msg)
	c.mu.Unlock()
}

func (c *callLog) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.calls)
}

// remove drops the first occurrence of msg.
func (c *callLog) remove(msg string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := slices.Index(c.calls, msg)
	if i < 0 {
		return false
	}
	c.calls = slices.Delete(c.calls, i, i+1)
	return true
}

func (c *callLog) contains(msg string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Contains(c.calls, msg)
}

func (c *callLog) reset() {
	c.mu.Lock()
	c.calls = nil
	c.mu.Unlock()
}

func verifyCall(c *callLog, msg string) error {
	if !c.remove(msg) {
		return fmt.Errorf("%w: %q", ErrCallNotFound, msg)
	}
	return nil
}

func verifyNoMoreCalls(c *callLog, msg string) error {
	if c.contains(msg) {
		return fmt.Errorf("%w: %q", ErrUnexpectedCall, msg)
	}
	return nil
}
