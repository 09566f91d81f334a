package testutil

import "sync"

// FrameClock yields evenly spaced frame times for deterministic runs.
//
// The first call to Next returns StartMs; each following call adds StepMs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FrameClock struct {
	mu      sync.Mutex
	startMs float64
	stepMs  float64
	frame   int
}

// NewFrameClock creates a clock starting at startMs and advancing stepMs per
// frame.
func NewFrameClock(startMs, stepMs float64) *FrameClock {
	return &FrameClock{startMs: startMs, stepMs: stepMs}
}

// Next returns the time of the next frame.
func (c *FrameClock) Next() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.startMs + float64(c.frame)*c.stepMs
	c.frame++
	return t
}

// Frames returns how many times Next has been called.
func (c *FrameClock) Frames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

// Reset rewinds the clock so the next call returns the start time again.
func (c *FrameClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame = 0
}
