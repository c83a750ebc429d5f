// Package testutil holds deterministic stand-ins and HTML fixtures shared
// by the package tests and the scenario harness.
package testutil

import "sync"

// DeterministicClock is a logical clock for journal sequence numbers that
// remembers where it started. It implements journal.Sequencer.
//
// A clock started at a session's last recorded seq continues that session,
// and the (Start, Current] window holds exactly the seqs this clock issued.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	start int64
	seq   int64
}

// NewDeterministicClock creates a clock starting at 0. The first call to
// Next returns 1.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(0)
}

// NewDeterministicClockAt creates a clock whose first Next returns start+1.
// Negative starts are treated as 0.
func NewDeterministicClockAt(start int64) *DeterministicClock {
	if start < 0 {
		start = 0
	}
	return &DeterministicClock{start: start, seq: start}
}

// Next increments and returns the next sequence number.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the current sequence number without incrementing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Start returns the seq the clock was created at.
func (c *DeterministicClock) Start() int64 {
	return c.start
}

// Issued reports whether seq was handed out by this clock.
func (c *DeterministicClock) Issued(seq int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return seq > c.start && seq <= c.seq
}
