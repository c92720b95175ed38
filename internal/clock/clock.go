// Package clock provides microsecond tick sources for the recorder.
package clock

import "sync/atomic"

// Fake is a manually advanced clock. Safe for concurrent use.
type Fake struct {
	now atomic.Uint64
}

// NewFake creates a Fake clock reading start.
func NewFake(start uint64) *Fake {
	f := &Fake{}
	f.now.Store(start)
	return f
}

// Micros returns the current fake time.
func (f *Fake) Micros() uint64 {
	return f.now.Load()
}

// Set moves the clock to t.
func (f *Fake) Set(t uint64) {
	f.now.Store(t)
}

// Advance moves the clock forward by d microseconds and returns the new time.
func (f *Fake) Advance(d uint64) uint64 {
	return f.now.Add(d)
}
