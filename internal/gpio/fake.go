package gpio

import (
	"errors"
	"sync"

	"github.com/sweeney/bounce-recorder/internal/capture"
)

// FakePin is a test double with a settable level and injectable edges.
type FakePin struct {
	mu      sync.Mutex
	level   capture.Level
	handler func(uint64)

	// LevelError, if set, will be returned by Level().
	LevelError error

	// Reads counts calls to Level().
	Reads int

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakePin creates a FakePin resting at level.
func NewFakePin(level capture.Level) *FakePin {
	return &FakePin{level: level}
}

// Level returns the scripted level.
func (f *FakePin) Level() (capture.Level, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reads++
	if f.LevelError != nil {
		return capture.Low, f.LevelError
	}
	return f.level, nil
}

// SetLevel changes the level returned by Level without firing an edge.
func (f *FakePin) SetLevel(l capture.Level) {
	f.mu.Lock()
	f.level = l
	f.mu.Unlock()
}

// Watch stores the handler.
func (f *FakePin) Watch(handler func(ts uint64)) error {
	f.mu.Lock()
	f.handler = handler
	f.mu.Unlock()
	return nil
}

// Edge toggles the level and calls the handler with ts.
// Returns an error if no handler is installed.
func (f *FakePin) Edge(ts uint64) error {
	f.mu.Lock()
	h := f.handler
	f.level = f.level.Toggle()
	f.mu.Unlock()
	if h == nil {
		return errors.New("no handler installed")
	}
	h(ts)
	return nil
}

// Close marks the pin as closed.
func (f *FakePin) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// FakeLED records LED state changes.
type FakeLED struct {
	// States contains every value passed to Set.
	States []bool

	// SetError, if set, will be returned by Set.
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// Set records the new state.
func (f *FakeLED) Set(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.States = append(f.States, on)
	return nil
}

// On reports the most recent state.
func (f *FakeLED) On() bool {
	return len(f.States) > 0 && f.States[len(f.States)-1]
}

// Close marks the LED as closed.
func (f *FakeLED) Close() error {
	f.Closed = true
	return nil
}
