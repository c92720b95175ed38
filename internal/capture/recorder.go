package capture

import "sync/atomic"

// Clock supplies monotonic microsecond ticks.
type Clock interface {
	Micros() uint64
}

// Recorder stores edge timestamps in a fixed-capacity log.
//
// It is a single-producer/single-consumer structure: Record and OnEdge are
// called from the edge handler only, everything else from the polling side.
// The producer owns head and the consumer owns tail; neither writes the
// other's cursor. A slot is stored before head is advanced past it, so any
// slot below an observed head holds a complete timestamp.
type Recorder struct {
	clock Clock
	slots []atomic.Uint64

	head atomic.Uint64 // next slot to write, producer only
	tail atomic.Uint64 // first slot of the current burst, consumer only

	armed    atomic.Bool
	dropped  atomic.Uint64
	lastDrop atomic.Uint64
}

// NewRecorder creates a disarmed recorder with room for capacity edges per
// burst. Capacity must be positive.
func NewRecorder(capacity int, clock Clock) *Recorder {
	if capacity <= 0 {
		panic("capture: recorder capacity must be positive")
	}
	return &Recorder{
		clock: clock,
		slots: make([]atomic.Uint64, capacity),
	}
}

// Capacity returns the maximum number of edges kept per burst.
func (r *Recorder) Capacity() int {
	return len(r.slots)
}

// Arm enables edge recording.
func (r *Recorder) Arm() { r.armed.Store(true) }

// Disarm disables edge recording. Edges arriving while disarmed are ignored
// and not counted as dropped.
func (r *Recorder) Disarm() { r.armed.Store(false) }

// Armed reports whether edges are currently recorded.
func (r *Recorder) Armed() bool { return r.armed.Load() }

// OnEdge records an edge stamped with the recorder's clock.
func (r *Recorder) OnEdge() bool {
	return r.Record(r.clock.Micros())
}

// Record appends ts to the log. It returns false when the recorder is
// disarmed or the log is full; a full log drops the edge silently apart
// from bumping the drop counter.
func (r *Recorder) Record(ts uint64) bool {
	if !r.armed.Load() {
		return false
	}
	h := r.head.Load()
	if h-r.tail.Load() >= uint64(len(r.slots)) {
		r.lastDrop.Store(ts)
		r.dropped.Add(1)
		return false
	}
	r.slots[h%uint64(len(r.slots))].Store(ts)
	r.head.Store(h + 1)
	return true
}

// Count returns the number of edges recorded in the current burst.
func (r *Recorder) Count() int {
	return int(r.head.Load() - r.tail.Load())
}

// Last returns the most recently recorded timestamp of the current burst.
// ok is false when the burst is empty.
func (r *Recorder) Last() (ts uint64, ok bool) {
	h := r.head.Load()
	if h == r.tail.Load() {
		return 0, false
	}
	return r.slots[(h-1)%uint64(len(r.slots))].Load(), true
}

// Dropped returns the total number of edges dropped since creation.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// LastDropped returns the timestamp of the most recent dropped edge.
func (r *Recorder) LastDropped() uint64 {
	return r.lastDrop.Load()
}

// Snapshot copies the current burst out of the log. The returned slice is
// owned by the caller. Pass its length to Release once it has been used.
func (r *Recorder) Snapshot() []uint64 {
	t := r.tail.Load()
	h := r.head.Load()
	out := make([]uint64, 0, h-t)
	for i := t; i < h; i++ {
		out = append(out, r.slots[i%uint64(len(r.slots))].Load())
	}
	return out
}

// Release drops the first n edges of the current burst from the log.
// Edges recorded after the caller's snapshot stay and start the next burst.
// Slots are not cleared.
func (r *Recorder) Release(n int) {
	t := r.tail.Load()
	if avail := r.head.Load() - t; uint64(n) > avail {
		n = int(avail)
	}
	r.tail.Store(t + uint64(n))
}

// Reset sets the count back to zero.
func (r *Recorder) Reset() {
	r.tail.Store(r.head.Load())
}
