// Package capture contains the edge recorder and the settle-detection
// state machine for contact bounce measurement.
// This package has NO external dependencies (no GPIO, serial, MQTT or sleeps).
// Time is always injectable as microsecond ticks.
package capture

// Level is the logical level of the monitored pin.
type Level uint8

const (
	Low  Level = 0
	High Level = 1
)

// Toggle returns the opposite level.
func (l Level) Toggle() Level {
	return l ^ 1
}

// String returns "0" or "1", the form used on the serial link.
func (l Level) String() string {
	if l == High {
		return "1"
	}
	return "0"
}

// LevelOf converts a boolean pin reading to a Level.
func LevelOf(high bool) Level {
	if high {
		return High
	}
	return Low
}

// Transition is one recorded edge as it appears in a report.
type Transition struct {
	Index  int
	State  Level
	Offset uint64 // microseconds since the first edge of the burst
}

// Report is a completed bounce burst. It is built by the controller at the
// moment the burst settles and owns its own copy of the timestamps.
type Report struct {
	StartState Level
	// Edges holds absolute monotonic timestamps in microseconds.
	Edges      []uint64
	FinalState Level
	// FinalInferred is set when the pin could not be read at report time
	// and FinalState was derived from the edge count instead.
	FinalInferred bool
	// Dropped counts edges lost to saturation during this burst.
	Dropped uint64
}

// Start returns the absolute timestamp of the first edge.
func (r Report) Start() uint64 {
	if len(r.Edges) == 0 {
		return 0
	}
	return r.Edges[0]
}

// Duration returns the offset of the last edge from the first.
func (r Report) Duration() uint64 {
	if len(r.Edges) == 0 {
		return 0
	}
	return r.Edges[len(r.Edges)-1] - r.Edges[0]
}

// Transitions expands the edges into indexed transitions. The state on
// edge i is StartState toggled i times; it is assumed, not measured.
func (r Report) Transitions() []Transition {
	out := make([]Transition, len(r.Edges))
	start := r.Start()
	state := r.StartState
	for i, ts := range r.Edges {
		out[i] = Transition{Index: i, State: state, Offset: ts - start}
		state = state.Toggle()
	}
	return out
}

// InferredFinal returns the level the pin should rest at if every edge was
// a clean toggle.
func (r Report) InferredFinal() Level {
	if len(r.Edges)%2 == 1 {
		return r.StartState.Toggle()
	}
	return r.StartState
}

// Counts tracks totals since startup.
type Counts struct {
	Bursts  int
	Edges   int
	Dropped uint64
}
