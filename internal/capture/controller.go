package capture

import (
	"errors"
	"fmt"
)

// DefaultSettle is the quiet period, in microseconds, after which a burst
// is considered finished.
const DefaultSettle = 200000

// DefaultCapacity is the default number of edges kept per burst.
const DefaultCapacity = 200

// LevelReader reads the current logical level of the monitored pin.
type LevelReader interface {
	Level() (Level, error)
}

// Reporter receives controller output.
type Reporter interface {
	// Ready is called once after the recorder is armed.
	Ready() error
	// Report is called once per settled burst.
	Report(r Report) error
}

// ErrStarted is returned by Start when called twice.
var ErrStarted = errors.New("capture: controller already started")

// Controller decides when a burst has settled, hands it to the reporter and
// resets the recorder for the next one. All methods are called from the
// polling side; the recorder is the only part touched by the edge handler.
type Controller struct {
	settle   uint64
	rec      *Recorder
	pin      LevelReader
	reporter Reporter

	started    bool
	startState Level
	dropBase   uint64
	counts     Counts
}

// NewController creates a controller with the given settle time in
// microseconds.
func NewController(settle uint64, rec *Recorder, pin LevelReader, reporter Reporter) *Controller {
	return &Controller{
		settle:   settle,
		rec:      rec,
		pin:      pin,
		reporter: reporter,
	}
}

// Start samples the initial pin level, arms the recorder and announces
// readiness. The recorder stays armed for the life of the controller.
func (c *Controller) Start() error {
	if c.started {
		return ErrStarted
	}
	lvl, err := c.pin.Level()
	if err != nil {
		return fmt.Errorf("read start level: %w", err)
	}
	c.startState = lvl
	c.dropBase = c.rec.Dropped()
	c.rec.Arm()
	c.started = true
	if err := c.reporter.Ready(); err != nil {
		return fmt.Errorf("announce ready: %w", err)
	}
	return nil
}

// Poll checks whether the current burst has settled at time now. It never
// blocks. When the burst is complete it is reported and the recorder is
// reset; the returned report is non-nil in that case even if the reporter
// failed, and the error describes the failure.
func (c *Controller) Poll(now uint64) (*Report, error) {
	n := c.rec.Count()
	if n == 0 {
		return nil, nil
	}

	last, ok := c.rec.Last()
	if !ok {
		return nil, nil
	}
	drops := c.rec.Dropped() - c.dropBase
	if drops > 0 {
		// Saturated: edges are still arriving even though none are stored.
		if d := c.rec.LastDropped(); d > last {
			last = d
		}
	}
	if now <= last || now-last < c.settle {
		return nil, nil
	}

	edges := c.rec.Snapshot()
	if len(edges) > n {
		edges = edges[:n]
	}
	rep := Report{
		StartState: c.startState,
		Edges:      edges,
		Dropped:    drops,
	}
	lvl, err := c.pin.Level()
	switch {
	case err != nil:
		rep.FinalState = rep.InferredFinal()
		rep.FinalInferred = true
	case c.rec.Count() > len(edges):
		// An edge of the next burst may have landed before the read.
		rep.FinalState = rep.InferredFinal()
		rep.FinalInferred = true
	default:
		rep.FinalState = lvl
	}

	reportErr := c.reporter.Report(rep)

	c.rec.Release(len(edges))
	c.dropBase += drops
	c.counts.Bursts++
	c.counts.Edges += len(edges)
	c.counts.Dropped += drops

	// Edges kept past the snapshot began at the level this burst ended on.
	// Only an empty log allows the pin to be re-sampled.
	c.startState = rep.FinalState
	if c.rec.Count() == 0 {
		if lvl, err := c.pin.Level(); err == nil && c.rec.Count() == 0 {
			c.startState = lvl
		}
	}

	if reportErr != nil {
		return &rep, fmt.Errorf("report burst: %w", reportErr)
	}
	return &rep, nil
}

// Capturing reports whether a burst is in progress.
func (c *Controller) Capturing() bool {
	return c.rec.Count() > 0
}

// StartState returns the baseline level for the next (or current) burst.
func (c *Controller) StartState() Level {
	return c.startState
}

// Settle returns the settle time in microseconds.
func (c *Controller) Settle() uint64 {
	return c.settle
}

// Counts returns totals since startup.
func (c *Controller) Counts() Counts {
	return c.counts
}
