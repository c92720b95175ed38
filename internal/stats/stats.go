// Package stats decodes captured bounce logs and summarizes them.
package stats

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sweeney/bounce-recorder/internal/capture"
	"github.com/sweeney/bounce-recorder/internal/report"
)

// ErrNoSwitches is returned by Summarize for an empty input.
var ErrNoSwitches = errors.New("stats: no switches recorded")

// Transition is one edge of a decoded switch.
type Transition struct {
	State  capture.Level
	Moment int64 // microseconds since the switch started
}

// Switch is one decoded START..END record.
type Switch struct {
	StartState  capture.Level
	StartMoment int64
	Transitions []Transition
	EndState    capture.Level
	// Complete is false when the log ended (or the device restarted)
	// before the END line.
	Complete bool
}

// Duration returns the moment of the last transition.
func (s *Switch) Duration() int64 {
	if len(s.Transitions) == 0 {
		return 0
	}
	return s.Transitions[len(s.Transitions)-1].Moment
}

// ParseError reports a malformed line.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes a serial log. Lines outside a record other than START are
// ignored, so logs may carry READY lines and boot noise.
func Parse(r io.Reader) ([]*Switch, error) {
	var (
		switches []*Switch
		curr     *Switch
		lineNo   int
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		parts := strings.Split(line, ":")
		fail := func(err error) error {
			return &ParseError{Line: lineNo, Text: line, Err: err}
		}

		switch parts[0] {
		case report.MarkReady:
			// Device restarted; anything open is abandoned.
			curr = nil
			continue
		case report.MarkStart:
			if len(parts) != 3 {
				return nil, fail(errors.New("want START:<state>:<moment>"))
			}
			state, err := parseLevel(parts[1])
			if err != nil {
				return nil, fail(err)
			}
			moment, err := strconv.ParseInt(parts[2], 10, 64)
			if err != nil {
				return nil, fail(fmt.Errorf("start moment: %w", err))
			}
			curr = &Switch{StartState: state, StartMoment: moment}
			switches = append(switches, curr)
			continue
		}

		if curr == nil {
			continue
		}

		if parts[0] == report.MarkEnd {
			if len(parts) != 2 {
				return nil, fail(errors.New("want END:<state>"))
			}
			state, err := parseLevel(parts[1])
			if err != nil {
				return nil, fail(err)
			}
			curr.EndState = state
			curr.Complete = true
			curr = nil
			continue
		}

		if len(parts) != 3 {
			return nil, fail(errors.New("want <index>:<state>:<moment>"))
		}
		nr, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fail(fmt.Errorf("index: %w", err))
		}
		if nr != len(curr.Transitions) {
			return nil, fail(fmt.Errorf("index %d out of order, want %d", nr, len(curr.Transitions)))
		}
		state, err := parseLevel(parts[1])
		if err != nil {
			return nil, fail(err)
		}
		moment, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return nil, fail(fmt.Errorf("moment: %w", err))
		}
		curr.Transitions = append(curr.Transitions, Transition{State: state, Moment: moment})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	return switches, nil
}

func parseLevel(s string) (capture.Level, error) {
	switch s {
	case "0":
		return capture.Low, nil
	case "1":
		return capture.High, nil
	}
	return capture.Low, fmt.Errorf("unknown state %q", s)
}

// Combine merges switches that were split because the recorder's settle
// time was shorter than settle: a switch starting within settle
// microseconds of the previous switch's last transition is appended to it.
// A negative gap means the clock restarted and always starts a new switch.
func Combine(switches []*Switch, settle int64) []*Switch {
	var out []*Switch
	var prevEnd int64
	for _, s := range switches {
		gap := s.StartMoment - prevEnd
		if len(out) == 0 || gap > settle || gap < 0 {
			cp := *s
			cp.Transitions = append([]Transition(nil), s.Transitions...)
			out = append(out, &cp)
		} else {
			prev := out[len(out)-1]
			shift := s.StartMoment - prev.StartMoment
			for _, tr := range s.Transitions {
				prev.Transitions = append(prev.Transitions, Transition{State: tr.State, Moment: tr.Moment + shift})
			}
			prev.EndState = s.EndState
			prev.Complete = s.Complete
		}
		prevEnd = s.StartMoment + s.Duration()
	}
	return out
}

// Summary describes a set of switches.
type Summary struct {
	Total            int
	MostTransitions  int
	LeastTransitions int
	AvgTransitions   float64
	Slowest          int64
	Quickest         int64
	AvgDuration      float64
}

// Summarize computes transition and duration statistics.
func Summarize(switches []*Switch) (Summary, error) {
	if len(switches) == 0 {
		return Summary{}, ErrNoSwitches
	}
	first := switches[0]
	sum := Summary{
		Total:            len(switches),
		MostTransitions:  len(first.Transitions),
		LeastTransitions: len(first.Transitions),
		Slowest:          first.Duration(),
		Quickest:         first.Duration(),
	}
	var transitions, duration int64
	for _, s := range switches {
		n := len(s.Transitions)
		d := s.Duration()
		transitions += int64(n)
		duration += d
		sum.MostTransitions = max(sum.MostTransitions, n)
		sum.LeastTransitions = min(sum.LeastTransitions, n)
		sum.Slowest = max(sum.Slowest, d)
		sum.Quickest = min(sum.Quickest, d)
	}
	sum.AvgTransitions = float64(transitions) / float64(len(switches))
	sum.AvgDuration = float64(duration) / float64(len(switches))
	return sum, nil
}

// WriteSummary prints s in the tool's plain text form.
func WriteSummary(w io.Writer, s Summary) error {
	_, err := fmt.Fprintf(w,
		"Total recorded switches: %d\n"+
			"Most/Least/avg transitions for a switch %d %d %.2f\n"+
			"Slowest/Quickest/avg switch %d %d %.2f\n",
		s.Total,
		s.MostTransitions, s.LeastTransitions, s.AvgTransitions,
		s.Slowest, s.Quickest, s.AvgDuration)
	return err
}
