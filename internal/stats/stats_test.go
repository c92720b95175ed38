package stats

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/bounce-recorder/internal/capture"
	"github.com/sweeney/bounce-recorder/internal/report"
)

const sampleLog = `boot noise
READY
START:0:1000000
0:0:0
1:1:50
2:0:120
END:1
START:1:3000000
0:1:0
END:0
`

func TestParse(t *testing.T) {
	got, err := Parse(strings.NewReader(sampleLog))
	require.NoError(t, err)
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, capture.Low, first.StartState)
	assert.Equal(t, int64(1000000), first.StartMoment)
	assert.Equal(t, []Transition{
		{State: capture.Low, Moment: 0},
		{State: capture.High, Moment: 50},
		{State: capture.Low, Moment: 120},
	}, first.Transitions)
	assert.Equal(t, capture.High, first.EndState)
	assert.True(t, first.Complete)
	assert.Equal(t, int64(120), first.Duration())

	second := got[1]
	assert.Equal(t, capture.High, second.StartState)
	assert.Len(t, second.Transitions, 1)
	assert.Equal(t, int64(0), second.Duration())
}

func TestParseCRLF(t *testing.T) {
	log := strings.ReplaceAll(sampleLog, "\n", "\r\n")
	got, err := Parse(strings.NewReader(log))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestParseRoundTripsWriterOutput(t *testing.T) {
	var buf bytes.Buffer
	w := report.NewWriter(&buf)
	require.NoError(t, w.Ready())
	require.NoError(t, w.Report(capture.Report{
		StartState: capture.High,
		Edges:      []uint64{400, 410, 415, 470},
		FinalState: capture.High,
	}))

	got, err := Parse(&buf)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(400), got[0].StartMoment)
	assert.Equal(t, int64(70), got[0].Duration())
	assert.Len(t, got[0].Transitions, 4)
}

func TestParseIncompleteRecord(t *testing.T) {
	log := "START:0:10\n0:0:0\n1:1:5\nREADY\nSTART:1:99\n0:1:0\nEND:0\n"
	got, err := Parse(strings.NewReader(log))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.False(t, got[0].Complete)
	assert.Len(t, got[0].Transitions, 2)
	assert.True(t, got[1].Complete)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		log  string
		line int
	}{
		{"bad start", "START:0\n", 1},
		{"bad start state", "START:2:10\n", 1},
		{"bad start moment", "START:0:abc\n", 1},
		{"bad index", "START:0:1\nx:0:0\n", 2},
		{"out of order", "START:0:1\n0:0:0\n2:1:5\n", 3},
		{"short edge", "START:0:1\n0:0\n", 2},
		{"bad end", "START:0:1\nEND\n", 2},
		{"bad end state", "START:0:1\nEND:x\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.log))
			require.Error(t, err)
			var pe *ParseError
			require.True(t, errors.As(err, &pe), "expected ParseError, got %T", err)
			assert.Equal(t, tt.line, pe.Line)
		})
	}
}

func sw(start int64, moments ...int64) *Switch {
	s := &Switch{StartMoment: start, Complete: true}
	state := capture.Low
	for _, m := range moments {
		s.Transitions = append(s.Transitions, Transition{State: state, Moment: m})
		state = state.Toggle()
	}
	return s
}

func TestCombine(t *testing.T) {
	in := []*Switch{
		sw(1000, 0, 100),
		sw(1500, 0, 20),    // 400us after previous end: merge
		sw(900000, 0),      // far away: new switch
		sw(100, 0, 10, 30), // clock went backwards: new switch
	}
	got := Combine(in, 200000)
	require.Len(t, got, 3)

	assert.Equal(t, []int64{0, 100, 500, 520}, moments(got[0]))
	assert.Equal(t, int64(520), got[0].Duration())
	assert.Equal(t, int64(900000), got[1].StartMoment)
	assert.Equal(t, int64(100), got[2].StartMoment)

	// Inputs are not modified.
	assert.Len(t, in[0].Transitions, 2)
}

func TestCombineFirstSwitchNearZero(t *testing.T) {
	got := Combine([]*Switch{sw(10, 0, 5)}, 200000)
	require.Len(t, got, 1)
	assert.Equal(t, int64(10), got[0].StartMoment)
}

func moments(s *Switch) []int64 {
	var out []int64
	for _, tr := range s.Transitions {
		out = append(out, tr.Moment)
	}
	return out
}

func TestSummarize(t *testing.T) {
	got, err := Summarize([]*Switch{
		sw(0, 0, 100, 300),
		sw(0, 0),
		sw(0, 0, 50),
	})
	require.NoError(t, err)
	assert.Equal(t, Summary{
		Total:            3,
		MostTransitions:  3,
		LeastTransitions: 1,
		AvgTransitions:   2,
		Slowest:          300,
		Quickest:         0,
		AvgDuration:      350.0 / 3,
	}, got)
}

func TestSummarizeEmpty(t *testing.T) {
	_, err := Summarize(nil)
	assert.ErrorIs(t, err, ErrNoSwitches)
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, Summary{
		Total: 2, MostTransitions: 5, LeastTransitions: 1, AvgTransitions: 3,
		Slowest: 900, Quickest: 10, AvgDuration: 455,
	}))
	assert.Equal(t,
		"Total recorded switches: 2\n"+
			"Most/Least/avg transitions for a switch 5 1 3.00\n"+
			"Slowest/Quickest/avg switch 900 10 455.00\n",
		buf.String())
}
