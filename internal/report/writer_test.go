package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/sweeney/bounce-recorder/internal/capture"
)

func TestWriterReady(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	if err := w.Ready(); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if buf.String() != "READY\n" {
		t.Errorf("got %q, want %q", buf.String(), "READY\n")
	}
}

func TestWriterReport(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	r := capture.Report{
		StartState: capture.Low,
		Edges:      []uint64{5000000, 5000050, 5000120},
		FinalState: capture.High,
	}
	if err := w.Report(r); err != nil {
		t.Fatalf("Report: %v", err)
	}

	want := "START:0:5000000\n" +
		"0:0:0\n" +
		"1:1:50\n" +
		"2:0:120\n" +
		"END:1\n"
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestFormatStartHigh(t *testing.T) {
	r := capture.Report{
		StartState: capture.High,
		Edges:      []uint64{10, 11},
		FinalState: capture.High,
	}
	lines := strings.Split(strings.TrimSuffix(Format(r), "\n"), "\n")
	want := []string{"START:1:10", "0:1:0", "1:0:1", "END:1"}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d: %q", len(want), len(lines), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestFormatLargeTimestamp(t *testing.T) {
	r := capture.Report{Edges: []uint64{18446744073709551000, 18446744073709551615}}
	got := Format(r)
	if !strings.HasPrefix(got, "START:0:18446744073709551000\n") {
		t.Errorf("unexpected start line in %q", got)
	}
	if !strings.Contains(got, "\n1:1:615\n") {
		t.Errorf("unexpected offset in %q", got)
	}
}

type failWriter struct{}

func (failWriter) Write(p []byte) (int, error) { return 0, errors.New("link down") }

func TestWriterError(t *testing.T) {
	w := NewWriter(failWriter{})
	if err := w.Ready(); err == nil {
		t.Error("expected error from Ready")
	}
	w = NewWriter(failWriter{})
	if err := w.Report(capture.Report{Edges: []uint64{1}}); err == nil {
		t.Error("expected error from Report")
	}
}

// flakyWriter fails the first failures writes and then accepts everything.
type flakyWriter struct {
	failures int
	buf      bytes.Buffer
}

func (f *flakyWriter) Write(p []byte) (int, error) {
	if f.failures > 0 {
		f.failures--
		return 0, errors.New("transient")
	}
	return f.buf.Write(p)
}

func TestWriterRecoversAfterFailedWrite(t *testing.T) {
	sink := &flakyWriter{failures: 1}
	w := NewWriter(sink)

	r := capture.Report{StartState: capture.Low, Edges: []uint64{100, 150}, FinalState: capture.Low}
	if err := w.Report(r); err == nil {
		t.Fatal("expected the first write to fail")
	}
	if err := w.Report(r); err != nil {
		t.Fatalf("second Report should succeed once the link recovers: %v", err)
	}

	want := "START:0:100\n0:0:0\n1:1:50\nEND:0\n"
	if got := sink.buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
