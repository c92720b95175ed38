// Package report writes bounce reports in the line-oriented text format
// used on the serial link:
//
//	READY
//	START:<state>:<t0>
//	<index>:<state>:<offset>
//	END:<state>
package report

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/sweeney/bounce-recorder/internal/capture"
)

// Line markers.
const (
	MarkReady = "READY"
	MarkStart = "START"
	MarkEnd   = "END"
)

// Writer implements capture.Reporter on top of an io.Writer. Each message
// is built in full and handed to the underlying writer in one call, so a
// failed write affects only that message.
type Writer struct {
	mu  sync.Mutex
	w   io.Writer
	buf []byte
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Ready writes the READY line.
func (w *Writer) Ready() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf[:0], MarkReady+"\n"...)
	if _, err := w.w.Write(w.buf); err != nil {
		return fmt.Errorf("write ready: %w", err)
	}
	return nil
}

// Report writes one burst.
func (w *Writer) Report(r capture.Report) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = Append(w.buf[:0], r)
	if _, err := w.w.Write(w.buf); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Format returns the text form of r.
func Format(r capture.Report) string {
	return string(Append(nil, r))
}

// Append appends the text form of r to buf.
func Append(buf []byte, r capture.Report) []byte {
	buf = append(buf, MarkStart...)
	buf = append(buf, ':')
	buf = append(buf, r.StartState.String()...)
	buf = append(buf, ':')
	buf = strconv.AppendUint(buf, r.Start(), 10)
	buf = append(buf, '\n')

	for _, tr := range r.Transitions() {
		buf = strconv.AppendInt(buf, int64(tr.Index), 10)
		buf = append(buf, ':')
		buf = append(buf, tr.State.String()...)
		buf = append(buf, ':')
		buf = strconv.AppendUint(buf, tr.Offset, 10)
		buf = append(buf, '\n')
	}

	buf = append(buf, MarkEnd...)
	buf = append(buf, ':')
	buf = append(buf, r.FinalState.String()...)
	buf = append(buf, '\n')
	return buf
}
