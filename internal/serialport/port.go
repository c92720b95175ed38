// Package serialport opens serial links for the report stream.
package serialport

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate matches the recorder's serial link.
const DefaultBaudRate = 115200

// Open opens the named port in 8N1 mode at baud.
func Open(name string, baud int) (serial.Port, error) {
	if baud == 0 {
		baud = DefaultBaudRate
	}
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	return port, nil
}

// OpenReader opens the named port for reading lines. Reads time out after
// timeout so callers can notice cancellation; a timed out read returns
// zero bytes and no error.
func OpenReader(name string, baud int, timeout time.Duration) (serial.Port, error) {
	port, err := Open(name, baud)
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return port, nil
}

// List returns the names of available serial ports.
func List() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}

// NewLineScanner returns a scanner yielding lines terminated by "\n" or
// "\r\n" with the terminator removed. A zero-byte read (serial timeout)
// does not end the scan.
func NewLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(patientReader{r})
	sc.Split(scanLines)
	return sc
}

func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, bytes.TrimRight(data[:i], "\r"), nil
	}
	if atEOF {
		return len(data), bytes.TrimRight(data, "\r"), nil
	}
	return 0, nil, nil
}

// patientReader retries zero-byte reads so bufio.Scanner does not give up
// with io.ErrNoProgress on an idle serial line.
type patientReader struct {
	r io.Reader
}

func (p patientReader) Read(b []byte) (int, error) {
	for {
		n, err := p.r.Read(b)
		if n > 0 || err != nil {
			return n, err
		}
	}
}
