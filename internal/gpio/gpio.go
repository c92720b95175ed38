// Package gpio provides the monitored input line and the status LED with
// hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"fmt"

	"github.com/sweeney/bounce-recorder/internal/capture"
)

// Pin is the monitored input.
type Pin interface {
	// Level returns the current logical level.
	Level() (capture.Level, error)

	// Watch installs the edge handler. It is called once per rising or
	// falling edge with the edge timestamp in microseconds on the
	// monotonic clock. Calls are serialized.
	Watch(handler func(ts uint64)) error

	// Close releases GPIO resources.
	Close() error
}

// LED is a status output.
type LED interface {
	Set(on bool) error
	Close() error
}

// Defaults (BCM numbering).
const (
	DefaultChip = "gpiochip0"
	DefaultPin  = 17
	DefaultLED  = 27
)

// Pull selects the input bias.
type Pull string

const (
	PullNone Pull = "none"
	PullUp   Pull = "up"
	PullDown Pull = "down"
)

// ParsePull validates a bias name.
func ParsePull(s string) (Pull, error) {
	switch p := Pull(s); p {
	case PullNone, PullUp, PullDown:
		return p, nil
	case "":
		return PullNone, nil
	}
	return "", fmt.Errorf("gpio: unknown pull %q (want none, up or down)", s)
}

// PinConfig describes the monitored line.
type PinConfig struct {
	Chip      string
	Offset    int
	Pull      Pull
	ActiveLow bool
}
