//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/bounce-recorder/internal/capture"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealPin is not available on non-Linux platforms.
type RealPin struct{}

// NewRealPin returns an error on non-Linux platforms.
func NewRealPin(cfg PinConfig) (*RealPin, error) {
	return nil, errUnsupported
}

// Level is not implemented on non-Linux platforms.
func (p *RealPin) Level() (capture.Level, error) {
	return capture.Low, errUnsupported
}

// Watch is not implemented on non-Linux platforms.
func (p *RealPin) Watch(handler func(ts uint64)) error {
	return errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (p *RealPin) Close() error {
	return nil
}

// RealLED is not available on non-Linux platforms.
type RealLED struct{}

// NewRealLED returns an error on non-Linux platforms.
func NewRealLED(chipName string, offset int) (*RealLED, error) {
	return nil, errUnsupported
}

// Set is not implemented on non-Linux platforms.
func (l *RealLED) Set(on bool) error {
	return errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (l *RealLED) Close() error {
	return nil
}
