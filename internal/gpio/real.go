//go:build linux

package gpio

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/bounce-recorder/internal/capture"
)

// RealPin watches an input line through the GPIO character device.
// Edges are stamped by the kernel on CLOCK_MONOTONIC.
type RealPin struct {
	chip    *gpiocdev.Chip
	line    *gpiocdev.Line
	handler atomic.Pointer[func(uint64)]
}

// NewRealPin requests the line as an input with edge detection on both
// edges. Events are discarded until Watch installs a handler.
func NewRealPin(cfg PinConfig) (*RealPin, error) {
	chip, err := gpiocdev.NewChip(cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", cfg.Chip, err)
	}

	p := &RealPin{chip: chip}
	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(p.onEvent),
	}
	switch cfg.Pull {
	case PullUp:
		opts = append(opts, gpiocdev.WithPullUp)
	case PullDown:
		opts = append(opts, gpiocdev.WithPullDown)
	default:
		opts = append(opts, gpiocdev.WithBiasDisabled)
	}
	if cfg.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	line, err := chip.RequestLine(cfg.Offset, opts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request pin %d: %w", cfg.Offset, err)
	}
	p.line = line
	return p, nil
}

func (p *RealPin) onEvent(evt gpiocdev.LineEvent) {
	if h := p.handler.Load(); h != nil {
		(*h)(uint64(evt.Timestamp / time.Microsecond))
	}
}

// Watch installs the edge handler.
func (p *RealPin) Watch(handler func(ts uint64)) error {
	p.handler.Store(&handler)
	return nil
}

// Level returns the logical level (after active-low inversion).
func (p *RealPin) Level() (capture.Level, error) {
	v, err := p.line.Value()
	if err != nil {
		return capture.Low, fmt.Errorf("read pin: %w", err)
	}
	return capture.LevelOf(v != 0), nil
}

// Close stops edge detection and releases the line and chip.
func (p *RealPin) Close() error {
	var errs []error

	if p.line != nil {
		if err := p.line.Reconfigure(gpiocdev.WithoutEdges); err != nil {
			errs = append(errs, fmt.Errorf("disable edges: %w", err))
		}
		if err := p.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin: %w", err))
		}
	}
	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealLED drives an output line.
type RealLED struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealLED requests the line as an output, initially off.
func NewRealLED(chipName string, offset int) (*RealLED, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}
	line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request led %d: %w", offset, err)
	}
	return &RealLED{chip: chip, line: line}, nil
}

// Set turns the LED on or off.
func (l *RealLED) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := l.line.SetValue(v); err != nil {
		return fmt.Errorf("set led: %w", err)
	}
	return nil
}

// Close turns the LED off and returns the line to an input, matching the
// boot default.
func (l *RealLED) Close() error {
	var errs []error
	if err := l.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("clear led: %w", err))
	}
	if err := l.line.Reconfigure(gpiocdev.AsInput); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure led: %w", err))
	}
	if err := l.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close led: %w", err))
	}
	if err := l.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chip: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
