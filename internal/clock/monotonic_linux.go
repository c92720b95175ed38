//go:build linux

package clock

import "golang.org/x/sys/unix"

// Monotonic reads CLOCK_MONOTONIC, the clock the kernel uses to stamp GPIO
// line events, so its ticks can be compared with event timestamps directly.
type Monotonic struct{}

// Micros returns microseconds since boot.
func (Monotonic) Micros() uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		// CLOCK_MONOTONIC is always available on linux.
		panic("clock: clock_gettime: " + err.Error())
	}
	return uint64(ts.Nano() / 1000)
}
