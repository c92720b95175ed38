//go:build !linux

package clock

import "time"

var epoch = time.Now()

// Monotonic counts microseconds from process start using the runtime's
// monotonic clock.
type Monotonic struct{}

// Micros returns microseconds since process start.
func (Monotonic) Micros() uint64 {
	return uint64(time.Since(epoch) / time.Microsecond)
}
