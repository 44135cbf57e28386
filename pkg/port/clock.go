package port

import "time"

// NanosecondsPerSecond is the tick rate of MonotonicClock.
const NanosecondsPerSecond = uint64(time.Second)

// MonotonicClock counts nanoseconds on the monotonic clock of the runtime.
type MonotonicClock struct {
	epoch time.Time
}

// NewMonotonicClock returns a clock starting at tick 0.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{epoch: time.Now()}
}

// Now returns the nanoseconds elapsed since the clock was created.
func (c *MonotonicClock) Now() uint64 {
	return uint64(time.Since(c.epoch))
}

// TicksPerSecond returns 1e9.
func (c *MonotonicClock) TicksPerSecond() uint64 {
	return NanosecondsPerSecond
}

