package manchester

import "dali/pkg/port"

// Encoder drives the transmit line with manchester coded bits.
//
// All delays are busy waits against the clock. The bit timing tolerance of
// the bus is tighter than the scheduling latency of a sleeping goroutine.
type Encoder struct {
	timing Timing
	io     port.IO
	clock  port.Clock
}

// NewEncoder returns an Encoder writing to io with delays taken from t.
func NewEncoder(t Timing, io port.IO, clock port.Clock) *Encoder {
	return &Encoder{timing: t, io: io, clock: clock}
}

// Bit sends one bit: the inverted level for a half bit, then the level of
// the bit for a half bit. The mid bit edge encodes the value.
func (e *Encoder) Bit(bit bool) {
	e.io.SetOutput(port.Level(!bit))
	e.delay(e.timing.HalfBit)
	e.io.SetOutput(port.Level(bit))
	e.delay(e.timing.HalfBit)
}

// Byte sends the 8 bits of b, most significant bit first.
func (e *Encoder) Byte(b byte) {
	for mask := byte(1 << 7); mask != 0; mask >>= 1 {
		e.Bit(b&mask != 0)
	}
}

// Idle releases the line (high) and keeps it idle for the stop gap.
func (e *Encoder) Idle() {
	e.io.SetOutput(port.High)
	e.delay(e.timing.Idle)
}

// delay spins until n ticks have passed.
func (e *Encoder) delay(n uint64) {
	start := e.clock.Now()
	for e.clock.Now()-start < n {
	}
}
