// Package manchester is a software (bit-banged) transceiver for manchester code
// on a half-duplex, self clocked single wire bus with DALI timing.
// https://en.wikipedia.org/wiki/Manchester_code
//
// The Encoder drives the transmit line with busy-wait delays, the Decoder
// rebuilds bits from the timestamps of edges on the receive line and the
// Transceiver combines both into address/data transfers.
package manchester

import (
	"errors"
	"fmt"
	"math/bits"
	"time"
)

// ErrInvalidTiming is returned by Params.Validate.
var ErrInvalidTiming = errors.New("invalid timing parameters")

// Params defines the real time targets the tick table is derived from.
type Params struct {
	// HalfBit is the duration of one manchester half bit.
	HalfBit time.Duration
	// FullBit is the duration of one bit (two half bits).
	FullBit time.Duration
	// ShortLong is the boundary between a short (one half bit) and a
	// long (two half bits) edge interval, about 3/4 of a bit.
	ShortLong time.Duration
	// Stop is the idle gap the transmitter keeps after a frame.
	Stop time.Duration
	// BackwardStop is the gap on the receive line after which a frame in
	// progress is dropped and decoding restarts.
	BackwardStop time.Duration
}

// DALI holds the timing of a 1200 bit/s DALI bus.
var DALI = Params{
	HalfBit:      416667 * time.Nanosecond,
	FullBit:      833333 * time.Nanosecond,
	ShortLong:    625000 * time.Nanosecond,
	Stop:         5500000 * time.Nanosecond,
	BackwardStop: 5500 * time.Microsecond,
}

// Validate checks the ordering of the parameters:
// BackwardStop >= Stop > ShortLong > HalfBit and FullBit > HalfBit.
func (p Params) Validate() error {
	switch {
	case p.HalfBit <= 0, p.FullBit <= 0, p.ShortLong <= 0, p.Stop <= 0, p.BackwardStop <= 0:
		return fmt.Errorf("%w: durations must be positive", ErrInvalidTiming)
	case p.FullBit <= p.HalfBit:
		return fmt.Errorf("%w: full bit %v <= half bit %v", ErrInvalidTiming, p.FullBit, p.HalfBit)
	case p.ShortLong <= p.HalfBit:
		return fmt.Errorf("%w: short/long boundary %v <= half bit %v", ErrInvalidTiming, p.ShortLong, p.HalfBit)
	case p.ShortLong >= p.FullBit:
		return fmt.Errorf("%w: short/long boundary %v >= full bit %v", ErrInvalidTiming, p.ShortLong, p.FullBit)
	case p.Stop <= p.ShortLong:
		return fmt.Errorf("%w: stop %v <= short/long boundary %v", ErrInvalidTiming, p.Stop, p.ShortLong)
	case p.BackwardStop < p.Stop:
		return fmt.Errorf("%w: backward stop %v < stop %v", ErrInvalidTiming, p.BackwardStop, p.Stop)
	}
	return nil
}

// Timing is the table of thresholds in clock ticks.
// It is computed once and never modified, so it can be shared freely.
type Timing struct {
	HalfBit           uint64
	FullBit           uint64
	ShortLongBoundary uint64
	Idle              uint64
	Reset             uint64
}

// Configure derives the DALI timing table for a clock running at ticksPerSecond.
func Configure(ticksPerSecond uint64) Timing {
	return ConfigureParams(ticksPerSecond, DALI)
}

// ConfigureParams derives the timing table of p for a clock running at ticksPerSecond.
// Every entry is rounded up, so a "elapsed > threshold" test never fires early.
// ticksPerSecond must not be 0; a zero clock yields a table of 1 tick entries.
func ConfigureParams(ticksPerSecond uint64, p Params) Timing {
	return Timing{
		HalfBit:           ticks(ticksPerSecond, p.HalfBit),
		FullBit:           ticks(ticksPerSecond, p.FullBit),
		ShortLongBoundary: ticks(ticksPerSecond, p.ShortLong),
		Idle:              ticks(ticksPerSecond, p.Stop),
		Reset:             ticks(ticksPerSecond, p.BackwardStop),
	}
}

// ticks converts d to clock ticks: tps * d / 1s + 1.
func ticks(tps uint64, d time.Duration) uint64 {
	if d <= 0 {
		return 1
	}

	hi, lo := bits.Mul64(tps, uint64(d))
	if hi >= uint64(time.Second) {
		// quotient does not fit into 64 bit
		return ^uint64(0)
	}

	q, _ := bits.Div64(hi, lo, uint64(time.Second))
	return q + 1
}

// String returns the table in a human readable format.
func (t Timing) String() string {
	return fmt.Sprintf("half bit: %d, full bit: %d, short/long: %d, idle: %d, reset: %d",
		t.HalfBit, t.FullBit, t.ShortLongBoundary, t.Idle, t.Reset)
}
