package manchester

// FrameHalfBits is the number of half bits of a complete frame:
// the second half of the start bit plus 8 bits of 2 half bits each.
const FrameHalfBits = 17

// Decoder rebuilds bits from the edges of the receive line.
//
// Only the time between two edges is used, the direction of an edge is ignored:
//   - a gap above Timing.Reset is an idle bus, a new frame starts
//   - a long gap (above Timing.ShortLongBoundary) covers a full bit without a
//     mid bit edge, so the bit toggles
//   - a short gap is a half bit, the bit is repeated and committed on every
//     second half bit
//
// A Decoder is owned by a single caller, it does no locking.
type Decoder struct {
	timing Timing

	// last is the tick of the previous edge.
	last uint64
	// started is false until the first edge is seen.
	started bool

	// bits is the shift register of decoded bits, msb first.
	bits uint16
	// halfBits is the count of half bits since the last reset.
	halfBits int
	// lastBit is the most recently decoded bit.
	lastBit uint16
	// ready is set as soon as a complete frame is received.
	ready bool
}

// NewDecoder returns a Decoder classifying edges with the thresholds of t.
func NewDecoder(t Timing) *Decoder {
	d := &Decoder{timing: t}
	d.Reset()
	return d
}

// Reset drops any frame in progress. The next edge starts a new frame.
func (d *Decoder) Reset() {
	d.started = false
	d.clear()
}

// clear restarts decoding at the idle (high) bus level.
func (d *Decoder) clear() {
	d.bits = 0
	d.halfBits = 0
	d.lastBit = 1
	d.ready = false
}

// OnEdge classifies the gap since the previous edge and returns whether a
// complete frame is available. It runs in constant time and does not allocate.
func (d *Decoder) OnEdge(now uint64) bool {
	elapsed := now - d.last

	switch {
	case !d.started || elapsed > d.timing.Reset:
		d.started = true
		d.clear()

	case elapsed > d.timing.ShortLongBoundary:
		// long: no mid bit edge, the bit toggles
		d.lastBit ^= 1
		d.bits = d.bits<<1 | d.lastBit
		d.halfBits += 2

	default:
		// short: same bit, committed once per bit period
		d.halfBits++
		if d.halfBits%2 == 1 {
			d.bits = d.bits<<1 | d.lastBit
		}
	}

	if d.halfBits >= FrameHalfBits {
		d.ready = true
	}

	d.last = now
	return d.ready
}

// Ready reports whether a complete frame has been received.
func (d *Decoder) Ready() bool { return d.ready }

// Consume clears the ready flag. The shift register is kept.
func (d *Decoder) Consume() { d.ready = false }

// Bits returns the shift register. After a forward frame it holds
// address<<8 | data, after a backward frame the low byte is the data byte.
func (d *Decoder) Bits() uint16 { return d.bits }

// Byte returns the last 8 decoded bits.
func (d *Decoder) Byte() byte { return byte(d.bits) }

// HalfBits returns the count of half bits since the last reset.
func (d *Decoder) HalfBits() int { return d.halfBits }
