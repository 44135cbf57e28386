package manchester

import (
	"fmt"
	"sync"
	"sync/atomic"

	"dali/pkg/port"

	"github.com/womat/debug"
)

// Frame is a snapshot of the receive shift register.
type Frame struct {
	// Bits holds the decoded bits, msb first.
	Bits uint16
	// HalfBits is the count of half bits the frame was built from.
	HalfBits int
}

// Data returns the last received byte of the frame.
func (f Frame) Data() byte { return byte(f.Bits) }

// Address returns the byte received before Data (address of a forward frame).
// It is only meaningful for 16 bit frames (HalfBits >= 33); for a backward
// frame it holds the start bit and bits of an earlier frame.
func (f Frame) Address() byte { return byte(f.Bits >> 8) }

// Stats holds the counters of a Transceiver.
type Stats struct {
	Transfers uint64
	Frames    uint64
	Errors    uint64
}

// Option configures a Transceiver.
type Option func(*Transceiver)

// WithParams derives the timing table from p instead of DALI.
func WithParams(p Params) Option {
	return func(t *Transceiver) {
		t.params = p
	}
}

// Transceiver sends address/data frames and decodes frames from edge events
// of one half-duplex bus line.
type Transceiver struct {
	// counters are accessed atomically and must stay 64 bit aligned (first fields)
	transfers uint64
	frames    uint64
	errors    uint64

	params Params
	timing Timing
	io     port.IO
	enc    *Encoder

	// txLock serializes transfers, only one frame is on the line at a time.
	txLock sync.Mutex

	// rxLock guards dec and consumed between the edge handler and the frame consumer.
	rxLock sync.Mutex
	dec    *Decoder
	// consumed is the count of committed bits of the frame already returned by Receive.
	consumed int
	ready    chan struct{}
}

// New returns a Transceiver driving io with delays measured on clock.
// Edge events must be delivered to OnEdge with ticks of the same clock rate.
func New(io port.IO, clock port.Clock, options ...Option) *Transceiver {
	t := &Transceiver{
		params: DALI,
		io:     io,
		ready:  make(chan struct{}, 1),
	}
	for _, option := range options {
		option(t)
	}

	t.timing = ConfigureParams(clock.TicksPerSecond(), t.params)
	t.enc = NewEncoder(t.timing, io, clock)
	t.dec = NewDecoder(t.timing)
	return t
}

// Timing returns the tick table of the transceiver.
func (t *Transceiver) Timing() Timing {
	return t.timing
}

// Transfer sends a start bit, the address byte, the data byte and the stop gap.
// Reception is disabled while sending, the bus is half-duplex.
// Transfer blocks for the whole frame (about 20 ms on a DALI bus); concurrent
// calls are serialized.
func (t *Transceiver) Transfer(address, data byte) error {
	t.txLock.Lock()
	defer t.txLock.Unlock()

	debug.DebugLog.Printf("transfer address: %#04x, data: %#04x", address, data)

	if err := t.io.DisableRx(); err != nil {
		atomic.AddUint64(&t.errors, 1)
		return fmt.Errorf("disable rx: %w", err)
	}

	t.enc.Bit(true)
	t.enc.Byte(address)
	t.enc.Byte(data)
	t.enc.Idle()

	if err := t.io.EnableRx(); err != nil {
		atomic.AddUint64(&t.errors, 1)
		return fmt.Errorf("enable rx: %w", err)
	}

	atomic.AddUint64(&t.transfers, 1)
	return nil
}

// OnEdge is the edge event entry point. It must be called for every edge
// on the receive line, in order, with the tick the edge occurred at.
// OnEdge never blocks on the consumer and does not allocate.
func (t *Transceiver) OnEdge(now uint64) {
	t.rxLock.Lock()
	wasPending := t.pending()
	t.dec.OnEdge(now)
	if t.dec.HalfBits() == 0 {
		// a new frame starts
		t.consumed = 0
	}
	pending := t.pending()
	t.rxLock.Unlock()

	if pending && !wasPending {
		select {
		case t.ready <- struct{}{}:
		default:
		}
	}
}

// committed returns the number of bits the decoder committed for halfBits.
// Bits are committed on odd half bit counts.
func committed(halfBits int) int {
	return (halfBits + 1) / 2
}

// pending reports a complete frame with bits not yet returned by Receive.
func (t *Transceiver) pending() bool {
	return t.dec.Ready() && committed(t.dec.HalfBits()) != t.consumed
}

// Ready returns a channel signaled when a frame becomes available.
// The signal may be stale; Receive reports whether a frame is there.
func (t *Transceiver) Ready() <-chan struct{} {
	return t.ready
}

// Receive returns the received frame and clears the ready flag.
// ok is false if no complete frame is pending. A frame is returned once;
// edges that do not add a bit (e.g. the return to idle) do not make it
// pending again.
func (t *Transceiver) Receive() (f Frame, ok bool) {
	t.rxLock.Lock()
	defer t.rxLock.Unlock()

	if !t.pending() {
		return Frame{}, false
	}

	f = Frame{Bits: t.dec.Bits(), HalfBits: t.dec.HalfBits()}
	t.consumed = committed(f.HalfBits)
	t.dec.Consume()
	atomic.AddUint64(&t.frames, 1)
	return f, true
}

// ResetReceiver drops a frame in progress.
func (t *Transceiver) ResetReceiver() {
	t.rxLock.Lock()
	t.dec.Reset()
	t.consumed = 0
	t.rxLock.Unlock()
}

// LineLevel returns the current level of the receive line.
func (t *Transceiver) LineLevel() port.Level {
	return t.io.Input()
}

// Stats returns a snapshot of the counters.
func (t *Transceiver) Stats() Stats {
	return Stats{
		Transfers: atomic.LoadUint64(&t.transfers),
		Frames:    atomic.LoadUint64(&t.frames),
		Errors:    atomic.LoadUint64(&t.errors),
	}
}
