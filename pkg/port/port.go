// Package port holds the definition of a physical bus line and the capabilities
// a transceiver needs to drive it.
package port

// Level is the logical level of a line.
//
// Note that for inverted lines (e.g. behind an opto coupler) the physical
// level differs from the logical level. Adapters hide the inversion.
type Level bool

const (
	// High indicates a logical 1, the idle level of the bus.
	High Level = true
	// Low indicates a logical 0.
	Low Level = false
)

// String returns "high" or "low".
func (l Level) String() string {
	if l {
		return "high"
	}
	return "low"
}

// EventType indicates the type of change to the line active state.
type EventType int

const (
	_ EventType = iota
	// RisingEdge indicates an inactive to active event (low to high).
	RisingEdge
	// FallingEdge indicates an active to inactive event (high to low).
	FallingEdge
)

// Event is a single edge detected on a line.
type Event struct {
	// Timestamp is the clock tick at which the edge was detected.
	Timestamp uint64
	// The type of state change event this structure represents.
	Type EventType
}

// IO is the set of line capabilities used by a transceiver.
// Input and SetOutput are infallible, the enable/disable calls report
// failures of the edge detection setup.
type IO interface {
	// Input returns the current level of the receive line.
	Input() Level
	// SetOutput drives the transmit line.
	SetOutput(Level)
	// EnableRx enables edge detection on the receive line.
	EnableRx() error
	// DisableRx disables edge detection on the receive line.
	DisableRx() error
}

// EdgeHandler is called by the line adapter for every detected edge on the
// receive line, with the tick at which the edge occurred.
// Implementations must not block.
type EdgeHandler interface {
	OnEdge(now uint64)
}

// EdgeHandlerFunc adapts a function to an EdgeHandler.
type EdgeHandlerFunc func(now uint64)

// OnEdge calls f(now).
func (f EdgeHandlerFunc) OnEdge(now uint64) { f(now) }

// Clock is a free running monotonic tick counter.
type Clock interface {
	// Now returns the current tick count.
	Now() uint64
	// TicksPerSecond returns the frequency of the counter.
	TicksPerSecond() uint64
}
