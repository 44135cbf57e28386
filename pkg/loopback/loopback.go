// Package loopback simulates a single wire bus with any number of attached
// transceiver ports, driven by a deterministic clock.
//
// The bus is wired-AND like a DALI bus: it is high (idle) unless at least one
// port drives it low. Every level change is recorded and delivered to the
// edge handlers of all ports with reception enabled.
package loopback

import (
	"sync"
	"sync/atomic"

	"dali/pkg/port"
)

// SimClock is a deterministic clock: every call of Now advances it by step ticks.
type SimClock struct {
	now  uint64
	step uint64
	tps  uint64
}

// NewSimClock returns a clock with a rate of tps ticks per second, advancing
// by step ticks on each Now call.
func NewSimClock(tps, step uint64) *SimClock {
	return &SimClock{step: step, tps: tps}
}

// Now advances the clock and returns the new tick count.
func (c *SimClock) Now() uint64 {
	return atomic.AddUint64(&c.now, c.step)
}

// Peek returns the tick count without advancing the clock.
func (c *SimClock) Peek() uint64 {
	return atomic.LoadUint64(&c.now)
}

// Advance moves the clock forward by n ticks.
func (c *SimClock) Advance(n uint64) {
	atomic.AddUint64(&c.now, n)
}

// TicksPerSecond returns the rate of the clock.
func (c *SimClock) TicksPerSecond() uint64 {
	return c.tps
}

// Bus is the simulated wire.
type Bus struct {
	clock port.Clock

	mu    sync.Mutex
	level port.Level
	ports []*Port
	edges []port.Event
}

// NewBus returns an idle (high) bus timestamping edges with clock.
func NewBus(clock port.Clock) *Bus {
	return &Bus{clock: clock, level: port.High}
}

// NewPort attaches a new port to the bus. The port does not drive the bus low
// and has reception disabled.
func (b *Bus) NewPort() *Port {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := &Port{bus: b, out: port.High}
	b.ports = append(b.ports, p)
	return p
}

// Level returns the current level of the bus.
func (b *Bus) Level() port.Level {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.level
}

// Edges returns a copy of all edges seen on the bus.
func (b *Bus) Edges() []port.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]port.Event(nil), b.edges...)
}

// update recalculates the bus level after a port changed its output.
// The edge handlers are called outside of the bus lock.
func (b *Bus) update() {
	b.mu.Lock()

	level := port.High
	for _, p := range b.ports {
		if p.out == port.Low {
			level = port.Low
			break
		}
	}

	if level == b.level {
		b.mu.Unlock()
		return
	}

	b.level = level
	evt := port.Event{Timestamp: b.clock.Now(), Type: port.FallingEdge}
	if level == port.High {
		evt.Type = port.RisingEdge
	}
	b.edges = append(b.edges, evt)

	var handlers []port.EdgeHandler
	for _, p := range b.ports {
		if p.rxEnabled && p.handler != nil {
			handlers = append(handlers, p.handler)
		}
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h.OnEdge(evt.Timestamp)
	}
}

// Port is the connection of one transceiver to the bus. It implements port.IO.
type Port struct {
	bus *Bus

	// guarded by bus.mu
	out       port.Level
	rxEnabled bool
	handler   port.EdgeHandler

	// EnableErr and DisableErr are returned by EnableRx and DisableRx if set.
	EnableErr  error
	DisableErr error

	// active counts DisableRx calls not yet followed by EnableRx, guarded by bus.mu.
	active    int
	maxActive int
}

// Attach sets the handler receiving the edges of the bus while reception is enabled.
func (p *Port) Attach(h port.EdgeHandler) {
	p.bus.mu.Lock()
	p.handler = h
	p.bus.mu.Unlock()
}

// Input returns the bus level.
func (p *Port) Input() port.Level {
	return p.bus.Level()
}

// SetOutput drives the bus. A high output releases the bus.
func (p *Port) SetOutput(l port.Level) {
	p.bus.mu.Lock()
	p.out = l
	p.bus.mu.Unlock()
	p.bus.update()
}

// EnableRx starts delivering edges to the attached handler.
func (p *Port) EnableRx() error {
	if p.EnableErr != nil {
		return p.EnableErr
	}

	p.bus.mu.Lock()
	defer p.bus.mu.Unlock()

	if p.active > 0 {
		p.active--
	}
	p.rxEnabled = true
	return nil
}

// DisableRx stops delivering edges to the attached handler.
func (p *Port) DisableRx() error {
	if p.DisableErr != nil {
		return p.DisableErr
	}

	p.bus.mu.Lock()
	defer p.bus.mu.Unlock()

	p.active++
	if p.active > p.maxActive {
		p.maxActive = p.active
	}
	p.rxEnabled = false
	return nil
}

// MaxActive returns the highest number of overlapping DisableRx/EnableRx
// sections seen on the port, i.e. the number of concurrent transmissions.
func (p *Port) MaxActive() int {
	p.bus.mu.Lock()
	defer p.bus.mu.Unlock()
	return p.maxActive
}
