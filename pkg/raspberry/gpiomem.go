//go:build linux
// +build linux

package raspberry

import (
	"sync"

	"dali/pkg/port"

	"github.com/warthog618/gpio"
	"github.com/womat/debug"
)

// gpiomem is opened once per process.
var gpiomem struct {
	sync.Mutex
	users int
}

// MemBus is a line pair on the memory mapped gpio registers.
//
// EnableRx installs an edge watcher on the receive pin and DisableRx removes
// it, so edges during a transfer are not detected at all.
type MemBus struct {
	clock port.Clock
	rx    *gpio.Pin
	tx    *gpio.Pin

	invertRx bool
	invertTx bool

	handler port.EdgeHandler

	mu       sync.Mutex
	watching bool
	closed   bool
}

// openGPIOMem maps the gpio memory and configures the pins.
func openGPIOMem(cfg Config, clock port.Clock) (*MemBus, error) {
	gpiomem.Lock()
	defer gpiomem.Unlock()

	if gpiomem.users == 0 {
		if err := gpio.Open(); err != nil {
			return nil, err
		}
	}
	gpiomem.users++

	b := &MemBus{
		clock:    clock,
		rx:       gpio.NewPin(cfg.Rx),
		tx:       gpio.NewPin(cfg.Tx),
		invertRx: cfg.InvertRx,
		invertTx: cfg.InvertTx,
	}

	b.rx.Input()
	switch cfg.Terminator {
	case "pullup":
		b.rx.PullUp()
	case "pulldown":
		b.rx.PullDown()
	}

	b.SetOutput(port.High)
	b.tx.Output()

	debug.InfoLog.Printf("gpiomem bus: rx %d, tx %d", cfg.Rx, cfg.Tx)
	return b, nil
}

// onPin is the watcher callback of the receive pin.
func (b *MemBus) onPin(*gpio.Pin) {
	now := b.clock.Now()
	if b.handler != nil {
		b.handler.OnEdge(now)
	}
}

// Attach sets the edge handler.
func (b *MemBus) Attach(h port.EdgeHandler) {
	b.handler = h
}

// Input returns the level of the receive pin.
func (b *MemBus) Input() port.Level {
	return port.Level(bool(b.rx.Read()) != b.invertRx)
}

// SetOutput drives the transmit pin.
func (b *MemBus) SetOutput(l port.Level) {
	if value(l, b.invertTx) == 1 {
		b.tx.High()
		return
	}
	b.tx.Low()
}

// EnableRx watches the receive pin for both edges.
func (b *MemBus) EnableRx() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if b.watching {
		return nil
	}

	if err := b.rx.Watch(gpio.EdgeBoth, b.onPin); err != nil {
		return err
	}
	b.watching = true
	return nil
}

// DisableRx removes the watcher of the receive pin.
func (b *MemBus) DisableRx() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.watching {
		b.rx.Unwatch()
		b.watching = false
	}
	return nil
}

// Close removes the watcher and unmaps the gpio memory if no other bus uses it.
func (b *MemBus) Close() error {
	_ = b.DisableRx()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.SetOutput(port.High)

	gpiomem.Lock()
	defer gpiomem.Unlock()

	gpiomem.users--
	if gpiomem.users == 0 {
		return gpio.Close()
	}
	return nil
}
