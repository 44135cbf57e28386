//go:build linux
// +build linux

package raspberry

import (
	"sync/atomic"

	"dali/pkg/port"

	"github.com/warthog618/gpiod"
	"github.com/womat/debug"
)

// GPIODBus is a line pair requested from a gpio character device.
type GPIODBus struct {
	chip *gpiod.Chip
	rx   *gpiod.Line
	tx   *gpiod.Line

	invertRx bool
	invertTx bool

	handler port.EdgeHandler
	// enabled and closed are accessed atomically
	enabled int32
	closed  int32
}

// openGPIOD requests the receive line with both edge events and the
// transmit line as output.
func openGPIOD(cfg Config) (b *GPIODBus, err error) {
	b = &GPIODBus{invertRx: cfg.InvertRx, invertTx: cfg.InvertTx}

	if b.chip, err = gpiod.NewChip(cfg.Chip); err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			_ = b.Close()
			b = nil
		}
	}()

	switch cfg.Terminator {
	case "pullup":
		b.rx, err = b.chip.RequestLine(cfg.Rx, gpiod.WithEventHandler(b.eventHandler),
			gpiod.WithBothEdges, gpiod.AsInput, gpiod.WithPullUp)
	case "pulldown":
		b.rx, err = b.chip.RequestLine(cfg.Rx, gpiod.WithEventHandler(b.eventHandler),
			gpiod.WithBothEdges, gpiod.AsInput, gpiod.WithPullDown)
	default:
		b.rx, err = b.chip.RequestLine(cfg.Rx, gpiod.WithEventHandler(b.eventHandler),
			gpiod.WithBothEdges, gpiod.AsInput)
	}
	if err != nil {
		return b, err
	}

	if b.tx, err = b.chip.RequestLine(cfg.Tx, gpiod.AsOutput(value(port.High, cfg.InvertTx))); err != nil {
		return b, err
	}

	debug.InfoLog.Printf("gpiod bus on %s: rx %d, tx %d", cfg.Chip, cfg.Rx, cfg.Tx)
	return b, nil
}

// eventHandler is called by gpiod for each edge on the receive line.
// Events are dropped while reception is disabled.
func (b *GPIODBus) eventHandler(evt gpiod.LineEvent) {
	if atomic.LoadInt32(&b.enabled) == 0 || b.handler == nil {
		return
	}
	b.handler.OnEdge(uint64(evt.Timestamp))
}

// Attach sets the edge handler.
func (b *GPIODBus) Attach(h port.EdgeHandler) {
	b.handler = h
}

// Input returns the level of the receive line. Read errors return the idle level.
func (b *GPIODBus) Input() port.Level {
	v, err := b.rx.Value()
	if err != nil {
		return port.High
	}
	return level(v, b.invertRx)
}

// SetOutput drives the transmit line.
func (b *GPIODBus) SetOutput(l port.Level) {
	_ = b.tx.SetValue(value(l, b.invertTx))
}

// EnableRx starts forwarding edge events to the handler.
func (b *GPIODBus) EnableRx() error {
	if atomic.LoadInt32(&b.closed) != 0 {
		return ErrClosed
	}
	atomic.StoreInt32(&b.enabled, 1)
	return nil
}

// DisableRx stops forwarding edge events.
func (b *GPIODBus) DisableRx() error {
	atomic.StoreInt32(&b.enabled, 0)
	return nil
}

// Close releases the lines and the chip.
//
// Closing the receive line waits for a running event handler to return,
// so Close must not be called from the edge handler.
func (b *GPIODBus) Close() error {
	atomic.StoreInt32(&b.closed, 1)
	atomic.StoreInt32(&b.enabled, 0)

	if b.tx != nil {
		_ = b.tx.SetValue(value(port.High, b.invertTx))
		_ = b.tx.Close()
	}
	if b.rx != nil {
		_ = b.rx.Close()
	}
	if b.chip != nil {
		return b.chip.Close()
	}
	return nil
}
