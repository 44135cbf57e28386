// Package raspberry connects a bus transceiver to the gpio lines of a raspberry pi.
//
// Two drivers are available:
//   - "gpiod" uses the gpio character device (/dev/gpiochipN). Edge events
//     carry kernel timestamps in nanoseconds.
//   - "gpiomem" uses the memory mapped registers (/dev/gpiomem). Edges are
//     timestamped when the watcher reports them.
//
// Both report edge ticks in nanoseconds, to be used with port.MonotonicClock.
package raspberry

import (
	"errors"
	"fmt"

	"dali/pkg/port"
)

var (
	// ErrInvalidParam is returned for an unknown driver or terminator.
	ErrInvalidParam = errors.New("invalid parameters")
	// ErrNotSupported is returned on platforms without gpio support.
	ErrNotSupported = errors.New("gpio not supported on this platform")
	// ErrClosed is returned by EnableRx after Close.
	ErrClosed = errors.New("bus closed")
)

const (
	// DriverGPIOD selects the gpio character device driver.
	DriverGPIOD = "gpiod"
	// DriverGPIOMem selects the memory mapped gpio driver.
	DriverGPIOMem = "gpiomem"
)

// Config defines the lines of the bus interface.
type Config struct {
	// Driver is DriverGPIOD or DriverGPIOMem.
	Driver string
	// Chip is the gpio chip name of the gpiod driver, e.g. gpiochip0.
	Chip string
	// Rx and Tx are the BCM numbers (line offsets) of the receive and transmit lines.
	Rx int
	Tx int
	// Terminator is the bias of the receive line: pullup, pulldown or none.
	Terminator string
	// InvertRx and InvertTx invert the physical level, e.g. for an
	// opto coupled bus interface.
	InvertRx bool
	InvertTx bool
}

// Bus is a transceiver line pair on gpio lines.
type Bus interface {
	port.IO
	// Attach sets the handler called for each edge on the receive line.
	// It must be called before reception is enabled.
	Attach(port.EdgeHandler)
	// Close releases the lines.
	Close() error
}

// Open requests the lines of cfg. Reception is disabled until EnableRx is called.
// The transmit line is driven to the idle (high) level.
func Open(cfg Config, clock port.Clock) (Bus, error) {
	switch cfg.Terminator {
	case "pullup", "pulldown", "none":
	default:
		return nil, fmt.Errorf("terminator %q: %w", cfg.Terminator, ErrInvalidParam)
	}

	if cfg.Rx < 0 || cfg.Tx < 0 || cfg.Rx == cfg.Tx {
		return nil, fmt.Errorf("rx %d, tx %d: %w", cfg.Rx, cfg.Tx, ErrInvalidParam)
	}

	switch cfg.Driver {
	case DriverGPIOD:
		b, err := openGPIOD(cfg)
		if err != nil {
			return nil, err
		}
		return b, nil
	case DriverGPIOMem:
		b, err := openGPIOMem(cfg, clock)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("driver %q: %w", cfg.Driver, ErrInvalidParam)
	}
}

// level converts a physical line value to a logical level.
func level(v int, invert bool) port.Level {
	return port.Level((v != 0) != invert)
}

// value converts a logical level to a physical line value.
func value(l port.Level, invert bool) int {
	if bool(l) != invert {
		return 1
	}
	return 0
}
