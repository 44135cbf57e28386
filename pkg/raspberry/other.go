//go:build !linux
// +build !linux

package raspberry

import "dali/pkg/port"

// openGPIOD is not available without the linux gpio character device.
func openGPIOD(Config) (Bus, error) {
	return nil, ErrNotSupported
}

// openGPIOMem is not available without /dev/gpiomem.
func openGPIOMem(Config, port.Clock) (Bus, error) {
	return nil, ErrNotSupported
}
