package raspberry

import (
	"errors"
	"testing"

	"dali/pkg/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenInvalidParams(t *testing.T) {
	valid := Config{Driver: DriverGPIOD, Chip: "gpiochip0", Rx: 17, Tx: 27, Terminator: "pullup"}

	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"unknown driver", func(c *Config) { c.Driver = "spidev" }},
		{"unknown terminator", func(c *Config) { c.Terminator = "floating" }},
		{"same line", func(c *Config) { c.Tx = c.Rx }},
		{"negative line", func(c *Config) { c.Rx = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.modify(&cfg)

			b, err := Open(cfg, port.NewMonotonicClock())
			require.Error(t, err)
			assert.Nil(t, b)
			assert.True(t, errors.Is(err, ErrInvalidParam))
		})
	}
}

func TestLevelConversion(t *testing.T) {
	assert.Equal(t, port.High, level(1, false))
	assert.Equal(t, port.Low, level(0, false))
	assert.Equal(t, port.Low, level(1, true))
	assert.Equal(t, port.High, level(0, true))

	assert.Equal(t, 1, value(port.High, false))
	assert.Equal(t, 0, value(port.Low, false))
	assert.Equal(t, 0, value(port.High, true))
	assert.Equal(t, 1, value(port.Low, true))

	for _, invert := range []bool{false, true} {
		for _, l := range []port.Level{port.High, port.Low} {
			assert.Equal(t, l, level(value(l, invert), invert))
		}
	}
}
