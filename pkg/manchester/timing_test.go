package manchester

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/womat/debug"
)

func TestMain(m *testing.M) {
	debug.SetDebug(os.Stderr, debug.Standard)
	os.Exit(m.Run())
}

func TestConfigure(t *testing.T) {
	tests := []struct {
		name string
		tps  uint64
		want Timing
	}{
		{
			name: "1 MHz",
			tps:  1000000,
			want: Timing{HalfBit: 417, FullBit: 834, ShortLongBoundary: 626, Idle: 5501, Reset: 5501},
		},
		{
			name: "nanoseconds",
			tps:  1000000000,
			want: Timing{HalfBit: 416668, FullBit: 833334, ShortLongBoundary: 625001, Idle: 5500001, Reset: 5500001},
		},
		{
			name: "32768 Hz",
			tps:  32768,
			want: Timing{HalfBit: 14, FullBit: 28, ShortLongBoundary: 21, Idle: 181, Reset: 181},
		},
		{
			name: "zero clock",
			tps:  0,
			want: Timing{HalfBit: 1, FullBit: 1, ShortLongBoundary: 1, Idle: 1, Reset: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Configure(tt.tps))
		})
	}
}

func TestConfigureOrdering(t *testing.T) {
	for _, tps := range []uint64{8000, 32768, 1000000, 16000000, 125000000, 1000000000} {
		tm := Configure(tps)
		assert.GreaterOrEqual(t, tm.Reset, tm.Idle, "tps %d", tps)
		assert.Greater(t, tm.Idle, tm.ShortLongBoundary, "tps %d", tps)
		assert.Greater(t, tm.ShortLongBoundary, tm.HalfBit, "tps %d", tps)
		assert.InDelta(t, 2*tm.HalfBit, tm.FullBit, 2, "tps %d", tps)
	}
}

func TestConfigureSaturates(t *testing.T) {
	p := DALI
	p.Stop = 2 * time.Second
	p.BackwardStop = 2 * time.Second

	tm := ConfigureParams(^uint64(0), p)
	assert.Equal(t, ^uint64(0), tm.Idle)
	assert.Equal(t, ^uint64(0), tm.Reset)
	assert.Less(t, tm.HalfBit, tm.Idle)
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, DALI.Validate())

	tests := []struct {
		name   string
		modify func(p *Params)
	}{
		{"zero half bit", func(p *Params) { p.HalfBit = 0 }},
		{"negative stop", func(p *Params) { p.Stop = -time.Millisecond }},
		{"full bit below half bit", func(p *Params) { p.FullBit = p.HalfBit }},
		{"boundary below half bit", func(p *Params) { p.ShortLong = p.HalfBit }},
		{"boundary above full bit", func(p *Params) { p.ShortLong = p.FullBit }},
		{"stop below boundary", func(p *Params) { p.Stop = p.ShortLong }},
		{"backward stop below stop", func(p *Params) { p.BackwardStop = p.Stop - 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DALI
			tt.modify(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidTiming))
		})
	}
}
