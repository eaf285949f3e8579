// SPDX-License-Identifier: MIT
//
// Copyright © 2023 Carlos Ramirez.

package r2c_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecramirez94/r2c"
)

func TestClockSelectDivisor(t *testing.T) {
	patterns := map[r2c.ClockSelect]uint64{
		r2c.ClockStopped:    0,
		r2c.ClockDiv1:       1,
		r2c.ClockDiv8:       8,
		r2c.ClockDiv64:      64,
		r2c.ClockDiv256:     256,
		r2c.ClockDiv1024:    1024,
		r2c.ClockExtFalling: 0,
		r2c.ClockExtRising:  0,
	}
	for cs, d := range patterns {
		assert.Equal(t, d, cs.Divisor(), cs)
	}
}

func TestNew(t *testing.T) {
	tt := r2c.New()
	assert.Equal(t, uint64(r2c.ClockHz), tt.ClockHz())
	assert.False(t, tt.Counter().Enabled())
	assert.False(t, tt.Window().Running())
	// stopped units do not count
	tt.Tick(1000)
	tt.Pulse()
	assert.Zero(t, tt.Counter().Value())
	assert.Zero(t, tt.Window().Value())
}

func TestWindowTiming(t *testing.T) {
	tt := r2c.New()
	require.Nil(t, tt.Window().Start())
	tt.Tick(63)
	assert.Zero(t, tt.Window().Value())
	tt.Tick(1)
	assert.Equal(t, uint32(1), tt.Window().Value())
	tt.Tick(64 * 99)
	assert.Equal(t, uint32(100), tt.Window().Value())
	s := tt.Sample()
	assert.Equal(t, 4*time.Microsecond, s.Tick)
	assert.Equal(t, 400*time.Microsecond, s.Duration())

	tt.Window().Stop()
	tt.Tick(6400)
	assert.Equal(t, uint32(100), tt.Window().Value(), "stop must not reset or advance")

	// restart resets
	require.Nil(t, tt.Window().Start())
	assert.Zero(t, tt.Window().Value())
	assert.Equal(t, r2c.ErrWindowOpen, tt.Window().Start())
}

func TestWindowWraps(t *testing.T) {
	tt := r2c.New()
	require.Nil(t, tt.Window().Start())
	tt.Tick(64 * 0x10005)
	assert.Equal(t, uint32(5), tt.Window().Value())
}

func TestWindowCompare(t *testing.T) {
	tt := r2c.New()
	var samples []r2c.Sample
	tt.Window().Init(100, func(s r2c.Sample) {
		samples = append(samples, s)
		// handlers may call back into the units
		tt.Counter().Value()
	})
	require.Nil(t, tt.Counter().Enable())
	require.Nil(t, tt.Window().Start())
	for i := 0; i < 7; i++ {
		tt.Pulse()
	}
	tt.Tick(64 * 99)
	assert.Empty(t, samples)
	tt.Tick(64)
	require.Len(t, samples, 1)
	assert.Equal(t, r2c.Sample{Pulses: 7, Elapsed: 100, Tick: 4 * time.Microsecond}, samples[0])
	// clear on the tick after the match
	assert.Equal(t, uint32(100), tt.Window().Value())
	tt.Tick(64)
	assert.Zero(t, tt.Window().Value())
	// period is top+1
	tt.Tick(64 * 101)
	assert.Len(t, samples, 2)
}

func TestCounter(t *testing.T) {
	tt := r2c.New()
	require.Nil(t, tt.Counter().Enable())
	assert.True(t, tt.Counter().Enabled())
	// held until the window starts
	tt.Pulse()
	tt.Tick(6400)
	assert.Zero(t, tt.Counter().Value())
	assert.Zero(t, tt.Window().Value())

	require.Nil(t, tt.Window().Start())
	for i := 0; i < 10; i++ {
		tt.Pulse()
	}
	assert.Equal(t, uint32(10), tt.Counter().Value())

	tt.Counter().Clear()
	assert.Zero(t, tt.Counter().Value())
	tt.Pulse()
	assert.Equal(t, uint32(1), tt.Counter().Value(), "clear must not stop")

	tt.Counter().Disable()
	tt.Pulse()
	assert.Equal(t, uint32(1), tt.Counter().Value(), "disable must not clear")
	assert.False(t, tt.Counter().Enabled())
}

func TestCounterEnableWhileOpen(t *testing.T) {
	tt := r2c.New()
	require.Nil(t, tt.Counter().Enable())
	assert.Equal(t, r2c.ErrWindowOpen, tt.Counter().Enable())

	tt = r2c.New()
	require.Nil(t, tt.Window().Start())
	assert.Equal(t, r2c.ErrWindowOpen, tt.Counter().Enable())
}

func TestCounterDisableReleasesFreeze(t *testing.T) {
	tt := r2c.New()
	require.Nil(t, tt.Counter().Enable())
	tt.Counter().Disable()
	require.Nil(t, tt.Window().Start())
	tt.Tick(640)
	assert.Equal(t, uint32(10), tt.Window().Value())
}

func TestCounterWraps(t *testing.T) {
	tt := r2c.New()
	require.Nil(t, tt.Open())
	for i := 0; i < 260; i++ {
		tt.Pulse()
	}
	assert.Equal(t, uint32(4), tt.Counter().Value())

	tt = r2c.New(r2c.WithCounterBits(16))
	require.Nil(t, tt.Open())
	for i := 0; i < 260; i++ {
		tt.Pulse()
	}
	assert.Equal(t, uint32(260), tt.Counter().Value())
}

func TestCounterCompare(t *testing.T) {
	tt := r2c.New()
	var counts []uint32
	require.Nil(t, tt.Counter().Init(r2c.DefaultThreshold, func(n uint32) {
		counts = append(counts, n)
	}))
	require.Nil(t, tt.Open())
	for i := 0; i < 50; i++ {
		tt.Pulse()
	}
	assert.Equal(t, []uint32{16, 32, 48}, counts)
}

func TestCounterInit(t *testing.T) {
	tt := r2c.New()
	for _, th := range []uint32{0, 2, 6, 17, 256} {
		assert.Equal(t, r2c.ErrThreshold, tt.Counter().Init(th, nil), th)
	}
	for _, th := range []uint32{4, 16, 252} {
		assert.Nil(t, tt.Counter().Init(th, nil), th)
	}
}

func TestOpenClose(t *testing.T) {
	tt := r2c.New()
	require.Nil(t, tt.Open())
	assert.Equal(t, r2c.ErrWindowOpen, tt.Open())
	assert.Equal(t, r2c.ErrWindowOpen, tt.Counter().Enable())
	assert.Equal(t, r2c.ErrWindowOpen, tt.Window().Start())
	tt.Pulse()
	tt.Pulse()
	tt.Tick(64 * 50)
	s := tt.Close()
	assert.Equal(t, uint32(2), s.Pulses)
	assert.Equal(t, uint32(50), s.Elapsed)
	assert.False(t, tt.Counter().Enabled())
	assert.False(t, tt.Window().Running())
	// closed units hold their values
	tt.Pulse()
	tt.Tick(6400)
	assert.Equal(t, s, tt.Sample())
}

func TestSyncStartAlignsPrescaler(t *testing.T) {
	tt := r2c.New()
	// leave the shared prescaler part way through a tick
	require.Nil(t, tt.Window().Start())
	tt.Tick(64*3 + 40)
	tt.Window().Stop()

	// a new window counts whole ticks from its own start, not from the
	// stale prescaler phase
	require.Nil(t, tt.Counter().Enable())
	require.Nil(t, tt.Window().Start())
	tt.Pulse()
	tt.Tick(30)
	assert.Zero(t, tt.Window().Value())
	tt.Tick(34)
	s := tt.Sample()
	assert.Equal(t, uint32(1), s.Elapsed)
	assert.Equal(t, uint32(1), s.Pulses)
}

func TestConsecutiveWindows(t *testing.T) {
	// a 1kHz pulse train over 100ms windows started at arbitrary phases
	tt := r2c.New()
	tt.Window().Init(25000, nil)
	offsets := []uint64{0, 1, 63, 5000, 15999, 12345}
	var counts []uint32
	for _, off := range offsets {
		tt.Tick(off)
		require.Nil(t, tt.Open())
		for p := 0; p < 200; p++ {
			tt.Tick(16000)
			tt.Pulse()
			if tt.Window().Value() >= 25000 {
				break
			}
		}
		s := tt.Close()
		counts = append(counts, s.Pulses)
	}
	for _, c := range counts {
		assert.InDelta(t, 100, c, 1)
	}
}
