// SPDX-License-Identifier: MIT
//
// Copyright © 2023 Carlos Ramirez.

package sim_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecramirez94/r2c"
	"github.com/ecramirez94/r2c/sim"
	"github.com/ecramirez94/r2c/spi"
	"github.com/ecramirez94/r2c/spi/mcp4151"
)

func TestLine(t *testing.T) {
	l := sim.NewLine(4, 3)
	assert.Equal(t, 4, l.Offset())
	v, err := l.Value()
	assert.Nil(t, err)
	assert.Equal(t, 1, v)

	var changes []int
	l.Watch(func(offset, value int) {
		assert.Equal(t, 4, offset)
		changes = append(changes, value)
	})
	assert.Nil(t, l.SetValue(1))
	assert.Nil(t, l.SetValue(0))
	assert.Nil(t, l.SetValue(0))
	assert.Nil(t, l.SetValue(1))
	assert.Equal(t, []int{0, 1}, changes, "only changes are reported")
	assert.Equal(t, 4, l.Writes())

	fault := errors.New("fault")
	l.Fail(fault)
	assert.Equal(t, fault, l.SetValue(0))
	_, err = l.Value()
	assert.Equal(t, fault, err)
	l.Fail(nil)

	assert.Nil(t, l.Close())
	assert.True(t, l.Closed())
	assert.Equal(t, sim.ErrClosed, l.Close())
	assert.Equal(t, sim.ErrClosed, l.SetValue(1))
	_, err = l.Value()
	assert.Equal(t, sim.ErrClosed, err)
}

func newPot(t *testing.T) (*spi.SPI, *sim.Pot) {
	t.Helper()
	sclk := sim.NewLine(11, 0)
	ssz := sim.NewLine(8, 1)
	mosi := sim.NewLine(10, 0)
	p := sim.NewPot(sim.DeviceConfig{Mode: mcp4151.Mode}, sclk, ssz, mosi)
	s, err := spi.New(sclk, ssz, mosi, nil, spi.WithTclk(0))
	require.Nil(t, err)
	return s, p
}

func TestPotCommands(t *testing.T) {
	s, p := newPot(t)
	assert.Equal(t, mcp4151.PowerOnCount, p.Wiper())

	require.Nil(t, s.Write16(mcp4151.EncodeWord(mcp4151.Wiper0, mcp4151.Write, 255)))
	assert.Equal(t, 255, p.Wiper())
	inc := mcp4151.EncodeByte(mcp4151.Wiper0, mcp4151.Increment)
	require.Nil(t, s.Write8(inc))
	require.Nil(t, s.Write8(inc))
	assert.Equal(t, 256, p.Wiper())

	// beyond full scale selects full scale
	require.Nil(t, s.Write16(mcp4151.EncodeWord(mcp4151.Wiper0, mcp4151.Write, 0x3ff)))
	assert.Equal(t, 256, p.Wiper())

	require.Nil(t, s.Write16(mcp4151.EncodeWord(mcp4151.Wiper0, mcp4151.Write, 1)))
	dec := mcp4151.EncodeByte(mcp4151.Wiper0, mcp4151.Decrement)
	// several commands in one frame
	require.Nil(t, s.Tx([]byte{dec, dec}, nil))
	assert.Equal(t, 0, p.Wiper())
	assert.Equal(t, 7, p.Commands())
	assert.Zero(t, p.Ignored())

	require.Nil(t, s.Write16(mcp4151.EncodeWord(mcp4151.TCON, mcp4151.Write, 0xff)))
	require.Nil(t, s.Write16(mcp4151.EncodeWord(mcp4151.Wiper0, mcp4151.Read, 0)))
	require.Nil(t, s.Write8(mcp4151.EncodeByte(mcp4151.TCON, mcp4151.Increment)))
	assert.Equal(t, 0, p.Wiper())
	assert.Equal(t, 3, p.Ignored())
	assert.Len(t, p.Device().Frames(), 9)
}

func TestMotorPulses(t *testing.T) {
	tt := r2c.New(r2c.WithCounterBits(16))
	m := sim.NewMotor(tt, 2, sim.FixedSpeed(3000))
	require.Nil(t, tt.Open())
	// 3000rpm at 2 ppr is 100Hz
	m.RunFor(time.Second)
	s := tt.Close()
	assert.InDelta(t, 100, s.Pulses, 1)
	assert.Equal(t, uint32(250000&0xffff), s.Elapsed)
}

func TestMotorStopped(t *testing.T) {
	tt := r2c.New()
	m := sim.NewMotor(tt, 1, sim.FixedSpeed(0))
	require.Nil(t, tt.Open())
	m.RunFor(100 * time.Millisecond)
	s := tt.Close()
	assert.Zero(t, s.Pulses)
	assert.Equal(t, uint32(25000), s.Elapsed)
}

func TestPotSpeed(t *testing.T) {
	s, p := newPot(t)
	speed := sim.PotSpeed(p, 25600)
	assert.InDelta(t, 12800, speed(), 1e-6)
	require.Nil(t, s.Write16(mcp4151.EncodeWord(mcp4151.Wiper0, mcp4151.Write, 256)))
	assert.InDelta(t, 25600, speed(), 1e-6)
	require.Nil(t, s.Write16(mcp4151.EncodeWord(mcp4151.Wiper0, mcp4151.Write, 0)))
	assert.Zero(t, speed())
}

func TestRig(t *testing.T) {
	tt := r2c.New()
	rig, err := sim.NewRig(tt, sim.NewMotor(tt, 1, sim.FixedSpeed(1200)), 100*time.Millisecond)
	require.Nil(t, err)

	_, err = rig.Wait(context.Background())
	assert.Equal(t, r2c.ErrWindowClosed, err)

	for i := 0; i < 3; i++ {
		require.Nil(t, rig.Start())
		assert.Equal(t, r2c.ErrWindowOpen, rig.Start())
		s, err := rig.Wait(context.Background())
		require.Nil(t, err)
		// 20Hz over 100ms
		assert.InDelta(t, 2, s.Pulses, 1)
		assert.Equal(t, uint32(25000), s.Elapsed)
		assert.False(t, tt.Window().Running())
	}
}

func TestRigCounterWrap(t *testing.T) {
	tt := r2c.New()
	// 6000Hz, so 600 pulses per window, wrapping the register twice
	rig, err := sim.NewRig(tt, sim.NewMotor(tt, 1, sim.FixedSpeed(360000)), 100*time.Millisecond)
	require.Nil(t, err)
	for i := 0; i < 2; i++ {
		require.Nil(t, rig.Start())
		s, err := rig.Wait(context.Background())
		require.Nil(t, err)
		assert.InDelta(t, 600, s.Pulses, 1)
		assert.Less(t, tt.Counter().Value(), uint32(256))
	}
}

func TestRigCancel(t *testing.T) {
	tt := r2c.New()
	rig, err := sim.NewRig(tt, sim.NewMotor(tt, 1, sim.FixedSpeed(1200)), 100*time.Millisecond)
	require.Nil(t, err)
	require.Nil(t, rig.Start())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = rig.Wait(ctx)
	assert.Equal(t, context.Canceled, err)
	assert.False(t, tt.Window().Running())
}

func TestNewRigInvalid(t *testing.T) {
	tt := r2c.New()
	m := sim.NewMotor(tt, 1, sim.FixedSpeed(0))
	for _, w := range []time.Duration{0, time.Microsecond, 300 * time.Millisecond} {
		_, err := sim.NewRig(tt, m, w)
		assert.Equal(t, sim.ErrWindowLength, err, w)
	}
}
