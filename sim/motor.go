// SPDX-License-Identifier: MIT
//
// Copyright © 2023 Carlos Ramirez.

package sim

import (
	"context"
	"math"
	"time"

	"github.com/golang/glog"

	"github.com/ecramirez94/r2c"
	"github.com/ecramirez94/r2c/spi/mcp4151"
)

// Motor is a simulated spindle with a Hall sensor, delivering pulses to the
// counting units as simulated time passes.
type Motor struct {
	timers *r2c.Timers
	ppr    int
	speed  func() float64
	// cycles until the next pulse, zero if none is pending.
	next float64
}

// NewMotor creates a Motor driving the units with ppr pulses per
// revolution, at the RPM returned by speed.
func NewMotor(t *r2c.Timers, ppr int, speed func() float64) *Motor {
	if ppr < 1 {
		ppr = 1
	}
	return &Motor{timers: t, ppr: ppr, speed: speed}
}

// FixedSpeed returns a speed source for a constant RPM.
func FixedSpeed(rpm float64) func() float64 {
	return func() float64 {
		return rpm
	}
}

// PotSpeed returns a speed source proportional to the wiper of the pot,
// reaching maxRPM at full scale.
func PotSpeed(p *Pot, maxRPM float64) func() float64 {
	return func() float64 {
		return float64(p.Wiper()) * maxRPM / mcp4151.MaxCount
	}
}

// Run advances simulated time by the given number of clock cycles.
func (m *Motor) Run(cycles uint64) {
	rpm := m.speed()
	if rpm <= 0 {
		m.next = 0
		m.timers.Tick(cycles)
		return
	}
	period := float64(m.timers.ClockHz()) * 60 / (rpm * float64(m.ppr))
	if m.next <= 0 || m.next > period {
		m.next = period
	}
	for cycles > 0 {
		step := uint64(math.Ceil(m.next))
		if step > cycles {
			m.timers.Tick(cycles)
			m.next -= float64(cycles)
			return
		}
		m.timers.Tick(step)
		m.timers.Pulse()
		cycles -= step
		m.next += period - float64(step)
	}
}

// RunFor advances simulated time by d.
func (m *Motor) RunFor(d time.Duration) {
	m.Run(uint64(d) * m.timers.ClockHz() / uint64(time.Second))
}

// Rig runs measurement windows on simulated units, closing each window on
// the compare match of the Collection Window Timer.
//
// The Pulse Counter register is narrower than the pulses a window may see,
// so the Rig extends it from the counter compare events, as the firmware
// does in its compare interrupt.
type Rig struct {
	timers *r2c.Timers
	motor  *Motor
	step   uint64
	mask   uint32
	done   chan r2c.Sample
	// pulses counted up to the last compare event, and the register then.
	acc  uint32
	last uint32
}

// NewRig creates a Rig with windows of the given length.
func NewRig(t *r2c.Timers, m *Motor, window time.Duration) (*Rig, error) {
	tick := time.Duration(r2c.WindowClock.Divisor()) * time.Second / time.Duration(t.ClockHz())
	top := window / tick
	if top < 1 || top > math.MaxUint16 {
		return nil, ErrWindowLength
	}
	r := &Rig{
		timers: t,
		motor:  m,
		step:   t.ClockHz() / 1000,
		mask:   t.Counter().Max(),
		done:   make(chan r2c.Sample, 1),
	}
	if err := t.Counter().Init(r2c.DefaultThreshold, r.compare); err != nil {
		return nil, err
	}
	t.Window().Init(uint16(top), r.closed)
	return r, nil
}

// Start opens a measurement window.
func (r *Rig) Start() error {
	select {
	case <-r.done:
	default:
	}
	if err := r.timers.Open(); err != nil {
		return err
	}
	// the units run on the caller's goroutine, from Wait
	r.acc, r.last = 0, 0
	return nil
}

// Wait runs the simulation until the window closes, and returns the window
// state at the instant it closed.
func (r *Rig) Wait(ctx context.Context) (r2c.Sample, error) {
	if !r.timers.Window().Running() {
		return r2c.Sample{}, r2c.ErrWindowClosed
	}
	for {
		select {
		case s := <-r.done:
			r.timers.Close()
			return s, nil
		case <-ctx.Done():
			r.timers.Close()
			return r2c.Sample{}, ctx.Err()
		default:
		}
		r.motor.Run(r.step)
	}
}

// compare accumulates the pulses since the previous compare event.
// Successive events are at most two thresholds apart, well within the
// register, so the masked difference is exact across a wrap.
func (r *Rig) compare(n uint32) {
	glog.V(3).Infof("pulse compare at %d", n)
	r.acc += (n - r.last) & r.mask
	r.last = n
}

func (r *Rig) closed(s r2c.Sample) {
	s.Pulses = r.acc + (s.Pulses-r.last)&r.mask
	select {
	case r.done <- s:
	default:
	}
}

// ErrWindowLength indicates a window the Collection Window Timer cannot
// time.
var ErrWindowLength = r2c.ErrWindowLength
