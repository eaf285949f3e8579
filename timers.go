// SPDX-License-Identifier: MIT
//
// Copyright © 2023 Carlos Ramirez.

// Package r2c provides the counting units used to measure rotational speed
// from a Hall effect sensor.
//
// Timers models the three timer/counter units of the controller:
//
//   - the Pulse Counter, clocked by falling edges from the sensor,
//   - the Collection Window Timer, clocked by the system clock through a
//     prescaler shared with the Pulse Counter,
//   - the Display Tick Timer, with its own prescaler.
//
// The units are advanced explicitly, with Tick for system clock cycles and
// Pulse for sensor edges, so their behaviour is deterministic.
//
// A measurement window is opened by enabling the Pulse Counter and starting
// the Collection Window Timer:
//
//	t := r2c.New()
//	t.Counter().Enable()
//	t.Window().Start()
//	...
//	s := t.Sample()
//	t.Counter().Disable()
//	t.Window().Stop()
//
// Start releases both units from the same prescaler phase, so the pulse count
// and the elapsed time always share an epoch.
package r2c

import (
	"errors"
	"sync"
	"time"
)

// ClockSelect identifies the clock source of a unit, as per the CSn bits.
type ClockSelect uint8

// Clock sources available to units on the shared prescaler.
const (
	ClockStopped ClockSelect = iota
	ClockDiv1
	ClockDiv8
	ClockDiv64
	ClockDiv256
	ClockDiv1024
	ClockExtFalling
	ClockExtRising
)

const (
	// ClockHz is the default system clock frequency.
	ClockHz = 16000000

	// WindowClock is the prescaled clock of the Collection Window Timer.
	WindowClock = ClockDiv64

	// DefaultThreshold is the default number of pulses between compare
	// events of the Pulse Counter.
	DefaultThreshold = 16

	// ThresholdGranularity is the granularity the compare threshold must be
	// a multiple of.
	ThresholdGranularity = 4
)

// Divisor returns the number of system clock cycles per tick for the
// prescaled sources, or 0 for the stopped and external sources.
func (cs ClockSelect) Divisor() uint64 {
	switch cs {
	case ClockDiv1:
		return 1
	case ClockDiv8:
		return 8
	case ClockDiv64:
		return 64
	case ClockDiv256:
		return 256
	case ClockDiv1024:
		return 1024
	}
	return 0
}

// Sample is the state of a measurement window.
type Sample struct {
	// Pulses counted since the window started.
	Pulses uint32
	// Elapsed ticks since the window started.
	Elapsed uint32
	// Tick is the duration of one elapsed tick.
	Tick time.Duration
}

// Duration returns the elapsed time of the window.
func (s Sample) Duration() time.Duration {
	return time.Duration(s.Elapsed) * s.Tick
}

// Timers is the set of timer/counter units.
//
// All unit state is guarded by a single lock, which plays the role of
// disabling interrupts. Event handlers are called after the lock is
// released, so they may call back into the units.
type Timers struct {
	mu sync.Mutex
	hz uint64
	// cycles seen by the shared prescaler since it was last reset.
	phase uint64
	// synchronization mode - the shared prescaler is held in reset.
	tsm     bool
	counter PulseCounter
	window  WindowTimer
	display TickTimer
}

// Option specifies a construction option for Timers.
type Option func(*Timers)

// WithClockHz sets the system clock frequency.
func WithClockHz(hz uint64) Option {
	return func(t *Timers) {
		t.hz = hz
	}
}

// WithCounterBits sets the width of the Pulse Counter register.
func WithCounterBits(bits uint) Option {
	return func(t *Timers) {
		t.counter.mask = 1<<bits - 1
	}
}

// New creates a set of units with all clocks stopped.
func New(options ...Option) *Timers {
	t := &Timers{hz: ClockHz}
	t.counter = PulseCounter{t: t, mask: 0xff, threshold: DefaultThreshold}
	t.window = WindowTimer{t: t}
	t.display = TickTimer{t: t, top: DisplayTop, every: 1}
	for _, option := range options {
		option(t)
	}
	return t
}

// Counter returns the Pulse Counter unit.
func (t *Timers) Counter() *PulseCounter {
	return &t.counter
}

// Window returns the Collection Window Timer unit.
func (t *Timers) Window() *WindowTimer {
	return &t.window
}

// Display returns the Display Tick Timer unit.
func (t *Timers) Display() *TickTimer {
	return &t.display
}

// ClockHz returns the system clock frequency.
func (t *Timers) ClockHz() uint64 {
	return t.hz
}

// Tick advances the system clock by the given number of cycles.
func (t *Timers) Tick(cycles uint64) {
	t.mu.Lock()
	var events []func()
	if !t.tsm {
		from := t.phase
		t.phase += cycles
		if d := t.window.cs.Divisor(); d != 0 {
			events = t.window.advance(t.phase/d-from/d, events)
		}
	}
	events = t.display.tick(cycles, events)
	t.mu.Unlock()
	fire(events)
}

// Pulse delivers a falling edge from the sensor to the Pulse Counter.
func (t *Timers) Pulse() {
	t.mu.Lock()
	events := t.counter.pulse(nil)
	t.mu.Unlock()
	fire(events)
}

// Open enables the Pulse Counter and starts the Collection Window Timer as
// a single operation.
func (t *Timers) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.counter.cs != ClockStopped || t.window.cs != ClockStopped {
		return ErrWindowOpen
	}
	t.counter.enable()
	t.syncStart()
	return nil
}

// Sample returns a consistent snapshot of the pulse count and the elapsed
// window time.
func (t *Timers) Sample() Sample {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sample()
}

// Close disables the Pulse Counter and stops the Collection Window Timer,
// returning the final state of the window.
func (t *Timers) Close() Sample {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.sample()
	t.counter.cs = ClockStopped
	t.window.cs = ClockStopped
	return s
}

func (t *Timers) sample() Sample {
	return Sample{
		Pulses:  t.counter.count,
		Elapsed: t.window.count,
		Tick:    t.tick(WindowClock),
	}
}

func (t *Timers) tick(cs ClockSelect) time.Duration {
	return time.Duration(cs.Divisor()) * time.Second / time.Duration(t.hz)
}

// syncStart starts the Collection Window Timer and any enabled Pulse
// Counter from the same prescaler phase.
// Assumes the caller holds mu.
func (t *Timers) syncStart() {
	t.window.count = 0
	// freeze the prescaler network shared by both units
	t.tsm = true
	t.window.cs = WindowClock
	if t.counter.cs != ClockStopped {
		t.counter.count = 0
	}
	// PSRSYNC
	t.phase = 0
	// release both units
	t.tsm = false
}

func fire(events []func()) {
	for _, e := range events {
		e()
	}
}

var (
	// ErrWindowOpen indicates a measurement window is already in progress.
	ErrWindowOpen = errors.New("measurement window already open")

	// ErrWindowClosed indicates there is no measurement window in progress.
	ErrWindowClosed = errors.New("measurement window not open")

	// ErrWindowLength indicates a window length that cannot be timed.
	ErrWindowLength = errors.New("window length out of range")

	// ErrThreshold indicates an unusable compare threshold.
	ErrThreshold = errors.New("invalid compare threshold")
)
