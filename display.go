// SPDX-License-Identifier: MIT
//
// Copyright © 2023 Carlos Ramirez.

package r2c

import "time"

const (
	// DisplayClock is the prescaled clock of the Display Tick Timer.
	DisplayClock = ClockDiv1024

	// DisplayTop is the compare value of the Display Tick Timer.
	// At 16MHz and a 1024 prescale a tick is 64us, so 157 ticks ~= 10ms.
	DisplayTop = 156
)

// TickTimer paces display refreshes.
//
// It runs from its own prescaler and has no relationship with the
// measurement window.
type TickTimer struct {
	t       *Timers
	cs      ClockSelect
	phase   uint64
	count   uint32
	top     uint32
	every   uint32
	matches uint32
	handler func()
}

// SetHandler sets the handler called on every nth compare match, allowing
// intervals that are multiples of the base period.
func (d *TickTimer) SetHandler(every uint32, handler func()) {
	if every == 0 {
		every = 1
	}
	d.t.mu.Lock()
	d.every = every
	d.matches = 0
	d.handler = handler
	d.t.mu.Unlock()
}

// Start clears the timer and starts the periodic compare.
func (d *TickTimer) Start() {
	d.t.mu.Lock()
	d.count = 0
	d.phase = 0
	d.matches = 0
	d.cs = DisplayClock
	d.t.mu.Unlock()
}

// Stop halts the timer.
func (d *TickTimer) Stop() {
	d.t.mu.Lock()
	d.cs = ClockStopped
	d.t.mu.Unlock()
}

// Period returns the interval between compare matches.
func (d *TickTimer) Period() time.Duration {
	d.t.mu.Lock()
	defer d.t.mu.Unlock()
	return time.Duration(d.top+1) * d.t.tick(DisplayClock)
}

// Assumes the caller holds t.mu.
func (d *TickTimer) tick(cycles uint64, events []func()) []func() {
	div := d.cs.Divisor()
	if div == 0 {
		return events
	}
	from := d.phase
	d.phase += cycles
	n := d.phase/div - from/div
	period := uint64(d.top + 1)
	c := uint64(d.count)
	d.count = uint32((c + n) % period)
	// the match is on reaching top, a tick before the clear
	for m := (c+n+1)/period - (c+1)/period; m > 0; m-- {
		d.matches++
		if d.matches < d.every {
			continue
		}
		d.matches = 0
		if d.handler != nil {
			events = append(events, d.handler)
		}
	}
	return events
}
