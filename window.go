// SPDX-License-Identifier: MIT
//
// Copyright © 2023 Carlos Ramirez.

package r2c

const windowMask = 0xffff

// WindowTimer times the pulse collection window.
//
// It is a 16 bit timer clocked from the prescaler it shares with the
// PulseCounter. With a non-zero top it clears on compare match, and the
// match closes the window.
type WindowTimer struct {
	t       *Timers
	cs      ClockSelect
	count   uint32
	top     uint32
	handler func(Sample)
}

// Init configures the timer to clear on matching top, calling the handler
// with the window state at the instant of the match. A zero top leaves the
// timer free running.
//
// The timer is left stopped.
func (w *WindowTimer) Init(top uint16, handler func(Sample)) {
	w.t.mu.Lock()
	w.cs = ClockStopped
	w.count = 0
	w.top = uint32(top)
	w.handler = handler
	w.t.mu.Unlock()
}

// Start resets the timer and starts it counting.
//
// The start is synchronized with the PulseCounter: both are released from
// the same prescaler phase, and an enabled counter is cleared as part of
// the same operation.
func (w *WindowTimer) Start() error {
	w.t.mu.Lock()
	defer w.t.mu.Unlock()
	if w.cs != ClockStopped {
		return ErrWindowOpen
	}
	w.t.syncStart()
	return nil
}

// Stop halts the timer without resetting the count.
func (w *WindowTimer) Stop() {
	w.t.mu.Lock()
	w.cs = ClockStopped
	w.t.mu.Unlock()
}

// Value returns the raw timer register.
func (w *WindowTimer) Value() uint32 {
	w.t.mu.Lock()
	defer w.t.mu.Unlock()
	return w.count
}

// Running returns true if the timer has a clock source selected.
func (w *WindowTimer) Running() bool {
	w.t.mu.Lock()
	defer w.t.mu.Unlock()
	return w.cs != ClockStopped
}

// advance moves the timer on by n ticks.
// Assumes the caller holds t.mu.
func (w *WindowTimer) advance(n uint64, events []func()) []func() {
	if w.top == 0 {
		w.count = uint32((uint64(w.count) + n) & windowMask)
		return events
	}
	for n > 0 {
		if w.count >= w.top {
			// clear on the tick after the match
			w.count = 0
			n--
			continue
		}
		step := uint64(w.top - w.count)
		if n < step {
			w.count += uint32(n)
			return events
		}
		w.count = w.top
		n -= step
		if w.handler != nil {
			h, s := w.handler, w.t.sample()
			events = append(events, func() { h(s) })
		}
	}
	return events
}
