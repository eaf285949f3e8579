// SPDX-License-Identifier: MIT
//
// Copyright © 2023 Carlos Ramirez.

package r2c

// PulseCounter counts falling edges from the Hall sensor.
//
// Rather than interrupting on every pulse, the counter raises a compare
// event each time the count reaches a multiple of its threshold.
type PulseCounter struct {
	t         *Timers
	cs        ClockSelect
	count     uint32
	mask      uint32
	threshold uint32
	handler   func(count uint32)
}

// Init sets the compare threshold and the handler called on each compare
// event. The handler may be nil.
//
// The threshold must be a non-zero multiple of ThresholdGranularity that
// fits in the counter register.
func (c *PulseCounter) Init(threshold uint32, handler func(count uint32)) error {
	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	if threshold == 0 || threshold%ThresholdGranularity != 0 || threshold > c.mask {
		return ErrThreshold
	}
	c.threshold = threshold
	c.handler = handler
	return nil
}

// Enable clears the counter and selects the sensor as its clock source.
//
// The shared prescaler is held frozen until the Collection Window Timer is
// started, so no pulses are counted until the window opens.
func (c *PulseCounter) Enable() error {
	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	if c.cs != ClockStopped || c.t.window.cs != ClockStopped {
		return ErrWindowOpen
	}
	c.enable()
	c.t.tsm = true
	return nil
}

// Disable stops counting without clearing the count.
func (c *PulseCounter) Disable() {
	c.t.mu.Lock()
	c.cs = ClockStopped
	if c.t.window.cs == ClockStopped {
		// an enable without a start left the prescaler frozen
		c.t.tsm = false
	}
	c.t.mu.Unlock()
}

// Clear resets the count without stopping the counter.
func (c *PulseCounter) Clear() {
	c.t.mu.Lock()
	c.count = 0
	c.t.mu.Unlock()
}

// Value returns the raw count register.
func (c *PulseCounter) Value() uint32 {
	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	return c.count
}

// Max returns the largest count the register holds before wrapping.
func (c *PulseCounter) Max() uint32 {
	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	return c.mask
}

// Enabled returns true if the counter has a clock source selected.
func (c *PulseCounter) Enabled() bool {
	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	return c.cs != ClockStopped
}

func (c *PulseCounter) enable() {
	c.count = 0
	c.cs = ClockExtFalling
}

// Assumes the caller holds t.mu.
func (c *PulseCounter) pulse(events []func()) []func() {
	if c.cs != ClockExtFalling || c.t.tsm {
		return events
	}
	c.count = (c.count + 1) & c.mask
	if c.count != 0 && c.count%c.threshold == 0 && c.handler != nil {
		h, n := c.handler, c.count
		events = append(events, func() { h(n) })
	}
	return events
}
