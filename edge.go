// SPDX-License-Identifier: MIT
//
// Copyright © 2023 Carlos Ramirez.

//go:build linux
// +build linux

package r2c

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/warthog618/gpiod"
	"golang.org/x/sys/unix"
)

// EdgeCounter counts sensor pulses delivered as edge events on a GPIO line.
//
// It provides the measurement window on hosts without counter silicon.
// The pulse count and the window start are reset together within a
// critical section, and edges are qualified by their kernel timestamps, so
// the window epoch is shared to within the timestamp resolution.
type EdgeCounter struct {
	mu     sync.Mutex
	line   *gpiod.Line
	window time.Duration
	// grace allows events stamped within the window to be delivered.
	grace time.Duration
	now   func() (time.Duration, error)
	open  bool
	start time.Duration
	count uint32
}

// MaxEdgeWindow is the longest window an EdgeCounter can report, as
// elapsed microseconds are 32 bit.
const MaxEdgeWindow = math.MaxUint32 * time.Microsecond

// NewEdgeCounter creates an EdgeCounter with the given window length, which
// must be between a microsecond and MaxEdgeWindow.
//
// The counter is not attached to a line; events must be delivered with
// HandleEvent.
func NewEdgeCounter(window time.Duration) (*EdgeCounter, error) {
	if window < time.Microsecond || window > MaxEdgeWindow {
		return nil, ErrWindowLength
	}
	return &EdgeCounter{
		window: window,
		grace:  time.Millisecond,
		now:    monotonic,
	}, nil
}

// RequestEdgeCounter requests the line at offset on the chip as a pulled up
// input and counts its falling edges.
func RequestEdgeCounter(c *gpiod.Chip, offset int, window time.Duration) (*EdgeCounter, error) {
	ec, err := NewEdgeCounter(window)
	if err != nil {
		return nil, err
	}
	l, err := c.RequestLine(offset,
		gpiod.WithPullUp,
		gpiod.WithFallingEdge,
		gpiod.WithEventHandler(ec.HandleEvent))
	if err != nil {
		return nil, err
	}
	ec.line = l
	return ec, nil
}

// Close releases the line, if any.
func (c *EdgeCounter) Close() error {
	c.mu.Lock()
	c.open = false
	l := c.line
	c.line = nil
	c.mu.Unlock()
	if l == nil {
		return nil
	}
	// the event handler takes mu, and closing waits for the handler.
	return l.Close()
}

// HandleEvent counts a falling edge stamped within the open window.
func (c *EdgeCounter) HandleEvent(evt gpiod.LineEvent) {
	if evt.Type != gpiod.LineEventFallingEdge {
		return
	}
	c.mu.Lock()
	if c.open && evt.Timestamp >= c.start && evt.Timestamp < c.start+c.window {
		c.count++
	}
	c.mu.Unlock()
}

// Start opens a measurement window.
func (c *EdgeCounter) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open {
		return ErrWindowOpen
	}
	start, err := c.now()
	if err != nil {
		return err
	}
	c.count = 0
	c.start = start
	c.open = true
	return nil
}

// Wait blocks until the window has elapsed, then closes it and returns the
// pulses counted. Elapsed ticks are microseconds.
func (c *EdgeCounter) Wait(ctx context.Context) (Sample, error) {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return Sample{}, ErrWindowClosed
	}
	now, err := c.now()
	if err != nil {
		c.open = false
		c.mu.Unlock()
		return Sample{}, err
	}
	remaining := c.start + c.window + c.grace - now
	c.mu.Unlock()
	if remaining > 0 {
		t := time.NewTimer(remaining)
		defer t.Stop()
		select {
		case <-ctx.Done():
			c.mu.Lock()
			c.open = false
			c.mu.Unlock()
			return Sample{}, ctx.Err()
		case <-t.C:
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return Sample{
		Pulses:  c.count,
		Elapsed: uint32(c.window / time.Microsecond),
		Tick:    time.Microsecond,
	}, nil
}

// monotonic returns the time on the clock used for edge event timestamps.
func monotonic() (time.Duration, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0, err
	}
	return time.Duration(ts.Nano()), nil
}
