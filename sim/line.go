// SPDX-License-Identifier: MIT
//
// Copyright © 2023 Carlos Ramirez.

// Package sim provides simulated hardware for exercising the drivers and
// counting units without a board.
package sim

import (
	"errors"
	"sync"
)

// Line is a simulated GPIO line.
//
// It satisfies spi.Line. Watchers are called synchronously on every change
// of level, in the goroutine that changed it.
type Line struct {
	mu       sync.Mutex
	offset   int
	value    int
	closed   bool
	fault    error
	writes   int
	watchers []func(offset, value int)
}

// NewLine creates a line at the given offset with an initial value.
func NewLine(offset, value int) *Line {
	return &Line{offset: offset, value: value & 0x01}
}

// Offset returns the offset of the line.
func (l *Line) Offset() int {
	return l.offset
}

// Value returns the current level of the line.
func (l *Line) Value() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, ErrClosed
	}
	if l.fault != nil {
		return 0, l.fault
	}
	return l.value, nil
}

// SetValue drives the line to a level.
func (l *Line) SetValue(v int) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if l.fault != nil {
		err := l.fault
		l.mu.Unlock()
		return err
	}
	v &= 0x01
	l.writes++
	changed := v != l.value
	l.value = v
	ww := l.watchers
	l.mu.Unlock()
	if changed {
		for _, w := range ww {
			w(l.offset, v)
		}
	}
	return nil
}

// Close marks the line as released.
func (l *Line) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	l.closed = true
	return nil
}

// Closed returns true once the line has been closed.
func (l *Line) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Writes returns the number of successful calls to SetValue.
func (l *Line) Writes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writes
}

// Watch adds a watcher called on each change of level.
func (l *Line) Watch(w func(offset, value int)) {
	l.mu.Lock()
	l.watchers = append(l.watchers, w)
	l.mu.Unlock()
}

// Fail makes subsequent accesses to the line return err.
// A nil err clears the fault.
func (l *Line) Fail(err error) {
	l.mu.Lock()
	l.fault = err
	l.mu.Unlock()
}

// ErrClosed indicates the line has been closed.
var ErrClosed = errors.New("line closed")
