// SPDX-License-Identifier: MIT
//
// Copyright © 2023 Carlos Ramirez.

package tach

import "sync"

const (
	// AverageSize is the default number of readings in the moving average.
	AverageSize = 30

	// StallSize is the default number of consecutive empty windows taken
	// as a stall.
	StallSize = 10
)

// Filter keeps a moving average of readings and detects stalls.
type Filter struct {
	mu        sync.Mutex
	ring      []float64
	next      int
	n         int
	sum       float64
	stallSize int
	empty     int
}

// NewFilter creates a Filter averaging over size readings and declaring a
// stall after stallSize consecutive windows without pulses.
func NewFilter(size, stallSize int) *Filter {
	if size < 1 {
		size = 1
	}
	if stallSize < 1 {
		stallSize = 1
	}
	return &Filter{ring: make([]float64, size), stallSize: stallSize}
}

// Add adds a reading and returns the updated average and stall state.
func (f *Filter) Add(rpm float64, pulses uint32) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.n == len(f.ring) {
		f.sum -= f.ring[f.next]
	} else {
		f.n++
	}
	f.ring[f.next] = rpm
	f.sum += rpm
	f.next = (f.next + 1) % len(f.ring)
	if pulses == 0 {
		f.empty++
	} else {
		f.empty = 0
	}
	return f.sum / float64(f.n), f.empty >= f.stallSize
}

// Average returns the current moving average.
func (f *Filter) Average() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.n == 0 {
		return 0
	}
	return f.sum / float64(f.n)
}

// Stalled returns true if the most recent windows counted no pulses.
func (f *Filter) Stalled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.empty >= f.stallSize
}

// Reset discards all readings.
func (f *Filter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.ring {
		f.ring[i] = 0
	}
	f.next, f.n, f.sum, f.empty = 0, 0, 0, 0
}
