// SPDX-License-Identifier: MIT
//
// Copyright © 2023 Carlos Ramirez.

// Package tach converts measurement windows into rotational speed.
package tach

import (
	"context"
	"errors"
	"time"

	"github.com/ecramirez94/r2c"
	"github.com/golang/glog"
)

// Source provides measurement windows.
//
// Both *r2c.EdgeCounter and *sim.Rig satisfy this interface.
type Source interface {
	// Start opens a window with the pulse count and elapsed time sharing
	// an epoch.
	Start() error
	// Wait blocks until the window closes and returns its final state.
	Wait(ctx context.Context) (r2c.Sample, error)
}

// Reading is the speed derived from one window.
type Reading struct {
	r2c.Sample
	// RPM is the speed over the window.
	RPM float64
	// Average is the moving average of RPM over recent windows.
	Average float64
	// Stalled is true when recent windows have counted no pulses.
	Stalled bool
}

// Meter measures speed from a Source.
type Meter struct {
	src    Source
	ppr    float64
	filter *Filter
}

// Option specifies a construction option for the Meter.
type Option func(*Meter)

// WithPulsesPerRev sets the number of sensor pulses per revolution.
func WithPulsesPerRev(ppr int) Option {
	return func(m *Meter) {
		if ppr > 0 {
			m.ppr = float64(ppr)
		}
	}
}

// WithFilter replaces the default averaging and stall filter.
func WithFilter(f *Filter) Option {
	return func(m *Meter) {
		m.filter = f
	}
}

// NewMeter creates a Meter on the source.
func NewMeter(src Source, options ...Option) *Meter {
	m := &Meter{src: src, ppr: 1}
	for _, option := range options {
		option(m)
	}
	if m.filter == nil {
		m.filter = NewFilter(AverageSize, StallSize)
	}
	return m
}

// Measure opens a window, waits for it to close, and returns the speed.
func (m *Meter) Measure(ctx context.Context) (Reading, error) {
	if err := m.src.Start(); err != nil {
		return Reading{}, err
	}
	s, err := m.src.Wait(ctx)
	if err != nil {
		return Reading{}, err
	}
	rpm, err := RPM(s, m.ppr)
	if err != nil {
		return Reading{}, err
	}
	avg, stalled := m.filter.Add(rpm, s.Pulses)
	glog.V(2).Infof("window pulses=%d elapsed=%d rpm=%.1f avg=%.1f", s.Pulses, s.Elapsed, rpm, avg)
	if stalled {
		glog.Warningf("stalled: no pulses in %d windows", m.filter.stallSize)
	}
	return Reading{Sample: s, RPM: rpm, Average: avg, Stalled: stalled}, nil
}

// Filter returns the filter applied to readings.
func (m *Meter) Filter() *Filter {
	return m.filter
}

// RPM returns the speed over the window for the given pulses per
// revolution.
func RPM(s r2c.Sample, ppr float64) (float64, error) {
	d := s.Duration()
	if d <= 0 {
		return 0, ErrEmptyWindow
	}
	if ppr <= 0 {
		ppr = 1
	}
	return float64(s.Pulses) / ppr * float64(time.Minute) / float64(d), nil
}

// ErrEmptyWindow indicates a window with no elapsed time.
var ErrEmptyWindow = errors.New("window has no elapsed time")
