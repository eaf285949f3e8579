// SPDX-License-Identifier: MIT
//
// Copyright © 2023 Carlos Ramirez.

// Package spi provides a bit bashed SPI master driven over GPIO lines.
//
// It is not related to the SPI device drivers provided by Linux.
package spi

import (
	"errors"
	"sync"
	"time"

	"tinygo.org/x/drivers"
)

// Line is a single GPIO line driven or sampled by the SPI.
//
// A *gpiod.Line satisfies this interface.
type Line interface {
	Value() (int, error)
	SetValue(int) error
	Close() error
}

// BitOrder determines which end of each byte is shifted out first.
type BitOrder int

const (
	// MSBFirst shifts the most significant bit first.
	MSBFirst BitOrder = iota
	// LSBFirst shifts the least significant bit first.
	LSBFirst
)

// SPI represents a device connected to an SPI bus using 3 or 4 GPIO lines.
//
// The bus is write mostly. Miso may be nil if the device has no read path,
// in which case reads return 0.
type SPI struct {
	mu sync.Mutex
	// time between clock edges (i.e. half the cycle time)
	tclk  time.Duration
	sclk  Line
	ssz   Line
	mosi  Line
	miso  Line
	cpol  int
	cpha  int
	order BitOrder
	// level of ssz that selects the device
	csActive   int
	invertMosi bool
	closed     bool
}

var _ drivers.SPI = (*SPI)(nil)

// New creates a SPI from the provided lines and holds the device deselected
// with the clock at its idle level.
func New(sclk, ssz, mosi, miso Line, options ...Option) (*SPI, error) {
	s := SPI{
		tclk: 2 * time.Microsecond, // 250kHz
		sclk: sclk,
		ssz:  ssz,
		mosi: mosi,
		miso: miso,
	}
	for _, option := range options {
		if err := option(&s); err != nil {
			return nil, err
		}
	}
	if sclk == nil || ssz == nil || mosi == nil {
		return nil, ErrMissingLine
	}
	// hold SPI reset until needed...
	if err := s.ssz.SetValue(s.csInactive()); err != nil {
		return nil, err
	}
	if err := s.sclk.SetValue(s.cpol); err != nil {
		return nil, err
	}
	return &s, nil
}

// Close releases the lines used to drive the SPI device.
func (s *SPI) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	var err error
	for _, l := range []Line{s.sclk, s.ssz, s.mosi, s.miso} {
		if l == nil {
			continue
		}
		if cerr := l.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Mode returns the SPI mode, 0-3, composed from the clock polarity and phase.
func (s *SPI) Mode() int {
	return s.cpol<<1 | s.cpha
}

// Write8 writes a single byte to the device in its own frame.
func (s *SPI) Write8(b uint8) error {
	return s.Tx([]byte{b}, nil)
}

// Write16 writes a word to the device, high byte first, in a single frame.
func (s *SPI) Write16(w uint16) error {
	return s.Tx([]byte{uint8(w >> 8), uint8(w)}, nil)
}

// Transfer writes a byte and returns the byte read in the same frame.
func (s *SPI) Transfer(b byte) (byte, error) {
	r := []byte{0}
	err := s.Tx([]byte{b}, r)
	return r[0], err
}

// Tx writes w and reads into r within a single chip select frame.
//
// The frame length is the longer of w and r, with w padded with zeros.
// The call blocks until the last bit has been clocked.
func (s *SPI) Tx(w, r []byte) error {
	n := len(w)
	if len(r) > n {
		n = len(r)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.sclk.SetValue(s.cpol); err != nil {
		return err
	}
	if err := s.ssz.SetValue(s.csActive); err != nil {
		return err
	}
	time.Sleep(s.tclk)
	var err error
	for i := 0; i < n && err == nil; i++ {
		var b, d byte
		if i < len(w) {
			b = w[i]
		}
		d, err = s.shift(b)
		if i < len(r) {
			r[i] = d
		}
	}
	time.Sleep(s.tclk)
	// release even on a failed frame so the device resyncs on the next one.
	if cerr := s.ssz.SetValue(s.csInactive()); err == nil {
		err = cerr
	}
	return err
}

// shift clocks one byte out on Mosi and one byte in on Miso.
// Assumes the caller holds mu and the clock is idle.
func (s *SPI) shift(b byte) (byte, error) {
	var d byte
	for i := 0; i < 8; i++ {
		var bit uint
		if s.order == MSBFirst {
			bit = uint(7 - i)
		} else {
			bit = uint(i)
		}
		v, err := s.clock(int(b>>bit) & 0x01)
		if err != nil {
			return d, err
		}
		d |= byte(v) << bit
	}
	return d, nil
}

// clock drives a single bit cycle.
//
// With cpha 0 the data is set up before the leading edge and sampled on it.
// With cpha 1 the data changes on the leading edge and is sampled on the
// trailing edge. Starts and ends with the clock at its idle level.
func (s *SPI) clock(out int) (int, error) {
	idle := s.cpol
	active := idle ^ 1
	if s.invertMosi {
		out ^= 1
	}
	var in int
	var err error
	if s.cpha == 0 {
		if err = s.mosi.SetValue(out); err != nil {
			return 0, err
		}
		time.Sleep(s.tclk)
		if err = s.sclk.SetValue(active); err != nil {
			return 0, err
		}
		if in, err = s.sample(); err != nil {
			return 0, err
		}
		time.Sleep(s.tclk)
		return in, s.sclk.SetValue(idle)
	}
	if err = s.sclk.SetValue(active); err != nil {
		return 0, err
	}
	if err = s.mosi.SetValue(out); err != nil {
		return 0, err
	}
	time.Sleep(s.tclk)
	if err = s.sclk.SetValue(idle); err != nil {
		return 0, err
	}
	if in, err = s.sample(); err != nil {
		return 0, err
	}
	time.Sleep(s.tclk)
	return in, nil
}

func (s *SPI) sample() (int, error) {
	if s.miso == nil {
		return 0, nil
	}
	return s.miso.Value()
}

func (s *SPI) csInactive() int {
	return s.csActive ^ 1
}

var (
	// ErrClosed indicates the SPI has been closed.
	ErrClosed = errors.New("closed")

	// ErrInvalidMode indicates a mode outside 0-3 was requested.
	ErrInvalidMode = errors.New("invalid SPI mode")

	// ErrMissingLine indicates one of the clock, select or data out lines
	// was not provided.
	ErrMissingLine = errors.New("missing line")
)
