// SPDX-License-Identifier: MIT
//
// Copyright © 2023 Carlos Ramirez.

package sim

import (
	"sync"

	"github.com/ecramirez94/r2c/spi"
)

// Device is a simulated SPI peripheral.
//
// It watches the clock, select and data lines and reassembles the bytes
// shifted to it into frames, one frame per assertion of the select line.
type Device struct {
	mu       sync.Mutex
	cfg      DeviceConfig
	sclk     *Line
	ssz      *Line
	mosi     *Line
	selected bool
	cur      byte
	nbits    int
	frame    []byte
	frames   [][]byte
	onFrame  func([]byte)
}

// DeviceConfig describes the signalling expected by a Device.
type DeviceConfig struct {
	// Mode is the SPI mode, 0-3.
	Mode int
	// CSActive is the level of the select line that selects the device.
	CSActive int
	// Order is the bit order of each byte.
	Order spi.BitOrder
	// InvertMosi indicates an inverting stage on the data line.
	InvertMosi bool
}

// NewDevice attaches a Device to the lines.
//
// The handler, which may be nil, is called with each completed frame.
// Partial bytes at the end of a frame are discarded.
func NewDevice(cfg DeviceConfig, sclk, ssz, mosi *Line, handler func([]byte)) *Device {
	d := &Device{
		cfg:     cfg,
		sclk:    sclk,
		ssz:     ssz,
		mosi:    mosi,
		onFrame: handler,
	}
	ssz.Watch(d.selectChanged)
	sclk.Watch(d.clockChanged)
	return d
}

// Frames returns the frames received so far.
func (d *Device) Frames() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	ff := make([][]byte, len(d.frames))
	copy(ff, d.frames)
	return ff
}

// Selected returns true while the device is selected.
func (d *Device) Selected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selected
}

func (d *Device) selectChanged(_, v int) {
	d.mu.Lock()
	if v == d.cfg.CSActive {
		d.selected = true
		d.cur, d.nbits = 0, 0
		d.frame = nil
		d.mu.Unlock()
		return
	}
	if !d.selected {
		d.mu.Unlock()
		return
	}
	d.selected = false
	f := d.frame
	d.frame = nil
	if len(f) != 0 {
		d.frames = append(d.frames, f)
	}
	h := d.onFrame
	d.mu.Unlock()
	if h != nil && len(f) != 0 {
		h(f)
	}
}

func (d *Device) clockChanged(_, v int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.selected {
		return
	}
	cpol := d.cfg.Mode >> 1
	cpha := d.cfg.Mode & 0x01
	leading := v != cpol
	if leading != (cpha == 0) {
		return
	}
	bit, err := d.mosi.Value()
	if err != nil {
		return
	}
	if d.cfg.InvertMosi {
		bit ^= 1
	}
	if d.cfg.Order == spi.MSBFirst {
		d.cur = d.cur<<1 | byte(bit)
	} else {
		d.cur |= byte(bit) << uint(d.nbits)
	}
	d.nbits++
	if d.nbits == 8 {
		d.frame = append(d.frame, d.cur)
		d.cur, d.nbits = 0, 0
	}
}
