// SPDX-License-Identifier: MIT
//
// Copyright © 2023 Carlos Ramirez.

// Package mcp4151 provides a device driver for the MCP4151 SPI digital
// potentiometer.
//
// The device is driven write only, as it is pin limited and, in the
// intended wiring, opto-isolated. There is no way of confirming the wiper
// position from the device, so the driver keeps a shadow of the value last
// written, and that shadow is the only record of the wiper position.
package mcp4151

import (
	"errors"
	"sync"

	"tinygo.org/x/drivers"
)

const (
	// Steps is the number of wiper positions - 255 along the resistor string
	// plus the two terminals.
	Steps = 257

	// MaxCount is the highest wiper position.
	MaxCount = Steps - 1

	// PowerOnCount is the wiper position on power up, Vcc/2.
	PowerOnCount = Steps / 2

	// Mode is the SPI mode the device expects. The device supports modes
	// 0 and 3 only.
	Mode = 0

	// IsolatedMode is the SPI mode to drive the device with when the clock
	// passes through an inverting opto-isolator, so it arrives in Mode.
	IsolatedMode = 2

	// MaxPayload is the longest decimal payload accepted by SetText.
	MaxPayload = 3
)

// MCP4151 sets the wiper of a connected Microchip MCP4151.
type MCP4151 struct {
	mu    sync.Mutex
	bus   drivers.SPI
	count int
}

// New creates a MCP4151 driver on the SPI bus, which may be the bit bashed
// *spi.SPI or any hardware SPI satisfying drivers.SPI.
//
// The shadow starts at the power on value of the device. No command is
// written until Begin or a setting operation is called.
func New(bus drivers.SPI) *MCP4151 {
	return &MCP4151{bus: bus, count: PowerOnCount}
}

// Begin writes the shadow value to the device, so that device and shadow
// agree even if the device was not freshly powered.
func (pot *MCP4151) Begin() error {
	pot.mu.Lock()
	defer pot.mu.Unlock()
	return pot.write(pot.count)
}

// Increment moves the wiper up one step, saturating at MaxCount, and
// returns the new position.
func (pot *MCP4151) Increment() (int, error) {
	pot.mu.Lock()
	defer pot.mu.Unlock()
	c := pot.count + 1
	if c > MaxCount {
		c = MaxCount
	}
	err := pot.write(c)
	return pot.count, err
}

// Decrement moves the wiper down one step, saturating at 0, and returns
// the new position.
func (pot *MCP4151) Decrement() (int, error) {
	pot.mu.Lock()
	defer pot.mu.Unlock()
	c := pot.count - 1
	if c < 0 {
		c = 0
	}
	err := pot.write(c)
	return pot.count, err
}

// SetText sets the wiper from a decimal payload of 1 to 3 digits.
//
// The payload must contain only digits - no sign and no whitespace.
// On error neither the device nor the shadow is changed.
func (pot *MCP4151) SetText(payload string) error {
	if len(payload) == 0 || len(payload) > MaxPayload {
		return ErrPayloadLength
	}
	c := 0
	for i := 0; i < len(payload); i++ {
		d := payload[i]
		if d < '0' || d > '9' {
			return ErrPayloadSyntax
		}
		c = c*10 + int(d-'0')
	}
	return pot.Set(c)
}

// Set sets the wiper to the count.
//
// On error neither the device nor the shadow is changed.
func (pot *MCP4151) Set(count int) error {
	if count < 0 || count > MaxCount {
		return ErrOutOfRange
	}
	pot.mu.Lock()
	defer pot.mu.Unlock()
	return pot.write(count)
}

// Current returns the shadow of the wiper position.
func (pot *MCP4151) Current() int {
	pot.mu.Lock()
	defer pot.mu.Unlock()
	return pot.count
}

// write sends the count to the wiper and records it in the shadow.
//
// Only the data bits reach the device, but the shadow keeps the count as
// provided. The two agree for any count within range.
// Assumes the caller holds mu.
func (pot *MCP4151) write(count int) error {
	w := EncodeWord(Wiper0, Write, uint16(count))
	if err := pot.bus.Tx([]byte{byte(w >> 8), byte(w)}, nil); err != nil {
		return err
	}
	pot.count = count
	return nil
}

var (
	// ErrPayloadLength indicates a payload that is empty or too long.
	ErrPayloadLength = errors.New("payload length must be 1 to 3 digits")

	// ErrPayloadSyntax indicates a payload containing a non digit.
	ErrPayloadSyntax = errors.New("payload must be decimal digits")

	// ErrOutOfRange indicates a count beyond the wiper range.
	ErrOutOfRange = errors.New("count out of range")
)
