// SPDX-License-Identifier: MIT
//
// Copyright © 2023 Carlos Ramirez.

package sim

import (
	"sync"

	"github.com/ecramirez94/r2c/spi/mcp4151"
)

// Pot is a simulated MCP4151 digital potentiometer.
//
// It applies the commands it receives over a Device to its wiper, so tests
// can compare the physical wiper with the driver's shadow.
type Pot struct {
	mu       sync.Mutex
	dev      *Device
	wiper    int
	commands int
	ignored  int
}

// NewPot attaches a Pot, at its power on wiper position, to the lines.
func NewPot(cfg DeviceConfig, sclk, ssz, mosi *Line) *Pot {
	p := &Pot{wiper: mcp4151.PowerOnCount}
	p.dev = NewDevice(cfg, sclk, ssz, mosi, p.frame)
	return p
}

// Wiper returns the wiper position.
func (p *Pot) Wiper() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wiper
}

// Commands returns the number of commands applied.
func (p *Pot) Commands() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.commands
}

// Ignored returns the number of commands the model did not apply, such as
// reads or writes to other registers.
func (p *Pot) Ignored() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ignored
}

// Device returns the underlying SPI peripheral.
func (p *Pot) Device() *Device {
	return p.dev
}

func (p *Pot) frame(f []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(f) > 0 {
		addr, cmd := mcp4151.DecodeByte(f[0])
		switch cmd {
		case mcp4151.Write:
			if len(f) < 2 {
				p.ignored++
				return
			}
			data := int(f[0]&0x03)<<8 | int(f[1])
			f = f[2:]
			if addr != mcp4151.Wiper0 {
				p.ignored++
				continue
			}
			// values beyond full scale select full scale
			if data > mcp4151.MaxCount {
				data = mcp4151.MaxCount
			}
			p.wiper = data
		case mcp4151.Increment:
			f = f[1:]
			if addr != mcp4151.Wiper0 {
				p.ignored++
				continue
			}
			if p.wiper < mcp4151.MaxCount {
				p.wiper++
			}
		case mcp4151.Decrement:
			f = f[1:]
			if addr != mcp4151.Wiper0 {
				p.ignored++
				continue
			}
			if p.wiper > 0 {
				p.wiper--
			}
		default:
			p.ignored++
			return
		}
		p.commands++
	}
}
