// SPDX-License-Identifier: MIT
//
// Copyright © 2023 Carlos Ramirez.

package spi

import "time"

// Option specifies a construction option for the SPI.
type Option func(*SPI) error

// WithMode sets the clock polarity and phase from a standard SPI mode, 0-3.
func WithMode(mode int) Option {
	return func(s *SPI) error {
		if mode < 0 || mode > 3 {
			return ErrInvalidMode
		}
		s.cpol = mode >> 1
		s.cpha = mode & 0x01
		return nil
	}
}

// WithCPOL sets the idle level of the clock.
func WithCPOL(cpol int) Option {
	return func(s *SPI) error {
		s.cpol = cpol & 0x01
		return nil
	}
}

// WithCPHA sets the clock edge the data is sampled on.
func WithCPHA(cpha int) Option {
	return func(s *SPI) error {
		s.cpha = cpha & 0x01
		return nil
	}
}

// WithLSBFirst shifts bytes out least significant bit first.
func WithLSBFirst() Option {
	return func(s *SPI) error {
		s.order = LSBFirst
		return nil
	}
}

// WithCSActiveHigh selects the device with a high chip select.
//
// This suits chip selects passing through an inverting stage, such as an
// opto-isolator, on the way to an active low device.
func WithCSActiveHigh() Option {
	return func(s *SPI) error {
		s.csActive = 1
		return nil
	}
}

// WithInvertedMosi inverts every data bit driven onto Mosi.
func WithInvertedMosi() Option {
	return func(s *SPI) error {
		s.invertMosi = true
		return nil
	}
}

// WithTclk sets the clock period for the SPI.
//
// Note that this is the half-cycle period.
func WithTclk(tclk time.Duration) Option {
	return func(s *SPI) error {
		s.tclk = tclk
		return nil
	}
}
