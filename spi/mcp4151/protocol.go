// SPDX-License-Identifier: MIT
//
// Copyright © 2023 Carlos Ramirez.

package mcp4151

// Address is a register address in the device memory map.
type Address uint8

// Memory addresses. See section 7.0 of the MCP4151 datasheet.
const (
	Wiper0 Address = 0x00
	TCON   Address = 0x04
	Status Address = 0x05
)

// Command is the command type field of a command byte.
type Command uint8

// Command types.
//
// Read is defined for completeness. The driver never issues it as the
// device is wired without a read path.
const (
	Write Command = iota
	Increment
	Decrement
	Read
)

const (
	// DataMask covers the data bits carried by a 16 bit command.
	DataMask = 0x03ff

	addrShift = 4
	cmdShift  = 2
)

// EncodeWord returns the 16 bit command carrying data to addr.
//
// The high byte holds the address in the top nibble, the command in bits
// 2-3 and data bits 8-9 in bits 0-1. The low byte holds data bits 0-7.
func EncodeWord(addr Address, cmd Command, data uint16) uint16 {
	return uint16(EncodeByte(addr, cmd))<<8 | data&DataMask
}

// EncodeByte returns the 8 bit command for addr.
// This is the form used by the increment and decrement commands.
func EncodeByte(addr Address, cmd Command) uint8 {
	return uint8(addr)<<addrShift | uint8(cmd&0x03)<<cmdShift
}

// DecodeByte splits a command byte into its address and command.
func DecodeByte(b uint8) (Address, Command) {
	return Address(b >> addrShift), Command(b>>cmdShift) & 0x03
}
