// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package crc

// CRC computes CRC-16/MODBUS: polynomial 0xA001 (reflected 0x8005),
// initial register 0xFFFF, lsb-first. The low byte of Value goes on the
// wire first.
type CRC struct {
	value uint16
}

// Reset initializes the register to 0xFFFF.
func (c *CRC) Reset() *CRC {
	c.value = 0xFFFF
	return c
}

// PushBytes folds data into the running checksum.
func (c *CRC) PushBytes(data []byte) *CRC {
	for _, b := range data {
		c.value ^= uint16(b)
		for i := 0; i < 8; i++ {
			if c.value&0x0001 != 0 {
				c.value = (c.value >> 1) ^ 0xA001
			} else {
				c.value >>= 1
			}
		}
	}
	return c
}

// Value returns the current checksum.
func (c *CRC) Value() uint16 {
	return c.value
}

// Checksum returns the CRC-16/MODBUS of data.
func Checksum(data []byte) uint16 {
	var c CRC
	return c.Reset().PushBytes(data).Value()
}
