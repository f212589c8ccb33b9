// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package crc

import (
	"testing"
)

func TestCRC(t *testing.T) {
	var crc CRC
	crc.Reset()
	crc.PushBytes([]byte{0x02, 0x07})

	if crc.Value() != 0x1241 {
		t.Fatalf("crc expected %v, actual %v", 0x1241, crc.Value())
	}
}

func TestChecksum(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected uint16
	}{
		{"Empty", []byte{}, 0xFFFF},
		{"SingleZero", []byte{0x00}, 0x40BF},
		{"KnownVector", []byte{0x02, 0x07}, 0x1241},
		{"ReadHoldingRequest", []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01}, 0x0A84},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Checksum(tt.data); got != tt.expected {
				t.Errorf("Checksum(% x) = %#04x, want %#04x", tt.data, got, tt.expected)
			}
		})
	}
}

func TestChecksumIncremental(t *testing.T) {
	data := []byte{0x2F, 0x05, 0x00, 0x00}

	var c CRC
	c.Reset()
	c.PushBytes(data[:2]).PushBytes(data[2:])

	if c.Value() != Checksum(data) {
		t.Errorf("incremental value %#04x differs from one-shot %#04x", c.Value(), Checksum(data))
	}
}
