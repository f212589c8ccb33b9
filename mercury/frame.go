// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package mercury implements the Mercury-230 polling protocol: RTU-style
// frames with a CRC-16/MODBUS trailer, a retrying request/response exchange
// over a half-duplex transport, and the heuristic decoding of the meter's
// energy registers.
package mercury

import (
	"strconv"
	"strings"

	"github.com/ffutop/mercury-poller/mercury/crc"
)

// frameMinSize is address + command + two checksum bytes, the smallest
// valid frame.
const frameMinSize = 4

// BuildFrame assembles [address][command][data...][crc_lo][crc_hi]. The
// checksum covers everything before it and is stored little-endian.
func BuildFrame(address, command byte, data []byte) []byte {
	raw := make([]byte, 0, len(data)+frameMinSize)
	raw = append(raw, address, command)
	raw = append(raw, data...)
	sum := crc.Checksum(raw)
	return append(raw, byte(sum), byte(sum>>8))
}

// ParseFrame validates the trailing checksum and, when expectedAddress is
// non-nil, the leading address byte. The returned payload aliases frame
// rather than copying it.
func ParseFrame(frame []byte, expectedAddress *byte) (address, command byte, payload []byte, err error) {
	if len(frame) < frameMinSize {
		return 0, 0, nil, newProtocolError("frame length %d does not meet minimum %d", len(frame), frameMinSize)
	}

	body := frame[:len(frame)-2]
	received := uint16(frame[len(frame)-1])<<8 | uint16(frame[len(frame)-2])
	calculated := crc.Checksum(body)
	if received != calculated {
		return 0, 0, nil, newProtocolError("bad crc: got 0x%04X, expected 0x%04X", received, calculated)
	}

	address = frame[0]
	command = frame[1]
	if expectedAddress != nil && address != *expectedAddress {
		return 0, 0, nil, newProtocolError("unexpected address: got %d, expected %d", address, *expectedAddress)
	}

	return address, command, frame[2 : len(frame)-2], nil
}

// ParseAddress parses a device address written as decimal text.
// Hexadecimal and octal spellings are rejected: an address that reads
// "0x2F" on the meter label must be configured as "47".
func ParseAddress(s string) (byte, error) {
	text := strings.TrimSpace(s)
	if text == "" {
		return 0, newInvalidArgument("address must not be empty")
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return 0, newInvalidArgument("address must be decimal (for example: 47)")
		}
	}
	value, err := strconv.ParseUint(text, 10, 16)
	if err != nil || value > 255 {
		return 0, newInvalidArgument("address must be in range 0..255")
	}
	return byte(value), nil
}
