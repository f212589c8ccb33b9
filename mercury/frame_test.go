// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package mercury

import (
	"bytes"
	"errors"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	addresses := []byte{0, 1, 47, 127, 255}
	payloads := [][]byte{
		nil,
		{0x05},
		{0x00, 0x01},
		{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0xFF},
	}

	for _, addr := range addresses {
		for _, data := range payloads {
			frame := BuildFrame(addr, 0x08, data)
			if len(frame) != len(data)+4 {
				t.Fatalf("frame length = %d, want %d", len(frame), len(data)+4)
			}

			gotAddr, gotCmd, gotPayload, err := ParseFrame(frame, &addr)
			if err != nil {
				t.Fatalf("ParseFrame(% x) failed: %v", frame, err)
			}
			if gotAddr != addr || gotCmd != 0x08 {
				t.Errorf("round trip header = (%d, %#02x), want (%d, 0x08)", gotAddr, gotCmd, addr)
			}
			if !bytes.Equal(gotPayload, data) {
				t.Errorf("round trip payload = % x, want % x", gotPayload, data)
			}
		}
	}
}

func TestParseFrameErrors(t *testing.T) {
	valid := BuildFrame(0x2F, 0x00, nil)

	t.Run("TooShort", func(t *testing.T) {
		_, _, _, err := ParseFrame(valid[:3], nil)
		var perr *ProtocolError
		if !errors.As(err, &perr) {
			t.Fatalf("want ProtocolError, got %v", err)
		}
	})

	t.Run("BadCRC", func(t *testing.T) {
		corrupted := append([]byte(nil), valid...)
		corrupted[len(corrupted)-1] ^= 0xFF
		_, _, _, err := ParseFrame(corrupted, nil)
		var perr *ProtocolError
		if !errors.As(err, &perr) {
			t.Fatalf("want ProtocolError, got %v", err)
		}
	})

	t.Run("AddressMismatch", func(t *testing.T) {
		expected := byte(0x30)
		_, _, _, err := ParseFrame(valid, &expected)
		var perr *ProtocolError
		if !errors.As(err, &perr) {
			t.Fatalf("want ProtocolError, got %v", err)
		}
	})

	t.Run("NoExpectedAddress", func(t *testing.T) {
		addr, cmd, _, err := ParseFrame(valid, nil)
		if err != nil {
			t.Fatalf("ParseFrame failed: %v", err)
		}
		if addr != 0x2F || cmd != 0x00 {
			t.Errorf("header = (%#02x, %#02x), want (0x2f, 0x00)", addr, cmd)
		}
	})
}

// Flipping any single bit of the frame body must be caught by the checksum.
func TestParseFrameDetectsBitFlips(t *testing.T) {
	frame := BuildFrame(0x2F, 0x05, []byte{0x00, 0x01})
	body := len(frame) - 2

	for i := 0; i < body; i++ {
		for bit := 0; bit < 8; bit++ {
			corrupted := append([]byte(nil), frame...)
			corrupted[i] ^= 1 << bit

			_, _, _, err := ParseFrame(corrupted, nil)
			var perr *ProtocolError
			if !errors.As(err, &perr) {
				t.Fatalf("bit %d of byte %d flipped: want ProtocolError, got %v", bit, i, err)
			}
		}
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    byte
		wantErr bool
	}{
		{"Zero", "0", 0, false},
		{"Plain", "47", 47, false},
		{"Max", "255", 255, false},
		{"Whitespace", " 47 ", 47, false},
		{"LeadingZeros", "047", 47, false},
		{"OutOfRange", "256", 0, true},
		{"Hex", "0x2F", 0, true},
		{"HexDigits", "2F", 0, true},
		{"Negative", "-1", 0, true},
		{"Empty", "", 0, true},
		{"Float", "4.7", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAddress(tt.input)
			if tt.wantErr {
				var ierr *InvalidArgumentError
				if !errors.As(err, &ierr) {
					t.Fatalf("ParseAddress(%q): want InvalidArgumentError, got %v", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAddress(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseAddress(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}
