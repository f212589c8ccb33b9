// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package mercury

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeEnergyValue(t *testing.T) {
	tests := []struct {
		name  string
		cmd   byte
		block []byte
		want  int64
	}{
		{"Zero", 0x00, []byte{0, 0, 0, 0}, 0},
		{"Tariff2", 0x00, []byte{0x00, 0x00, 0x10, 0x20}, 0x2010},
		{"Tariff2HighLow", 0x00, []byte{0x00, 0x00, 0x12, 0x34}, 0x3412},
		// b3 == 0xFF blocks the tariff-2 rule; the dominant layout applies.
		{"Tariff2Guard", 0x00, []byte{0x00, 0x00, 0x12, 0xFF}, 0x1200},
		{"Dominant", 0x05, []byte{0xAA, 0x11, 0x22, 0xBB}, 0x052211},
		{"DominantZeroCmdNonZeroB1", 0x00, []byte{0x00, 0x01, 0x00, 0x00}, 0x000001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeEnergyValue(tt.cmd, tt.block)
			if err != nil {
				t.Fatalf("DecodeEnergyValue failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeEnergyValue(%#02x, % x) = %#x, want %#x", tt.cmd, tt.block, got, tt.want)
			}
		})
	}
}

func TestDecodeEnergyValueBadLength(t *testing.T) {
	for _, block := range [][]byte{nil, {0x00}, {0, 0, 0}, {0, 0, 0, 0, 0}} {
		_, err := DecodeEnergyValue(0x05, block)
		var perr *ProtocolError
		if !errors.As(err, &perr) {
			t.Errorf("block of %d bytes: want ProtocolError, got %v", len(block), err)
		}
	}
}

func TestParseBuildDate(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want time.Time
		ok   bool
	}{
		{"Valid", []byte{0x12, 0x34, 0x56, 15, 6, 24}, time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC), true},
		{"DateOnly", []byte{1, 1, 0}, time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC), true},
		{"February31", []byte{0x12, 0x34, 0x56, 31, 2, 24}, time.Time{}, false},
		{"MonthZero", []byte{15, 0, 24}, time.Time{}, false},
		{"Month13", []byte{15, 13, 24}, time.Time{}, false},
		{"DayZero", []byte{0, 6, 24}, time.Time{}, false},
		{"TooShort", []byte{6, 24}, time.Time{}, false},
		{"Empty", nil, time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseBuildDate(tt.data)
			if ok != tt.ok {
				t.Fatalf("parseBuildDate(% x) ok = %v, want %v", tt.data, ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("parseBuildDate(% x) = %v, want %v", tt.data, got, tt.want)
			}
		})
	}
}

func TestSerialDecimal(t *testing.T) {
	tests := []struct {
		name    string
		cmd     byte
		payload []byte
		want    string
	}{
		{"LeadingZeros", 9, []byte{1, 2, 3, 15, 6, 24}, "09010203"},
		{"TwoDigit", 12, []byte{34, 56, 78}, "12345678"},
		{"Short", 9, []byte{1, 2}, ""},
		{"Empty", 9, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := serialDecimal(tt.cmd, tt.payload); got != tt.want {
				t.Errorf("serialDecimal(%d, % x) = %q, want %q", tt.cmd, tt.payload, got, tt.want)
			}
		})
	}
}
