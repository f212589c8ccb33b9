// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package mercury

import (
	"fmt"
	"time"
)

// Tariff labels an energy register bucket.
type Tariff string

const (
	TariffSum  Tariff = "sum"
	TariffT1   Tariff = "t1"
	TariffT2   Tariff = "t2"
	TariffT3   Tariff = "t3"
	TariffT4   Tariff = "t4"
	TariffLoss Tariff = "loss"
)

// tariffOrder fixes which register index each tariff is read from.
var tariffOrder = []Tariff{TariffSum, TariffT1, TariffT2, TariffT3, TariffT4, TariffLoss}

// energyRule is one observed byte layout of a 4-byte energy block. Rules
// are tried in order and the first match wins. The conditions come from
// traffic logs of one device family, not from a published document, so they
// must not be reordered, merged or "cleaned up"; a new device revision gets
// a new row.
type energyRule struct {
	name  string
	match func(cmd byte, b []byte) bool
	value func(cmd byte, b []byte) int64
}

var energyRules = []energyRule{
	{
		// An all-zero block under a zero response command is a true zero.
		name: "zero",
		match: func(cmd byte, b []byte) bool {
			return cmd == 0 && b[0] == 0 && b[1] == 0 && b[2] == 0 && b[3] == 0
		},
		value: func(byte, []byte) int64 { return 0 },
	},
	{
		// Tariff-2 frames put the value in b2,b3 when the response command
		// is zero. b3 == 0xFF has only been seen on absent registers, hence
		// the guard.
		name: "tariff2",
		match: func(cmd byte, b []byte) bool {
			return cmd == 0 && b[0] == 0 && b[1] == 0 && b[3] != 0xFF
		},
		value: func(_ byte, b []byte) int64 {
			return int64(b[3])<<8 | int64(b[2])
		},
	},
	{
		// Dominant layout: value bytes are [b1, b2, response command].
		name:  "dominant",
		match: func(byte, []byte) bool { return true },
		value: func(cmd byte, b []byte) int64 {
			return int64(cmd)<<16 | int64(b[2])<<8 | int64(b[1])
		},
	},
}

// DecodeEnergyValue interprets one 4-byte register block as Wh (or varh for
// the reactive block).
func DecodeEnergyValue(responseCmd byte, block []byte) (int64, error) {
	if len(block) != 4 {
		return 0, newProtocolError("energy block must contain 4 bytes, got %d", len(block))
	}
	for _, rule := range energyRules {
		if rule.match(responseCmd, block) {
			return rule.value(responseCmd, block), nil
		}
	}
	// The dominant rule matches unconditionally.
	return 0, newProtocolError("no energy decode rule matched")
}

// parseBuildDate reads the trailing day/month/year bytes of an info block.
// The year is two digits offset from 2000. An impossible calendar date
// comes back as unknown rather than an error.
func parseBuildDate(data []byte) (time.Time, bool) {
	if len(data) < 3 {
		return time.Time{}, false
	}
	day := int(data[len(data)-3])
	month := int(data[len(data)-2])
	year := 2000 + int(data[len(data)-1])

	if day < 1 || month < 1 || month > 12 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (Feb 31 becomes Mar 2), which would
	// silently accept an invalid date.
	if d.Day() != day || d.Month() != time.Month(month) || d.Year() != year {
		return time.Time{}, false
	}
	return d, true
}

// serialDecimal renders the meter serial the way the vendor tooling does:
// the response command and the first three payload bytes, each as two
// decimal digits, concatenated. Leading zeros are part of the identifier,
// so the result is a string, never a number.
func serialDecimal(responseCmd byte, payload []byte) string {
	if len(payload) < 3 {
		return ""
	}
	return fmt.Sprintf("%02d%02d%02d%02d", responseCmd, payload[0], payload[1], payload[2])
}
