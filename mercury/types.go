// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package mercury

import (
	"fmt"
	"time"
)

// Version is a firmware version triple.
type Version [3]byte

func (v Version) String() string {
	return fmt.Sprintf("%02d.%02d.%02d", v[0], v[1], v[2])
}

// PassportData is the meter's identity: serial number, build date, firmware
// version and transformation ratios. Fields a given firmware revision does
// not report are nil (or empty for SerialNumber).
type PassportData struct {
	Address      byte
	SerialRaw    []byte
	SerialNumber string
	BuildDate    *time.Time
	Version      *Version
	VoltageRatio *uint16
	CurrentRatio *byte

	// Raw source blocks, kept for field diagnosis.
	RawInfoBlock []byte
	RawRatios    []byte
}

// EnergyFromReset maps tariff labels to accumulated energy. Values are Wh
// and varh; divide by 1000 for kWh/kvarh.
type EnergyFromReset struct {
	ActiveWh     map[Tariff]int64
	ReactiveVarh map[Tariff]int64

	// Raw register payloads per tariff.
	Raw map[Tariff][]byte
}
