// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
poll_interval: 15s
meters:
  - name: basement
    transport: tcp
    address: 47
    timeout: 2s
    retries: 0
    tcp:
      address: 10.0.31.202:2222
  - transport: serial
    address: "146"
    serial:
      device: /dev/ttyUSB0
      baud_rate: 19200
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
	if cfg.PollInterval != 15*time.Second {
		t.Errorf("poll_interval = %v, want 15s", cfg.PollInterval)
	}
	if len(cfg.Meters) != 2 {
		t.Fatalf("meters = %d, want 2", len(cfg.Meters))
	}

	first := cfg.Meters[0]
	if first.Name != "basement" {
		t.Errorf("name = %q, want basement", first.Name)
	}
	// Unquoted YAML integer addresses must work too.
	if addr, err := first.DeviceAddress(); err != nil || addr != 47 {
		t.Errorf("DeviceAddress() = (%d, %v), want (47, nil)", addr, err)
	}
	if first.Timeout != 2*time.Second {
		t.Errorf("timeout = %v, want 2s", first.Timeout)
	}
	if first.RetryCount() != 0 {
		t.Errorf("RetryCount() = %d, want explicit 0", first.RetryCount())
	}

	second := cfg.Meters[1]
	if second.Name != "meter-146" {
		t.Errorf("defaulted name = %q, want meter-146", second.Name)
	}
	if addr, err := second.DeviceAddress(); err != nil || addr != 146 {
		t.Errorf("DeviceAddress() = (%d, %v), want (146, nil)", addr, err)
	}
	if second.Timeout != time.Second {
		t.Errorf("defaulted timeout = %v, want 1s", second.Timeout)
	}
	if second.RetryCount() != 1 {
		t.Errorf("defaulted RetryCount() = %d, want 1", second.RetryCount())
	}
	if second.Serial.BaudRate != 19200 {
		t.Errorf("baud_rate = %d, want 19200", second.Serial.BaudRate)
	}
}

func TestLoadConfigRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"NoMeters", "log:\n  level: info\n"},
		{"HexAddress", `
meters:
  - transport: tcp
    address: "0x2F"
    tcp:
      address: 127.0.0.1:2222
`},
		{"AddressOutOfRange", `
meters:
  - transport: tcp
    address: 256
    tcp:
      address: 127.0.0.1:2222
`},
		{"UnknownTransport", `
meters:
  - transport: udp
    address: 47
`},
		{"MissingSerialDevice", `
meters:
  - transport: serial
    address: 47
`},
		{"MissingTcpAddress", `
meters:
  - transport: tcp
    address: 47
`},
		{"NegativeRetries", `
meters:
  - transport: tcp
    address: 47
    retries: -1
    tcp:
      address: 127.0.0.1:2222
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := LoadConfig(path); err == nil {
				t.Errorf("LoadConfig accepted invalid config:\n%s", tt.content)
			}
		})
	}
}
