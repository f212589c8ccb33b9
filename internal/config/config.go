// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/ffutop/mercury-poller/mercury"
)

// Config defines the daemon configuration: which meters to poll and how to
// log.
type Config struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Log          LogConfig     `mapstructure:"log"`
	Meters       []MeterConfig `mapstructure:"meters"`
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`  // Log file path
}

// MeterConfig defines one polled device and the channel it sits on.
type MeterConfig struct {
	Name      string        `mapstructure:"name"`
	Transport string        `mapstructure:"transport"` // "serial" or "tcp"
	Address   string        `mapstructure:"address"`   // decimal, 0..255
	Timeout   time.Duration `mapstructure:"timeout"`
	Retries   *int          `mapstructure:"retries"`
	Serial    SerialConfig  `mapstructure:"serial"` // Used if Transport is "serial"
	Tcp       TcpConfig     `mapstructure:"tcp"`    // Used if Transport is "tcp"
}

// SerialConfig defines serial line settings; byte framing is always 8N1.
type SerialConfig struct {
	Device   string `mapstructure:"device"`
	BaudRate int    `mapstructure:"baud_rate"`
}

// TcpConfig defines the transparent tunnel endpoint.
type TcpConfig struct {
	Address string `mapstructure:"address"` // e.g. "10.0.31.202:2222"
}

// DeviceAddress parses the configured address. Only decimal text is
// accepted; YAML integers arrive here as their decimal rendering.
func (m *MeterConfig) DeviceAddress() (byte, error) {
	return mercury.ParseAddress(m.Address)
}

// RetryCount returns the configured retry count or the default.
func (m *MeterConfig) RetryCount() int {
	if m.Retries == nil {
		return mercury.DefaultRetries
	}
	return *m.Retries
}

// LoadConfig loads configuration from file
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/mercury-poller/")
		v.AddConfigPath("$HOME/.mercury-poller")
		v.AddConfigPath(".")
	}

	// Set defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("poll_interval", "30s")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	// Weak typing lets "address: 47" be written without quotes.
	weak := func(dc *mapstructure.DecoderConfig) { dc.WeaklyTypedInput = true }
	if err := v.Unmarshal(&config, weak); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(config.Meters) == 0 {
		return nil, fmt.Errorf("no meters configured")
	}
	for i := range config.Meters {
		if err := fixupMeter(&config.Meters[i]); err != nil {
			return nil, err
		}
	}

	return &config, nil
}

func fixupMeter(m *MeterConfig) error {
	if m.Name == "" {
		m.Name = fmt.Sprintf("meter-%s", m.Address)
	}
	if m.Timeout == 0 {
		m.Timeout = mercury.DefaultTimeout
	}
	if m.Retries != nil && *m.Retries < 0 {
		return fmt.Errorf("meter %s: retries must be >= 0", m.Name)
	}

	if _, err := m.DeviceAddress(); err != nil {
		return fmt.Errorf("meter %s: %w", m.Name, err)
	}

	switch m.Transport {
	case "serial":
		if m.Serial.Device == "" {
			return fmt.Errorf("meter %s: serial.device is required", m.Name)
		}
	case "tcp":
		if m.Tcp.Address == "" {
			return fmt.Errorf("meter %s: tcp.address is required", m.Name)
		}
	default:
		return fmt.Errorf("meter %s: transport must be 'serial' or 'tcp'", m.Name)
	}
	return nil
}
