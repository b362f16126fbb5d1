package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/muurk/maxcul/internal/moritz"
	"github.com/muurk/maxcul/internal/transceiver"
	"github.com/muurk/maxcul/internal/transport"
)

// CurrentVersion is the configuration file format version.
const CurrentVersion = 1

// Config represents the entire configuration file.
type Config struct {
	Version  int           `yaml:"version" toml:"version"`
	Gateway  GatewayConfig `yaml:"gateway" toml:"gateway"`
	Devices  []Device      `yaml:"devices,omitempty" toml:"devices,omitempty"`
	MQTT     MQTTConfig    `yaml:"mqtt" toml:"mqtt"`
	Feed     FeedConfig    `yaml:"feed" toml:"feed"`
	LogLevel string        `yaml:"log_level,omitempty" toml:"log_level,omitempty"`
}

// GatewayConfig describes the CUL stick.
type GatewayConfig struct {
	Port           string `yaml:"port" toml:"port"`                                         // Serial port (e.g. /dev/ttyACM0)
	BaudRate       int    `yaml:"baud_rate" toml:"baud_rate"`                               // Serial speed
	Address        string `yaml:"address" toml:"address"`                                   // RF address the gateway sends from
	VirtualAddress string `yaml:"virtual_address,omitempty" toml:"virtual_address,omitempty"` // Virtual wall thermostat (optional)
}

// Device is a MAX! device paired with the gateway.
type Device struct {
	Address string `yaml:"address" toml:"address"`
	Type    string `yaml:"type" toml:"type"` // HEATING_THERMOSTAT, WALL_MOUNTED_THERMOSTAT, ...
	Name    string `yaml:"name,omitempty" toml:"name,omitempty"`
}

// MQTTConfig configures the MQTT bridge. An empty broker disables it.
type MQTTConfig struct {
	Broker   string `yaml:"broker,omitempty" toml:"broker,omitempty"` // e.g. tcp://localhost:1883
	ClientID string `yaml:"client_id" toml:"client_id"`
	Prefix   string `yaml:"prefix" toml:"prefix"`
	Username string `yaml:"username,omitempty" toml:"username,omitempty"`
	// Password is only read from the environment
	Password string `yaml:"-" toml:"-"`
}

// FeedConfig configures the websocket feed. An empty listen address
// disables it.
type FeedConfig struct {
	Listen   string `yaml:"listen,omitempty" toml:"listen,omitempty"` // e.g. :8089
	Announce bool   `yaml:"announce" toml:"announce"`                 // Register the feed over mDNS
	Name     string `yaml:"name" toml:"name"`                         // mDNS instance name
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Gateway: GatewayConfig{
			Port:     "/dev/ttyACM0",
			BaudRate: transport.DefaultBaudRate,
			Address:  "123456",
		},
		MQTT: MQTTConfig{
			ClientID: "maxcul",
			Prefix:   "maxcul",
		},
		Feed: FeedConfig{
			Announce: true,
			Name:     "maxcul",
		},
		LogLevel: "info",
	}
}

var validBrokerSchemes = map[string]bool{
	"tcp": true, "ssl": true, "tls": true, "mqtt": true, "mqtts": true, "ws": true, "wss": true,
}

// Validate checks the configuration. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Version != CurrentVersion {
		errs = append(errs, fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion))
	}
	if strings.TrimSpace(c.Gateway.Port) == "" {
		errs = append(errs, errors.New("gateway.port is required"))
	}
	if c.Gateway.BaudRate <= 0 {
		errs = append(errs, fmt.Errorf("gateway.baud_rate must be positive, got %d", c.Gateway.BaudRate))
	}
	if !transceiver.IsDeviceAddress(c.Gateway.Address) {
		errs = append(errs, fmt.Errorf("gateway.address %q is not 6 hex digits", c.Gateway.Address))
	}
	if c.Gateway.VirtualAddress != "" && !transceiver.IsDeviceAddress(c.Gateway.VirtualAddress) {
		errs = append(errs, fmt.Errorf("gateway.virtual_address %q is not 6 hex digits", c.Gateway.VirtualAddress))
	}

	seen := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		if !transceiver.IsDeviceAddress(d.Address) {
			errs = append(errs, fmt.Errorf("devices[%d].address %q is not 6 hex digits", i, d.Address))
			continue
		}
		addr := strings.ToUpper(d.Address)
		if seen[addr] {
			errs = append(errs, fmt.Errorf("devices[%d]: duplicate address %s", i, addr))
		}
		seen[addr] = true
		if _, err := moritz.ParseDeviceType(d.Type); err != nil {
			errs = append(errs, fmt.Errorf("devices[%d].type: %w", i, err))
		}
	}

	if c.MQTT.Broker != "" {
		u, err := url.Parse(c.MQTT.Broker)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("mqtt.broker: %w", err))
		case !validBrokerSchemes[u.Scheme] || u.Host == "":
			errs = append(errs, fmt.Errorf("mqtt.broker %q must look like tcp://host:port", c.MQTT.Broker))
		}
		if strings.TrimSpace(c.MQTT.Prefix) == "" {
			errs = append(errs, errors.New("mqtt.prefix is required with a broker"))
		}
	}

	return errors.Join(errs...)
}

// KnownAddresses returns the upper case addresses of the configured devices.
func (c *Config) KnownAddresses() []string {
	out := make([]string, 0, len(c.Devices))
	for _, d := range c.Devices {
		out = append(out, strings.ToUpper(d.Address))
	}
	return out
}

// Device returns the configured device with the given address.
func (c *Config) Device(addr string) (Device, bool) {
	for _, d := range c.Devices {
		if strings.EqualFold(d.Address, addr) {
			return d, true
		}
	}
	return Device{}, false
}

// Peer returns the device as a link partner. The type must be valid.
func (d Device) Peer() (transceiver.Peer, error) {
	t, err := moritz.ParseDeviceType(d.Type)
	if err != nil {
		return transceiver.Peer{}, err
	}
	return transceiver.Peer{Address: strings.ToUpper(d.Address), Type: t}, nil
}

// DisplayName returns the device name, or its address when unnamed.
func (d Device) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return strings.ToUpper(d.Address)
}
