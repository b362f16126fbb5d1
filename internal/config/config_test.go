package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/muurk/maxcul/internal/moritz"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if !strings.Contains(configDir, "maxcul") {
		t.Errorf("GetConfigDir() = %v, should contain 'maxcul'", configDir)
	}

	switch runtime.GOOS {
	case "windows":
		if !strings.Contains(configDir, "AppData") && !strings.Contains(configDir, "Local") {
			t.Errorf("Windows config dir should contain 'AppData' or 'Local', got: %v", configDir)
		}
	case "darwin":
		if !strings.Contains(configDir, ".config") {
			t.Errorf("macOS config dir should contain '.config', got: %v", configDir)
		}
	}
}

func TestGetConfigDir_XDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME only applies on Linux")
	}
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	dir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if dir != filepath.Join("/tmp/xdg", "maxcul") {
		t.Errorf("GetConfigDir() = %s, want /tmp/xdg/maxcul", dir)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
	if cfg.Gateway.BaudRate != 38400 {
		t.Errorf("BaudRate = %d, want 38400", cfg.Gateway.BaudRate)
	}
	if cfg.MQTT.Broker != "" || cfg.Feed.Listen != "" {
		t.Error("bridges should be disabled by default")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"default", func(*Config) {}, ""},
		{"bad version", func(c *Config) { c.Version = 2 }, "unsupported config version"},
		{"no port", func(c *Config) { c.Gateway.Port = " " }, "gateway.port"},
		{"zero baud", func(c *Config) { c.Gateway.BaudRate = 0 }, "gateway.baud_rate"},
		{"bad address", func(c *Config) { c.Gateway.Address = "12345" }, "gateway.address"},
		{"bad virtual address", func(c *Config) { c.Gateway.VirtualAddress = "zzzzzz" }, "gateway.virtual_address"},
		{"valid devices", func(c *Config) {
			c.Devices = []Device{
				{Address: "18F941", Type: "HEATING_THERMOSTAT"},
				{Address: "0a0b0c", Type: "wall_mounted_thermostat"},
			}
		}, ""},
		{"bad device address", func(c *Config) {
			c.Devices = []Device{{Address: "18F94", Type: "HEATING_THERMOSTAT"}}
		}, "devices[0].address"},
		{"duplicate device", func(c *Config) {
			c.Devices = []Device{
				{Address: "18F941", Type: "HEATING_THERMOSTAT"},
				{Address: "18f941", Type: "HEATING_THERMOSTAT"},
			}
		}, "duplicate address"},
		{"bad device type", func(c *Config) {
			c.Devices = []Device{{Address: "18F941", Type: "TOASTER"}}
		}, "devices[0].type"},
		{"valid broker", func(c *Config) { c.MQTT.Broker = "tcp://localhost:1883" }, ""},
		{"broker without scheme", func(c *Config) { c.MQTT.Broker = "localhost:1883" }, "mqtt.broker"},
		{"broker with http scheme", func(c *Config) { c.MQTT.Broker = "http://localhost" }, "mqtt.broker"},
		{"broker without prefix", func(c *Config) {
			c.MQTT.Broker = "tcp://localhost:1883"
			c.MQTT.Prefix = ""
		}, "mqtt.prefix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportsAll(t *testing.T) {
	cfg := Default()
	cfg.Gateway.Port = ""
	cfg.Gateway.Address = "nope"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil")
	}
	for _, want := range []string{"gateway.port", "gateway.address"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error = %v, missing %s", err, want)
		}
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "config.yaml",
			content: `version: 1
gateway:
  port: /dev/ttyUSB1
  address: 1a2b3c
  virtual_address: 4d5e6f
devices:
  - address: 18F941
    type: HEATING_THERMOSTAT
    name: Living room
mqtt:
  broker: tcp://broker:1883
`,
		},
		{
			name: "toml",
			file: "config.toml",
			content: `version = 1

[gateway]
port = "/dev/ttyUSB1"
address = "1a2b3c"
virtual_address = "4d5e6f"

[[devices]]
address = "18F941"
type = "HEATING_THERMOSTAT"
name = "Living room"

[mqtt]
broker = "tcp://broker:1883"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}

			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("Validate() error = %v", err)
			}
			if cfg.Gateway.Port != "/dev/ttyUSB1" || cfg.Gateway.Address != "1a2b3c" || cfg.Gateway.VirtualAddress != "4d5e6f" {
				t.Errorf("gateway = %+v", cfg.Gateway)
			}
			// Omitted settings keep their defaults
			if cfg.Gateway.BaudRate != 38400 || cfg.MQTT.Prefix != "maxcul" {
				t.Errorf("defaults lost: baud %d prefix %q", cfg.Gateway.BaudRate, cfg.MQTT.Prefix)
			}
			if cfg.MQTT.Broker != "tcp://broker:1883" {
				t.Errorf("broker = %q", cfg.MQTT.Broker)
			}

			d, ok := cfg.Device("18f941")
			if !ok || d.DisplayName() != "Living room" {
				t.Fatalf("Device(18f941) = %+v, %v", d, ok)
			}
			peer, err := d.Peer()
			if err != nil || peer.Type != moritz.DeviceHeatingThermostat {
				t.Errorf("Peer() = %+v, %v", peer, err)
			}
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Load() of a missing explicit file should fail")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("gateway: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Error("Load() of invalid YAML should fail")
	}
}

func TestLoad_DefaultLocationMissing(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME only applies on Linux")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(EnvPort, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Gateway.Port != Default().Gateway.Port {
		t.Errorf("port = %s, want default", cfg.Gateway.Port)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvPort:         "/dev/ttyAMA0",
		EnvAddress:      "ABCDEF",
		EnvMQTTBroker:   "tcp://mqtt:1883",
		EnvMQTTPassword: "secret",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	if cfg.Gateway.Port != "/dev/ttyAMA0" || cfg.Gateway.Address != "ABCDEF" {
		t.Errorf("gateway = %+v", cfg.Gateway)
	}
	if cfg.MQTT.Broker != "tcp://mqtt:1883" || cfg.MQTT.Password != "secret" {
		t.Errorf("mqtt = %+v", cfg.MQTT)
	}
}

func TestSaveAndLoad(t *testing.T) {
	for _, file := range []string{"config.yaml", "config.toml"} {
		t.Run(file, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sub", file)

			cfg := Default()
			cfg.Gateway.VirtualAddress = "654321"
			cfg.Devices = []Device{{Address: "18F941", Type: "HEATING_THERMOSTAT", Name: "Bathroom"}}
			cfg.MQTT.Password = "secret"

			if err := cfg.Save(path); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if strings.Contains(string(data), "secret") {
				t.Error("Save() wrote the MQTT password")
			}

			loaded, err := loadFromFile(path)
			if err != nil {
				t.Fatalf("loadFromFile() error = %v", err)
			}
			if loaded.Gateway != cfg.Gateway {
				t.Errorf("gateway = %+v, want %+v", loaded.Gateway, cfg.Gateway)
			}
			if len(loaded.Devices) != 1 || loaded.Devices[0] != cfg.Devices[0] {
				t.Errorf("devices = %+v", loaded.Devices)
			}
			if loaded.Feed != cfg.Feed {
				t.Errorf("feed = %+v, want %+v", loaded.Feed, cfg.Feed)
			}
		})
	}
}

func TestKnownAddresses(t *testing.T) {
	cfg := Default()
	cfg.Devices = []Device{{Address: "18f941"}, {Address: "0A0B0C"}}

	got := cfg.KnownAddresses()
	if strings.Join(got, ",") != "18F941,0A0B0C" {
		t.Errorf("KnownAddresses() = %v", got)
	}
}
