// Package config loads the maxcul configuration file.
//
// The file describes the gateway (serial port and RF addresses), the MAX!
// devices the gateway answers for, the MQTT bridge and the websocket feed.
// It is read as YAML or TOML depending on its extension and follows OS
// conventions for its default location:
//   - Linux: $XDG_CONFIG_HOME/maxcul/config.yaml or $HOME/.config/maxcul/config.yaml
//   - macOS: $HOME/.config/maxcul/config.yaml
//   - Windows: %LOCALAPPDATA%\maxcul\config.yaml
//
// A few settings can be overridden from the environment so containers need
// no file at all: MAXCUL_PORT, MAXCUL_ADDRESS, MAXCUL_MQTT_BROKER and
// MAXCUL_MQTT_PASSWORD.
//
// # Usage Example
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Security
//
// The MQTT password is never written by Save. Set it through
// MAXCUL_MQTT_PASSWORD.
package config
