// Maxcul drives MAX! heating devices through a CUL stick running culfw.
//
// It talks to the stick over its serial port, answers pairing and time
// requests from known devices, and bridges the decoded radio traffic to
// MQTT and to a websocket feed that is announced over mDNS.
//
// Usage:
//
//	maxcul [command] [flags]
//
// See 'maxcul --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/maxcul/internal/config"
	"github.com/muurk/maxcul/internal/logging"
	"github.com/muurk/maxcul/internal/ui"
	"github.com/muurk/maxcul/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath  string
	logLevel    string
	portFlag    string
	addressFlag string
)

var rootCmd = &cobra.Command{
	Use:   "maxcul",
	Short: "MAX! heating bridge for CUL sticks",
	Long: `Drive MAX! radiator and wall thermostats through a CUL stick running culfw.

The serve command keeps the radio link up, answers pairing and time requests
from configured devices and publishes every decoded message over MQTT and a
websocket feed. The monitor command shows the same traffic in the terminal.

Configuration is read from ~/.config/maxcul/config.yaml (or config.toml)
unless --config is given.`,
	Version: version.Version,
	Example: `  # Run the bridge with the default configuration file
  maxcul serve

  # Watch radio traffic on a specific stick
  maxcul monitor --port /dev/ttyUSB0

  # Decode a captured frame
  maxcul decode Z0F00046018F9410000000019002A00EE2B`,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (default: OS config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&portFlag, "port", "", "Serial port of the CUL stick (overrides config)")
	rootCmd.PersistentFlags().StringVar(&addressFlag, "address", "", "RF address of the gateway (overrides config)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("maxcul %s\n", version.Full())
		fmt.Printf("built with %s\n", version.Platform())
	},
}

// loadConfig reads the configuration file, applies the command line
// overrides and validates the result.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if portFlag != "" {
		cfg.Gateway.Port = portFlag
	}
	if addressFlag != "" {
		cfg.Gateway.Address = addressFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogging sets up zap from --log-level, then MAXCUL_LOG_LEVEL, then
// fallback. An empty result keeps logging silent.
func initLogging(fallback string) error {
	level := logLevel
	if level == "" {
		level = os.Getenv(logging.LogLevelEnvVar)
	}
	if level == "" {
		level = fallback
	}
	return logging.Initialize(level)
}

// printer is shared by the one-shot commands.
var printer = ui.NewPrinter(nil)
