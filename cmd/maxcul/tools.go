package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/maxcul/internal/config"
	"github.com/muurk/maxcul/internal/discovery"
	"github.com/muurk/maxcul/internal/event"
	"github.com/muurk/maxcul/internal/logging"
	"github.com/muurk/maxcul/internal/moritz"
	"github.com/muurk/maxcul/internal/transport"
)

// Tool command flags
var (
	decodeJSON     bool
	scanTimeout    int
	forceConfig    bool
	validateConfig bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode [line...]",
	Short: "Decode received frames",
	Long: `Decode "Z..." lines as printed by culfw in MAX! mode. Lines are read from
the arguments, or from stdin when there are none.`,
	Example: `  maxcul decode Z0F00046018F9410000000019002A00EE2B
  grep '^Z' capture.log | maxcul decode --json`,
	RunE: runDecode,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	RunE:  runPorts,
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find maxcul bridges on the network",
	Long: `Browse mDNS for maxcul feeds announced by 'maxcul serve' and print their
websocket URLs.`,
	RunE: runDiscover,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

func init() {
	decodeCmd.Flags().BoolVar(&decodeJSON, "json", false, "Print JSON documents as published over MQTT")
	discoverCmd.Flags().IntVar(&scanTimeout, "timeout", 5, "Scan timeout in seconds")
	configInitCmd.Flags().BoolVar(&forceConfig, "force", false, "Overwrite an existing file")
	configShowCmd.Flags().BoolVar(&validateConfig, "validate", false, "Validate the configuration as well")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(configCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	if err := initLogging(""); err != nil {
		return err
	}

	lines := args
	if len(lines) == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
	}

	failed := 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out, err := decodeLine(line, decodeJSON, time.Now())
		if err != nil {
			logging.LogRawBytes("Undecodable line", []byte(line))
			failed++
		}
		fmt.Println(out)
	}
	if failed > 0 {
		return fmt.Errorf("%d line(s) could not be decoded", failed)
	}
	return nil
}

// decodeLine renders one line as text or JSON.
func decodeLine(line string, asJSON bool, now time.Time) (string, error) {
	frame, err := moritz.ParseFrame(line)
	if err != nil {
		return fmt.Sprintf("%s: %v", line, err), err
	}
	msg, err := frame.Message()
	if err != nil {
		return fmt.Sprintf("%s\n  %v", frame, err), err
	}
	if asJSON {
		return string(event.FromMessage(msg, now).JSON()), nil
	}
	return fmt.Sprintf("%s\n  %s", frame, msg), nil
}

func runPorts(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	ports, err := transport.ListPorts()
	if err != nil {
		printer.PrintError("Cannot list serial ports", err, nil)
		return err
	}
	if len(ports) == 0 {
		printer.PrintWarning("No serial ports found", map[string]string{
			"Hint": "Plug in the CUL stick and check dmesg",
		})
		return nil
	}

	printer.PrintHeader("Serial Ports", "maxcul ports", nil)
	for _, p := range ports {
		printer.Println("  " + p)
	}
	return nil
}

func runDiscover(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	if err := initLogging(""); err != nil {
		return err
	}

	timeout := time.Duration(scanTimeout) * time.Second
	fmt.Printf("Scanning for maxcul bridges (timeout: %ds)...\n\n", scanTimeout)

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	scanner := discovery.NewScanner()
	scanner.Timeout = timeout
	bridges, err := scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(bridges) == 0 {
		printer.PrintWarning("No bridges found", map[string]string{
			"Hint": "Check that 'maxcul serve' runs with feed.listen and feed.announce set",
		})
		return nil
	}

	fmt.Printf("Found %d bridge(s):\n\n", len(bridges))
	for i, b := range bridges {
		fmt.Printf("%d. %s\n", i+1, b)
		fmt.Printf("   Feed:    %s\n", b.FeedURL())
		if b.Version != "" {
			fmt.Printf("   Version: %s\n", b.Version)
		}
		fmt.Println()
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	path := configPath
	if path == "" {
		p, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	if _, err := os.Stat(path); err == nil && !forceConfig {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	cfg := config.Default()
	if portFlag != "" {
		cfg.Gateway.Port = portFlag
	}
	if addressFlag != "" {
		cfg.Gateway.Address = addressFlag
	}
	if err := cfg.Save(path); err != nil {
		return err
	}
	printer.PrintSuccess("Configuration written", map[string]string{"File": path})
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if validateConfig {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}

	format := configPath
	if format == "" {
		format = "config.yaml"
	}
	data, err := cfg.Marshal(format)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
