package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/maxcul/internal/config"
	"github.com/muurk/maxcul/internal/moritz"
	"github.com/muurk/maxcul/internal/transceiver"
)

// Send command flags
var (
	setMode    string
	unlinkFlag bool
)

var setCmd = &cobra.Command{
	Use:   "set <device> <temperature>",
	Short: "Set mode and temperature of a thermostat",
	Long: `Send a set temperature message and wait for the thermostat's ACK.

<device> is an RF address or the name of a configured device. The temperature
is in °C, in steps of 0.5 up to 31.5.`,
	Example: `  maxcul set 18F941 21.5
  maxcul set "Living room" 17 --mode AUTOMATIC`,
	Args: cobra.ExactArgs(2),
	RunE: runSet,
}

var timeCmd = &cobra.Command{
	Use:   "sync-time <device>",
	Short: "Send the current time to a device",
	Args:  cobra.ExactArgs(1),
	RunE:  runSyncTime,
}

var wallCmd = &cobra.Command{
	Use:   "wall <device> <desired> <measured>",
	Short: "Report temperatures as the virtual wall thermostat",
	Long: `Send desired and measured temperature to a thermostat from the virtual
wall thermostat (gateway.virtual_address). The thermostat must be linked to
the virtual wall thermostat first.`,
	Args: cobra.ExactArgs(3),
	RunE: runWall,
}

var linkCmd = &cobra.Command{
	Use:   "link <device> <device>",
	Short: "Link two configured devices",
	Long: `Make two devices link partners, e.g. a wall thermostat and the radiator
thermostats of its room. Both devices must be configured, since the link
message carries the partner's device type. Only heating thermostats store
link partners, so one message is sent to each of them.`,
	Example: `  maxcul link 18F941 0A0B0C
  maxcul link "Living room" "Living room wall" --unlink`,
	Args: cobra.ExactArgs(2),
	RunE: runLink,
}

func init() {
	setCmd.Flags().StringVar(&setMode, "mode", "MANUAL", "Thermostat mode (AUTOMATIC, MANUAL, BOOST, VACATION)")
	linkCmd.Flags().BoolVar(&unlinkFlag, "unlink", false, "Remove the link instead")

	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(timeCmd)
	rootCmd.AddCommand(wallCmd)
	rootCmd.AddCommand(linkCmd)
}

func runSet(cmd *cobra.Command, args []string) error {
	mode, err := moritz.ParseThermostatMode(setMode)
	if err != nil {
		return err
	}
	temp, err := parseSetTemperature(args[1])
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	cfg, addr, err := setupSend(args[0])
	if err != nil {
		return err
	}
	return sendAndReport(cfg, "Temperature set", map[string]string{
		"Device":      addr,
		"Mode":        mode.String(),
		"Temperature": fmt.Sprintf("%.1f °C", temp),
	}, func(tr *transceiver.Transceiver) ([]<-chan error, error) {
		return single(tr.SendTemperatureAndMode(addr, mode, temp))
	})
}

func runSyncTime(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, addr, err := setupSend(args[0])
	if err != nil {
		return err
	}
	return sendAndReport(cfg, "Time sent", map[string]string{"Device": addr},
		func(tr *transceiver.Transceiver) ([]<-chan error, error) {
			return single(tr.SendTimeInformation(addr))
		})
}

func runWall(cmd *cobra.Command, args []string) error {
	desired, err := parseTemperature(args[1])
	if err != nil {
		return err
	}
	measured, err := strconv.ParseFloat(args[2], 64)
	if err != nil || measured < 0 || measured > 51.1 {
		return fmt.Errorf("invalid measured temperature %q", args[2])
	}
	cmd.SilenceUsage = true

	cfg, addr, err := setupSend(args[0])
	if err != nil {
		return err
	}
	return sendAndReport(cfg, "Wall thermostat control sent", map[string]string{
		"Device":   addr,
		"From":     cfg.Gateway.VirtualAddress,
		"Desired":  fmt.Sprintf("%.1f °C", desired),
		"Measured": fmt.Sprintf("%.1f °C", measured),
	}, func(tr *transceiver.Transceiver) ([]<-chan error, error) {
		return single(tr.SendWallThermostatControl(addr, desired, measured))
	})
}

func runLink(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	peers := make([]transceiver.Peer, 2)
	for i, ref := range args {
		d, err := knownDevice(cfg, ref)
		if err != nil {
			return err
		}
		if peers[i], err = d.Peer(); err != nil {
			return err
		}
	}
	if err := initLogging(""); err != nil {
		return err
	}

	title := "Devices linked"
	if unlinkFlag {
		title = "Devices unlinked"
	}
	return sendAndReport(cfg, title, map[string]string{
		"First":  fmt.Sprintf("%s (%s)", peers[0].Address, peers[0].Type),
		"Second": fmt.Sprintf("%s (%s)", peers[1].Address, peers[1].Type),
	}, func(tr *transceiver.Transceiver) ([]<-chan error, error) {
		return tr.SendLinkage(!unlinkFlag, peers[0], peers[1])
	})
}

// setupSend loads the configuration and resolves the target device.
func setupSend(ref string) (*config.Config, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	addr, err := resolveAddress(cfg, ref)
	if err != nil {
		return nil, "", err
	}
	if err := initLogging(""); err != nil {
		return nil, "", err
	}
	return cfg, addr, nil
}

// sendAndReport brings the gateway online, queues the sends and waits for
// their ACKs.
func sendAndReport(cfg *config.Config, title string, details map[string]string,
	send func(tr *transceiver.Transceiver) ([]<-chan error, error)) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr, err := openLink(cfg)
	if err != nil {
		printer.PrintError("Cannot open gateway", err, troubleshooting(err))
		return err
	}
	defer func() { _ = tr.Close() }()

	waiter := newOnlineWaiter()
	tr.AddDispatcher(waiter)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- tr.Run(runCtx) }()

	fw, err := waiter.wait(ctx, runErr)
	if err != nil {
		printer.PrintError("Gateway did not come online", err, troubleshooting(err))
		return err
	}

	results, err := send(tr)
	if err == nil {
		sendCtx, cancelSend := context.WithTimeout(ctx, sendTimeout)
		err = awaitResults(sendCtx, results)
		cancelSend()
	}
	cancel()
	<-runErr

	if err != nil {
		printer.PrintError(title+": no confirmation", err, []string{
			"Check that the device is in range and has batteries",
			"Thermostats only listen to the gateway they are paired with",
		})
		return err
	}

	details["Firmware"] = strconv.Itoa(fw)
	details["Messages"] = strconv.Itoa(len(results))
	printer.PrintSuccess(title, details)
	return nil
}

// resolveAddress accepts an RF address or a configured device name.
func resolveAddress(cfg *config.Config, ref string) (string, error) {
	if d, err := knownDevice(cfg, ref); err == nil {
		return strings.ToUpper(d.Address), nil
	}
	if transceiver.IsDeviceAddress(ref) {
		return strings.ToUpper(ref), nil
	}
	return "", fmt.Errorf("%q is neither an RF address nor a configured device", ref)
}

// knownDevice finds a configured device by address or name.
func knownDevice(cfg *config.Config, ref string) (config.Device, error) {
	if d, ok := cfg.Device(ref); ok {
		return d, nil
	}
	for _, d := range cfg.Devices {
		if d.Name != "" && d.Name == ref {
			return d, nil
		}
	}
	return config.Device{}, fmt.Errorf("unknown device %q (not in configuration)", ref)
}

func parseTemperature(s string) (float64, error) {
	temp, err := strconv.ParseFloat(s, 64)
	if err != nil || temp < 0 || temp > 63.5 {
		return 0, fmt.Errorf("invalid temperature %q (0 to 63.5)", s)
	}
	return temp, nil
}

// parseSetTemperature is parseTemperature limited to what a set
// temperature message can carry.
func parseSetTemperature(s string) (float64, error) {
	temp, err := parseTemperature(s)
	if err != nil {
		return 0, err
	}
	if temp > moritz.MaxSetTemperature {
		return 0, fmt.Errorf("invalid temperature %q (0 to %.1f)", s, moritz.MaxSetTemperature)
	}
	return temp, nil
}

func single(result <-chan error, err error) ([]<-chan error, error) {
	if err != nil {
		return nil, err
	}
	return []<-chan error{result}, nil
}
