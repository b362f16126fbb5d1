package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/maxcul/internal/moritz"
	"github.com/muurk/maxcul/internal/transceiver"
	"github.com/muurk/maxcul/internal/ui"
)

var plainMonitor bool

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch decoded radio traffic",
	Long: `Connect to the CUL stick and show every decoded message.

On a terminal this opens a live view with one row per device that was heard
from. With --plain, or when stdout is not a terminal, one line is printed per
message instead. The monitor only listens: it answers no requests.`,
	Example: `  # Live view
  maxcul monitor

  # Log lines, e.g. to pipe into grep
  maxcul monitor --plain | grep ThermostatState`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().BoolVar(&plainMonitor, "plain", false, "Print one line per message instead of the live view")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Log lines would tear the live view, so only explicit levels apply
	if err := initLogging(""); err != nil {
		return err
	}

	tr, err := openLink(cfg)
	if err != nil {
		printer.PrintError("Cannot open gateway", err, troubleshooting(err))
		return err
	}
	defer func() { _ = tr.Close() }()

	if plainMonitor || !ui.IsTerminal() {
		return runPlainMonitor(tr)
	}

	known := make(map[string]ui.DeviceInfo, len(cfg.Devices))
	for _, d := range cfg.Devices {
		known[d.Address] = ui.DeviceInfo{Name: d.Name, Type: d.Type}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	model := ui.NewMonitorModel(cfg.Gateway.Port, cfg.Gateway.Address, known)
	return ui.RunMonitor(model, func(feed *ui.Feed) {
		tr.AddDispatcher(feed)
		go func() {
			if err := tr.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				feed.Fail(err)
			}
		}()
	})
}

// plainPrinter prints one line per message and status change.
type plainPrinter struct{}

func (plainPrinter) Dispatch(msg moritz.Incoming) {
	fmt.Printf("%s %s\n", time.Now().Format("15:04:05.000"), msg)
}

func (plainPrinter) GatewayStatus(s transceiver.Status) {
	state := "offline"
	if s.Online {
		state = "online"
	}
	fmt.Printf("%s gateway %s (firmware %d)\n", time.Now().Format("15:04:05.000"), state, s.Version)
}

func runPlainMonitor(tr *transceiver.Transceiver) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr.AddDispatcher(plainPrinter{})
	err := tr.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
