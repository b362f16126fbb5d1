package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/maxcul/internal/config"
	"github.com/muurk/maxcul/internal/discovery"
	"github.com/muurk/maxcul/internal/feed"
	"github.com/muurk/maxcul/internal/logging"
	"github.com/muurk/maxcul/internal/mqttbridge"
	"github.com/muurk/maxcul/internal/transceiver"
	"github.com/muurk/maxcul/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge",
	Long: `Connect to the CUL stick and keep the radio link up until interrupted.

Pair pings and time requests from configured devices are answered. Every
decoded message is published to the MQTT broker (mqtt.broker) and streamed
to websocket clients (feed.listen), which is announced over mDNS unless
feed.announce is false.`,
	Example: `  # Run with the default configuration file
  maxcul serve

  # Debug logging and another stick
  maxcul serve --port /dev/ttyUSB1 --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := initLogging(cfg.LogLevel); err != nil {
		return err
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr, err := openLink(cfg)
	if err != nil {
		printer.PrintError("Cannot open gateway", err, troubleshooting(err))
		return err
	}
	defer func() { _ = tr.Close() }()

	tr.AddDispatcher(transceiver.NewResponder(tr, cfg.KnownAddresses()))

	if cfg.MQTT.Broker != "" {
		bridge := mqttbridge.New(mqttbridge.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Prefix:   cfg.MQTT.Prefix,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		}, tr)
		if err := bridge.Connect(ctx); err != nil {
			return err
		}
		defer bridge.Close()
		tr.AddDispatcher(bridge)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	feedDone := make(chan error, 1)
	if cfg.Feed.Listen != "" {
		if err := startFeed(runCtx, cfg, tr, feedDone); err != nil {
			return err
		}
	} else {
		feedDone <- nil
	}

	logging.Info("Bridge running",
		zap.String("port", cfg.Gateway.Port),
		zap.String("address", tr.Address()),
		zap.Int("devices", len(cfg.Devices)),
		zap.String("version", version.Version),
	)

	err = tr.Run(runCtx)
	cancel()
	if feedErr := <-feedDone; feedErr != nil {
		logging.Warn("Feed stopped with error", zap.Error(feedErr))
	}

	if errors.Is(err, context.Canceled) {
		logging.Info("Shutdown signal received, stopping bridge...")
		return nil
	}
	printer.PrintError("Gateway link lost", err, troubleshooting(err))
	return err
}

// startFeed serves the websocket feed until ctx is done and announces it.
// The outcome of serving is sent to done.
func startFeed(ctx context.Context, cfg *config.Config, tr *transceiver.Transceiver, done chan<- error) error {
	hub := feed.NewHub()
	srv := feed.NewServer(cfg.Feed.Listen, hub)
	if err := srv.Listen(); err != nil {
		return err
	}
	tr.AddDispatcher(hub)

	if cfg.Feed.Announce {
		announcement, err := discovery.Announce(cfg.Feed.Name, srv.Port(), discovery.TXT{
			Gateway: tr.Address(),
			Path:    feed.Path,
			Version: version.Version,
		})
		if err != nil {
			// The feed still works without mDNS
			logging.Warn("Cannot announce feed", zap.Error(err))
		} else {
			go func() {
				<-ctx.Done()
				announcement.Shutdown()
			}()
		}
	}

	go func() {
		err := srv.Serve(ctx)
		if err != nil {
			err = fmt.Errorf("feed: %w", err)
		}
		done <- err
	}()
	return nil
}
