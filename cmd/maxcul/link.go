package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/muurk/maxcul/internal/command"
	"github.com/muurk/maxcul/internal/config"
	"github.com/muurk/maxcul/internal/moritz"
	"github.com/muurk/maxcul/internal/transceiver"
	"github.com/muurk/maxcul/internal/transport"
)

// openLink opens the serial port and starts the version handshake. Closing
// the transceiver closes the port.
func openLink(cfg *config.Config) (*transceiver.Transceiver, error) {
	tr, err := transceiver.New(transceiver.Config{
		Port:           cfg.Gateway.Port,
		Address:        cfg.Gateway.Address,
		VirtualAddress: cfg.Gateway.VirtualAddress,
	})
	if err != nil {
		return nil, err
	}

	port, err := transport.Open(transport.PortConfig{
		Path:     cfg.Gateway.Port,
		BaudRate: cfg.Gateway.BaudRate,
	})
	if err != nil {
		return nil, err
	}

	if err := tr.Connect(port); err != nil {
		_ = port.Close()
		return nil, err
	}
	return tr, nil
}

// onlineWaiter signals once the gateway finished its handshake.
type onlineWaiter struct {
	online chan int
}

func newOnlineWaiter() *onlineWaiter {
	return &onlineWaiter{online: make(chan int, 1)}
}

func (w *onlineWaiter) Dispatch(moritz.Incoming) {}

func (w *onlineWaiter) GatewayStatus(s transceiver.Status) {
	if !s.Online {
		return
	}
	select {
	case w.online <- s.Version:
	default:
	}
}

// wait returns the firmware version once online, or the error that ended
// the link first.
func (w *onlineWaiter) wait(ctx context.Context, runErr <-chan error) (int, error) {
	select {
	case v := <-w.online:
		return v, nil
	case err := <-runErr:
		if err == nil {
			err = errors.New("link closed before the gateway came online")
		}
		return 0, err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// awaitResults waits for every send to finish.
func awaitResults(ctx context.Context, results []<-chan error) error {
	var errs []error
	for _, result := range results {
		select {
		case err := <-result:
			if err != nil {
				errs = append(errs, err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return errors.Join(errs...)
}

// sendTimeout bounds one acknowledged send. It covers the full retry budget
// of a send command plus a full credit wait.
const sendTimeout = time.Duration(command.SendTries)*command.AckTimeout + 2*time.Minute

// troubleshooting returns tips for a failed link.
func troubleshooting(err error) []string {
	var le *transceiver.LinkError
	if !errors.As(err, &le) {
		return []string{
			"Run 'maxcul ports' to list serial ports",
			"Check that your user may open the port (e.g. the dialout group)",
			"Pass the stick explicitly with --port",
		}
	}

	switch le.Kind {
	case transceiver.KindFirmware:
		return []string{
			fmt.Sprintf("Flash culfw %d.%02d or newer onto the stick", transceiver.MinVersion/100, transceiver.MinVersion%100),
			"a-culfw builds are supported as well",
		}
	case transceiver.KindHandshake:
		return []string{
			"Check that the stick runs culfw and not another firmware",
			"Check the baud rate (culfw uses 38400)",
			"Unplug the stick and plug it back in",
		}
	default:
		return []string{
			"The stick was unplugged or reset",
			"Check the kernel log (dmesg) for USB errors",
		}
	}
}
