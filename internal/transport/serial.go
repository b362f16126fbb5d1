package transport

import (
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate is the rate CUL and nanoCUL firmwares use.
const DefaultBaudRate = 38400

// DefaultReadTimeout bounds a single poll of the port.
const DefaultReadTimeout = 100 * time.Millisecond

// PortConfig describes how to open the gateway's serial port.
type PortConfig struct {
	Path        string
	BaudRate    int
	ReadTimeout time.Duration
}

// Open opens the serial port at 8N1 with a read timeout, so reads return
// (0, nil) when the gateway is idle.
func Open(cfg PortConfig) (serial.Port, error) {
	if cfg.Path == "" {
		return nil, errors.New("serial port path is empty")
	}
	baud := cfg.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}

	port, err := serial.Open(cfg.Path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Path, err)
	}

	if err := port.SetReadTimeout(timeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	// Drop whatever the gateway printed while booting
	_ = port.ResetInputBuffer()

	return port, nil
}

// ListPorts returns the serial ports present on this machine.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	return ports, nil
}

// IsDisconnect reports whether err means the port went away.
func IsDisconnect(err error) bool {
	var portErr *serial.PortError
	if !errors.As(err, &portErr) {
		return false
	}
	switch portErr.Code() {
	case serial.PortNotFound, serial.PortClosed, serial.InvalidSerialPort:
		return true
	default:
		return false
	}
}
