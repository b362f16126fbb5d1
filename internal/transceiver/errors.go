package transceiver

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFirmware is reported when the gateway's firmware is
	// older than MinVersion.
	ErrUnsupportedFirmware = errors.New("unsupported gateway firmware version")

	// ErrNotConnected is returned by sends before Connect.
	ErrNotConnected = errors.New("transceiver not connected")

	// ErrInvalidAddress is returned for addresses that are not 6 hex digits.
	ErrInvalidAddress = errors.New("invalid device address")

	// ErrNoVirtualAddress is returned when sending as the virtual wall
	// thermostat without one configured.
	ErrNoVirtualAddress = errors.New("no virtual thermostat address configured")
)

// Kind classifies a link failure.
type Kind int

const (
	// KindStream is a read failure on the serial port.
	KindStream Kind = iota
	// KindWrite is a write failure on the serial port.
	KindWrite
	// KindFirmware is a firmware version below MinVersion.
	KindFirmware
	// KindHandshake is a gateway that never answered the version request.
	KindHandshake
)

// String returns a human-readable name for the kind
func (k Kind) String() string {
	switch k {
	case KindStream:
		return "Stream Error"
	case KindWrite:
		return "Write Error"
	case KindFirmware:
		return "Firmware Error"
	case KindHandshake:
		return "Handshake Error"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// LinkError is a fatal failure of the gateway connection. The owner should
// close the transceiver and decide whether to reconnect.
type LinkError struct {
	Kind Kind
	Port string
	Err  error
}

func (e *LinkError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s on %s: %v", e.Kind, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

// IsLinkError reports whether err is a LinkError of the given kind.
func IsLinkError(err error, kind Kind) bool {
	var le *LinkError
	return errors.As(err, &le) && le.Kind == kind
}
