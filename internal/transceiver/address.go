package transceiver

import (
	"fmt"
	"strings"
)

// BroadcastAddress is the destination of broadcasts and pairing requests.
const BroadcastAddress = "000000"

// IsDeviceAddress reports whether s is a MAX! RF address: 6 hex digits in
// either case.
func IsDeviceAddress(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// SameAddress compares two addresses ignoring case.
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}

func checkAddress(addr string) error {
	if !IsDeviceAddress(addr) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return nil
}
