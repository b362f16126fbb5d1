package moritz

import (
	"fmt"
	"strconv"
	"strings"
)

// ThermostatSettings is the state block shared by ACK and thermostat state
// messages.
//
//	[0]  bits 0-1 mode, 0x20 locked, 0x40 rf error, 0x80 battery low
//	[1]  valve opening in percent
//	[2]  desired temperature * 2 (low 7 bits)
type ThermostatSettings struct {
	Mode       ThermostatMode
	Locked     bool
	RFError    bool
	BatteryLow bool
	Valve      int
	Desired    float64
}

func parseThermostatSettings(payload string) (ThermostatSettings, error) {
	b, err := hexBytes(payload, 3)
	if err != nil {
		return ThermostatSettings{}, fmt.Errorf("thermostat settings: %w", err)
	}
	mode, _ := thermostatModeFromID(int(b[0] & 0x03))
	return ThermostatSettings{
		Mode:       mode,
		Locked:     b[0]&0x20 != 0,
		RFError:    b[0]&0x40 != 0,
		BatteryLow: b[0]&0x80 != 0,
		Valve:      int(b[1]),
		Desired:    float64(b[2]&0x7f) / 2.0,
	}, nil
}

func (s ThermostatSettings) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "mode: %s valve: %d desired: %.1f", s.Mode, s.Valve, s.Desired)
	if s.Locked {
		sb.WriteString(" locked")
	}
	if s.RFError {
		sb.WriteString(" rfError")
	}
	if s.BatteryLow {
		sb.WriteString(" batteryLow")
	}
	return sb.String()
}

// hexBytes decodes the first n bytes of a hex payload.
func hexBytes(payload string, n int) ([]byte, error) {
	if len(payload) < n*2 {
		return nil, fmt.Errorf("%w: need %d bytes, have %q", ErrPayload, n, payload)
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseUint(payload[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not hex", ErrPayload, payload[i*2:i*2+2])
		}
		out[i] = byte(v)
	}
	return out, nil
}
