package moritz

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// AckMessage (type 0x02) acknowledges a frame with the same message id.
// Thermostats append their current settings.
type AckMessage struct {
	Envelope
	OK          bool
	HasSettings bool
	Settings    ThermostatSettings
}

func (*AckMessage) incoming() {}

func (m *AckMessage) String() string {
	status := "nok"
	if m.OK {
		status = "ok"
	}
	if !m.HasSettings {
		return fmt.Sprintf("%s %s", m.Envelope, status)
	}
	return fmt.Sprintf("%s %s %s", m.Envelope, status, m.Settings)
}

func decodeAck(env Envelope, payload string) (Incoming, error) {
	b, err := hexBytes(payload, 1)
	if err != nil {
		return nil, err
	}
	msg := &AckMessage{Envelope: env, OK: b[0]&0x80 == 0}
	// Settings are all or nothing; a truncated block fails the whole ACK.
	if len(payload) > 2 {
		settings, err := parseThermostatSettings(payload[2:])
		if err != nil {
			return nil, err
		}
		msg.HasSettings = true
		msg.Settings = settings
	}
	return msg, nil
}

// ThermostatStateMessage (type 0x60) is broadcast by heating thermostats.
//
//	[0-2]  ThermostatSettings
//	[3-4]  measured temperature * 10 (low 9 bits), when present
type ThermostatStateMessage struct {
	Envelope
	Settings    ThermostatSettings
	HasMeasured bool
	Measured    float64
}

func (*ThermostatStateMessage) incoming() {}

func (m *ThermostatStateMessage) String() string {
	if !m.HasMeasured {
		return fmt.Sprintf("%s %s", m.Envelope, m.Settings)
	}
	return fmt.Sprintf("%s %s measured: %.1f", m.Envelope, m.Settings, m.Measured)
}

func decodeThermostatState(env Envelope, payload string) (Incoming, error) {
	settings, err := parseThermostatSettings(payload)
	if err != nil {
		return nil, err
	}
	msg := &ThermostatStateMessage{Envelope: env, Settings: settings}
	if len(payload) >= 10 {
		b, err := hexBytes(payload, 5)
		if err != nil {
			return nil, err
		}
		raw := (int(b[3])<<8 | int(b[4])) & 0x1ff
		msg.HasMeasured = true
		msg.Measured = float64(raw) / 10.0
	}
	return msg, nil
}

// PairPingMessage (type 0x00) is sent by a device in pairing mode.
type PairPingMessage struct {
	Envelope
	Firmware   int
	DeviceType DeviceType
	TestResult int
	Serial     string // opaque hex
}

func (*PairPingMessage) incoming() {}

func (m *PairPingMessage) String() string {
	return fmt.Sprintf("%s firmware: %d type: %s testresult: %d serial: %s",
		m.Envelope, m.Firmware, m.DeviceType, m.TestResult, m.Serial)
}

func decodePairPing(env Envelope, payload string) (Incoming, error) {
	b, err := hexBytes(payload, 3)
	if err != nil {
		return nil, err
	}
	deviceType, err := deviceTypeFromID(int(b[1]))
	if err != nil {
		return nil, err
	}
	return &PairPingMessage{
		Envelope:   env,
		Firmware:   int(b[0]),
		DeviceType: deviceType,
		TestResult: int(b[2]),
		Serial:     payload[6:],
	}, nil
}

// PairPongMessage (type 0x01) answers a pair ping.
type PairPongMessage struct {
	Envelope
}

// NewPairPong builds a pair pong from the gateway to a pairing device.
func NewPairPong(id uint8, source, dest string) *PairPongMessage {
	return &PairPongMessage{Envelope{ID: id, Type: TypePairPong, Source: source, Dest: dest}}
}

func (*PairPongMessage) incoming() {}

func (*PairPongMessage) Payload() string { return "00" }

func (m *PairPongMessage) String() string { return m.Envelope.String() }

func decodePairPong(env Envelope, _ string) (Incoming, error) {
	return &PairPongMessage{env}, nil
}

// SetTemperatureMessage (type 0x40) sets mode and desired temperature.
// The gateway also observes it when another controller sends it.
//
//	[0]  mode << 6 | desired * 2
type SetTemperatureMessage struct {
	Envelope
	Mode    ThermostatMode
	Desired float64
}

// MaxSetTemperature is the highest desired temperature a set temperature
// message can carry in its six bits of half degrees.
const MaxSetTemperature = 31.5

// NewSetTemperature builds a set temperature message.
func NewSetTemperature(id uint8, source, dest string, mode ThermostatMode, desired float64) *SetTemperatureMessage {
	return &SetTemperatureMessage{
		Envelope: Envelope{ID: id, Type: TypeSetTemperature, Source: source, Dest: dest},
		Mode:     mode,
		Desired:  desired,
	}
}

func (*SetTemperatureMessage) incoming() {}

func (m *SetTemperatureMessage) Payload() string {
	return fmt.Sprintf("%02x", uint8(m.Mode)<<6|halfDegrees(m.Desired)&0x3f)
}

func (m *SetTemperatureMessage) String() string {
	return fmt.Sprintf("%s mode: %s desired: %.1f", m.Envelope, m.Mode, m.Desired)
}

func decodeSetTemperature(env Envelope, payload string) (Incoming, error) {
	b, err := hexBytes(payload, 1)
	if err != nil {
		return nil, err
	}
	mode, _ := thermostatModeFromID(int(b[0]>>6) & 0x03)
	return &SetTemperatureMessage{
		Envelope: env,
		Mode:     mode,
		Desired:  float64(b[0]&0x3f) / 2.0,
	}, nil
}

// LinkPartnerMessage (types 0x20 and 0x21) adds or removes a link between
// the destination device and a partner device.
//
//	[0-2]  partner address
//	[3]    partner device type
type LinkPartnerMessage struct {
	Envelope
	Partner     string
	PartnerType DeviceType
}

// NewLinkPartner builds an add (link=true) or remove link partner message.
func NewLinkPartner(id uint8, link bool, source, dest, partner string, partnerType DeviceType) *LinkPartnerMessage {
	t := TypeRemoveLinkPartner
	if link {
		t = TypeAddLinkPartner
	}
	return &LinkPartnerMessage{
		Envelope:    Envelope{ID: id, Type: t, Source: source, Dest: dest},
		Partner:     partner,
		PartnerType: partnerType,
	}
}

// Link reports whether this message adds the partner.
func (m *LinkPartnerMessage) Link() bool { return m.Type == TypeAddLinkPartner }

func (*LinkPartnerMessage) incoming() {}

func (m *LinkPartnerMessage) Payload() string {
	return fmt.Sprintf("%s%02x", m.Partner, uint8(m.PartnerType))
}

func (m *LinkPartnerMessage) String() string {
	return fmt.Sprintf("%s link: %s type: %s", m.Envelope, m.Partner, m.PartnerType)
}

func decodeLinkPartner(env Envelope, payload string) (Incoming, error) {
	b, err := hexBytes(payload, 4)
	if err != nil {
		return nil, err
	}
	partnerType, err := deviceTypeFromID(int(b[3]))
	if err != nil {
		return nil, err
	}
	return &LinkPartnerMessage{Envelope: env, Partner: payload[:6], PartnerType: partnerType}, nil
}

// WallThermostatControlMessage (type 0x42) carries the desired and measured
// temperature of a wall mounted thermostat to its linked thermostats.
//
//	[0]  bit 7: measured bit 8, bits 0-6: desired * 2
//	[1]  measured * 10, low 8 bits
type WallThermostatControlMessage struct {
	Envelope
	Desired  float64
	Measured float64
}

// NewWallThermostatControl builds a wall thermostat control message.
func NewWallThermostatControl(id uint8, source, dest string, desired, measured float64) *WallThermostatControlMessage {
	return &WallThermostatControlMessage{
		Envelope: Envelope{ID: id, Type: TypeWallThermostatControl, Source: source, Dest: dest},
		Desired:  desired,
		Measured: measured,
	}
}

func (*WallThermostatControlMessage) incoming() {}

func (m *WallThermostatControlMessage) Payload() string {
	desired := int(halfDegrees(m.Desired)) & 0x7f
	measured := int(math.Round(m.Measured*10.0)) & 0x1ff
	return fmt.Sprintf("%04x", (measured&0x100)<<7|desired<<8|measured&0xff)
}

func (m *WallThermostatControlMessage) String() string {
	return fmt.Sprintf("%s desired: %.1f measured: %.1f", m.Envelope, m.Desired, m.Measured)
}

func decodeWallThermostatControl(env Envelope, payload string) (Incoming, error) {
	b, err := hexBytes(payload, 2)
	if err != nil {
		return nil, err
	}
	measured := int(b[0]&0x80)<<1 | int(b[1])
	return &WallThermostatControlMessage{
		Envelope: env,
		Desired:  float64(b[0]&0x7f) / 2.0,
		Measured: float64(measured) / 10.0,
	}, nil
}

// TimeInformationMessage (type 0x03) carries the current date and time.
// Devices send it empty to request the time.
//
//	[0]  year - 2000
//	[1]  day of month
//	[2]  hour
//	[3]  minute | (month & 0x0C) << 4
//	[4]  second | (month & 0x03) << 6
type TimeInformationMessage struct {
	Envelope
	// Time is zero for a request. When sending, zero means "now".
	Time time.Time
}

// NewTimeInformation builds a time information message. A zero t sends the
// current local time at encoding.
func NewTimeInformation(id uint8, source, dest string, t time.Time) *TimeInformationMessage {
	return &TimeInformationMessage{
		Envelope: Envelope{ID: id, Type: TypeTimeInformation, Source: source, Dest: dest},
		Time:     t,
	}
}

func (*TimeInformationMessage) incoming() {}

func (m *TimeInformationMessage) Payload() string {
	t := m.Time
	if t.IsZero() {
		t = time.Now()
	}
	month := int(t.Month())
	return fmt.Sprintf("%02x%02x%02x%02x%02x",
		t.Year()-2000, t.Day(), t.Hour(),
		t.Minute()|(month&0x0c)<<4,
		t.Second()|(month&0x03)<<6)
}

func (m *TimeInformationMessage) String() string {
	if m.Time.IsZero() {
		return fmt.Sprintf("%s time: empty", m.Envelope)
	}
	return fmt.Sprintf("%s time: %s", m.Envelope, m.Time.Format("2006-01-02T15:04:05"))
}

func decodeTimeInformation(env Envelope, payload string) (Incoming, error) {
	if payload == "" {
		return &TimeInformationMessage{Envelope: env}, nil
	}
	b, err := hexBytes(payload, 5)
	if err != nil {
		return nil, err
	}
	month := int(b[3]>>6)<<2 | int(b[4]>>6)
	day := int(b[1])
	hour := int(b[2] & 0x1f)
	minute := int(b[3] & 0x3f)
	second := int(b[4] & 0x3f)
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || second > 59 {
		return nil, fmt.Errorf("%w: invalid date %s", ErrPayload, strings.ToUpper(payload))
	}
	return &TimeInformationMessage{
		Envelope: env,
		Time:     time.Date(2000+int(b[0]), time.Month(month), day, hour, minute, second, 0, time.Local),
	}, nil
}

// halfDegrees converts a temperature to the protocol's 0.5 °C steps.
func halfDegrees(celsius float64) uint8 {
	return uint8(math.Round(celsius * 2.0))
}
