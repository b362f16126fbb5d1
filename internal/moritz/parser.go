package moritz

import (
	"fmt"
	"regexp"
	"strconv"
)

// framePattern matches a received radio frame line.
var framePattern = regexp.MustCompile(
	`^Z([0-9A-F]{2})([0-9A-F]{2})([0-9A-F]{2})([0-9A-F]{2})([0-9A-F]{6})([0-9A-F]{6})([0-9A-F]{2})([0-9A-F]*)([0-9A-F]{2})$`)

// Frame is the parsed envelope of a received radio frame.
type Frame struct {
	Length  int
	ID      uint8
	Flags   uint8
	Type    MessageType
	Source  string
	Dest    string
	GroupID uint8
	Payload string // hex
	RSSI    uint8
	Raw     string
}

// ParseFrame validates a received line and splits it into its fields.
func ParseFrame(line string) (*Frame, error) {
	m := framePattern.FindStringSubmatch(line)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrMalformedFrame, line)
	}

	length := hexField(m[1])
	// +1 for "Z", +2 for length and +2 for RSSI
	if len(line) != length*2+5 {
		return nil, fmt.Errorf("%w: declared %d bytes in %q", ErrLengthMismatch, length, line)
	}

	return &Frame{
		Length:  length,
		ID:      uint8(hexField(m[2])),
		Flags:   uint8(hexField(m[3])),
		Type:    MessageType(hexField(m[4])),
		Source:  m[5],
		Dest:    m[6],
		GroupID: uint8(hexField(m[7])),
		Payload: m[8],
		RSSI:    uint8(hexField(m[9])),
		Raw:     line,
	}, nil
}

// Envelope returns the addressing fields of the frame.
func (f *Frame) Envelope() Envelope {
	return Envelope{ID: f.ID, Type: f.Type, Source: f.Source, Dest: f.Dest}
}

// Message decodes the payload according to the frame's type.
func (f *Frame) Message() (Incoming, error) {
	if !f.Type.Known() {
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownType, uint8(f.Type))
	}

	var decode func(Envelope, string) (Incoming, error)
	switch f.Type {
	case TypePairPing:
		decode = decodePairPing
	case TypePairPong:
		decode = decodePairPong
	case TypeAck:
		decode = decodeAck
	case TypeTimeInformation:
		decode = decodeTimeInformation
	case TypeAddLinkPartner, TypeRemoveLinkPartner:
		decode = decodeLinkPartner
	case TypeSetTemperature:
		decode = decodeSetTemperature
	case TypeWallThermostatControl:
		decode = decodeWallThermostatControl
	case TypeThermostatState:
		decode = decodeThermostatState
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotDecodable, f.Type)
	}

	msg, err := decode(f.Envelope(), f.Payload)
	if err != nil {
		return nil, fmt.Errorf("%s payload %q: %w", f.Type, f.Payload, err)
	}
	return msg, nil
}

func (f *Frame) String() string {
	return fmt.Sprintf("Frame{len=%d, id=%d, flags=0x%02x, type=%s, src=%s, dst=%s, group=%d, payload=%s, rssi=%d}",
		f.Length, f.ID, f.Flags, f.Type, f.Source, f.Dest, f.GroupID, f.Payload, f.RSSI)
}

// Decode parses a received line into a message.
func Decode(line string) (Incoming, error) {
	frame, err := ParseFrame(line)
	if err != nil {
		return nil, err
	}
	return frame.Message()
}

// hexField parses a field already validated by framePattern.
func hexField(s string) int {
	v, _ := strconv.ParseUint(s, 16, 32)
	return int(v)
}
