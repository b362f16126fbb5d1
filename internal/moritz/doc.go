// Package moritz implements the MAX! ("Moritz") radio message codec.
//
// The gateway (a CUL stick running culfw or a-culfw) exchanges radio
// messages with the host as hex-ASCII lines. This package converts between
// those lines and typed message values. It holds no connection state.
//
// # Frame Format
//
// Incoming radio frames look like this (all hex, uppercase):
//
//	Z LL II FF TT SSSSSS DDDDDD GG PPPP... RR
//
//   - Z: frame tag
//   - LL: byte count of everything after the length byte, excluding RSSI
//   - II: message id (used to match ACKs with sends)
//   - FF: flags
//   - TT: message type (see MessageType)
//   - SSSSSS / DDDDDD: source and destination device address
//   - GG: group id
//   - PPPP...: type-specific payload
//   - RR: RSSI appended by the gateway
//
// Outgoing frames carry the same layout without the Z tag and RSSI; the
// gateway expects them after a "Zs" command prefix.
//
// # Message Kinds
//
// Every message kind is its own struct. Kinds received from the air
// implement Incoming, kinds that can be sent implement Outgoing, and some
// (SetTemperatureMessage, TimeInformationMessage) implement both.
//
// # Usage Example - Decoding
//
//	msg, err := moritz.Decode("Z0E03020218F941123456000119602A2E")
//	if err != nil {
//	    // malformed or undecodable, log and drop
//	}
//	switch m := msg.(type) {
//	case *moritz.AckMessage:
//	    fmt.Println(m.OK, m.Settings.Valve)
//	}
//
// # Usage Example - Encoding
//
//	ids := moritz.NewIDCounter()
//	msg := moritz.NewSetTemperature(ids.Next(), "123456", "18F941", moritz.ModeManual, 21.5)
//	line := "Zs" + moritz.Encode(msg)
//
// # Error Handling
//
// Decoding errors are never fatal for a connection. They are returned as
// wrapped sentinels (ErrMalformedFrame, ErrLengthMismatch, ErrUnknownType,
// ErrNotDecodable, ErrPayload) so callers can log and drop the line.
//
// # Thread Safety
//
// Encoding and decoding are stateless. IDCounter is safe for concurrent use.
package moritz
