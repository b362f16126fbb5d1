package moritz

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

// Decoding errors. They are wrapped with the offending detail.
var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrLengthMismatch = errors.New("length mismatch")
	ErrUnknownType    = errors.New("unknown message type")
	ErrNotDecodable   = errors.New("message type has no decoder")
	ErrPayload        = errors.New("invalid payload")
)

// Envelope is the addressing part shared by every message.
type Envelope struct {
	ID     uint8
	Type   MessageType
	Source string // 6 hex digits
	Dest   string // 6 hex digits
}

// Header returns the envelope itself so embedding types satisfy Message.
func (e Envelope) Header() Envelope { return e }

func (e Envelope) String() string {
	return fmt.Sprintf("%s id: %03d src: %s dst: %s", e.Type, e.ID, e.Source, e.Dest)
}

// Message is any radio message.
type Message interface {
	Header() Envelope
	String() string
}

// Incoming is a message decoded from a received frame.
type Incoming interface {
	Message
	incoming()
}

// Outgoing is a message that can be rendered to a frame.
type Outgoing interface {
	Message
	// Payload returns the type-specific payload as hex.
	Payload() string
}

// Encode renders an outgoing message to the hex frame sent after "Zs".
//
//	[0]     length   byte count of the rest
//	[1]     id       message id
//	[2]     0x00     flags
//	[3]     type     message type
//	[4-6]   source   source address
//	[7-9]   dest     destination address
//	[10]    0x00     group id
//	[11+]   payload  type-specific payload
func Encode(m Outgoing) string {
	h := m.Header()
	body := fmt.Sprintf("%02x00%02x%s%s00%s", h.ID, uint8(h.Type), h.Source, h.Dest, m.Payload())
	return strings.ToUpper(fmt.Sprintf("%02x%s", len(body)/2, body))
}

// IDCounter hands out message ids for one gateway. Ids start at 0 and wrap
// after 255. No two in-flight sends may share an id, which holds as long as
// fewer than 256 sends are outstanding. The zero value is ready to use.
type IDCounter struct {
	issued atomic.Uint32
}

// NewIDCounter returns a counter whose first id is 0.
func NewIDCounter() *IDCounter {
	return &IDCounter{}
}

// Next returns the next message id.
func (c *IDCounter) Next() uint8 {
	return uint8(c.issued.Add(1) - 1)
}

// Last returns the most recently issued id, or -1 if none was issued.
func (c *IDCounter) Last() int {
	n := c.issued.Load()
	if n == 0 {
		return -1
	}
	return int(uint8(n - 1))
}
