package command

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/maxcul/internal/logging"
	"github.com/muurk/maxcul/internal/moritz"
)

const (
	// CreditTimeout is how long to wait for the answer to a credit query.
	CreditTimeout = 1 * time.Second

	// AckTimeout is how long to wait for the device's ACK.
	AckTimeout = 3 * time.Second

	// SendTries is the number of attempts before a frame is abandoned.
	SendTries = 10
)

var creditResponse = regexp.MustCompile(`^.. +(\d+)$`)

type sendStep int

const (
	stepCredits sendStep = iota
	stepAck
	stepDone
)

// SendCommand transmits one radio frame.
//
// It queries the gateway's credit ("X"). With enough credit it sends the
// frame ("Zs...") and waits for an ACK carrying the frame's message id;
// otherwise it waits until enough credit has accumulated and queries again.
// A timeout in either step postpones the command through the queue, and the
// tenth timeout abandons it.
type SendCommand struct {
	msg  moritz.Outgoing
	done func(error)

	ctl      Control
	tries    int
	step     sendStep
	timer    Timer
	finished bool
}

// NewSendCommand creates a command sending msg. done, if not nil, is called
// once with nil on a matching ACK, ErrSendExhausted after the last timeout,
// or ErrCancelled. It runs under the queue lock and must not block.
func NewSendCommand(msg moritz.Outgoing, done func(error)) *SendCommand {
	return &SendCommand{msg: msg, done: done}
}

// Message returns the message being sent.
func (c *SendCommand) Message() moritz.Outgoing {
	return c.msg
}

func (c *SendCommand) Start(ctl Control) {
	c.tries++
	c.query(ctl)
}

// query asks for credit without counting an attempt.
func (c *SendCommand) query(ctl Control) {
	c.ctl = ctl
	ctl.Send("X")
	c.step = stepCredits
	c.timer = ctl.Schedule(CreditTimeout, c.timeout)
}

func (c *SendCommand) Cancel() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.finish(ErrCancelled)
}

func (c *SendCommand) Receive(line string) bool {
	switch c.step {
	case stepCredits:
		return c.receiveCredit(line)
	case stepAck:
		return c.receiveAck(line)
	default:
		return false
	}
}

// SimilarTo holds for sends of the same message type between the same
// addresses.
func (c *SendCommand) SimilarTo(other Command) bool {
	o, ok := other.(*SendCommand)
	if !ok {
		return false
	}
	a, b := c.msg.Header(), o.msg.Header()
	return a.Type == b.Type &&
		strings.EqualFold(a.Source, b.Source) &&
		strings.EqualFold(a.Dest, b.Dest)
}

// Tries returns the number of attempts so far.
func (c *SendCommand) Tries() int {
	return c.tries
}

func (c *SendCommand) String() string {
	h := c.msg.Header()
	state := "waiting for credits"
	switch c.step {
	case stepAck:
		state = "waiting for ack"
	case stepDone:
		state = "done"
	}
	return h.Type.String() + " " + strconv.Itoa(int(h.ID)) + " to " + h.Dest + ", " + state
}

func (c *SendCommand) receiveCredit(line string) bool {
	m := creditResponse.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	available, err := strconv.Atoi(m[1])
	if err != nil {
		return false
	}

	c.timer.Stop()

	frame := moritz.Encode(c.msg)
	necessary := NecessaryCredit(frame)
	if available < necessary {
		wait := necessary - available
		logging.Warn("Not enough credit, waiting",
			zap.Int("necessary", necessary),
			zap.Int("available", available),
			zap.Int("wait_seconds", wait),
		)
		ctl := c.ctl
		c.timer = ctl.Schedule(time.Duration(wait)*time.Second, func() { c.query(ctl) })
		return true
	}

	logging.Debug("Enough credit",
		zap.Int("necessary", necessary),
		zap.Int("available", available),
	)
	logging.LogMessage(logging.DirectionOut, c.msg)

	c.ctl.Send("Zs" + frame)
	c.step = stepAck
	c.timer = c.ctl.Schedule(AckTimeout, c.timeout)
	return true
}

func (c *SendCommand) receiveAck(line string) bool {
	msg, err := moritz.Decode(line)
	if err != nil {
		return false
	}
	ack, ok := msg.(*moritz.AckMessage)
	if !ok {
		return false
	}
	want := c.msg.Header().ID
	if ack.ID != want {
		logging.Warn("Received unmatched ACK",
			zap.Uint8("id", ack.ID),
			zap.Uint8("waiting_for", want),
		)
		return false
	}

	c.timer.Stop()
	c.step = stepDone
	logging.Debug("Received matching ACK", zap.Uint8("id", want))
	c.finish(nil)
	c.ctl.Advance()

	// The ACK still goes to the devices
	return false
}

func (c *SendCommand) timeout() {
	if c.tries == SendTries {
		logging.Warn("Timeout waiting for credit or ACK, giving up",
			zap.Int("tries", c.tries),
			zap.Stringer("message", c.msg),
		)
		c.step = stepDone
		c.finish(ErrSendExhausted)
		c.ctl.Advance()
		return
	}
	logging.Debug("Timeout waiting for credit or ACK, trying again later", zap.Int("tries", c.tries))
	c.ctl.Postpone(c)
}

func (c *SendCommand) finish(err error) {
	if c.finished {
		return
	}
	c.finished = true
	if c.done != nil {
		c.done(err)
	}
}

// NecessaryCredit returns the credit, in 10 ms units, needed to send an
// encoded frame: 1000 ms of preamble plus 4 ms per hex digit.
func NecessaryCredit(frame string) int {
	return (1000 + len(frame)*4 + 9) / 10
}
