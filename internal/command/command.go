// Package command serializes the request/response exchanges with a CUL
// gateway.
//
// A gateway answers one question at a time: a version request, a credit
// query, a radio frame waiting for its ACK. Each exchange is a Command.
// Commands wait in a Queue and run one at a time. The running command is
// offered every received line first and is driven by timeouts scheduled
// through its Control.
//
// All Queue operations, every Command callback and every timer callback
// run under one mutex. Commands therefore never lock anything themselves
// and must not block.
package command

import (
	"errors"
	"time"
)

var (
	// ErrHandshakeExhausted is reported when the gateway did not answer
	// the version request.
	ErrHandshakeExhausted = errors.New("cannot perform handshake with gateway")

	// ErrSendExhausted is reported when a frame was never acknowledged.
	ErrSendExhausted = errors.New("no credit or ACK from gateway, giving up")

	// ErrCancelled is reported when a queued command was superseded by a
	// similar one or dropped by Clear.
	ErrCancelled = errors.New("command cancelled")
)

// Command is one exchange with the gateway.
type Command interface {
	// Start begins (or retries) the exchange. ctl stays valid until the
	// command is cancelled.
	Start(ctl Control)

	// Cancel stops any armed timer. It is called when the queue is cleared
	// and when a queued command is superseded.
	Cancel()

	// Receive offers a line to the running command and reports whether
	// the command consumed it.
	Receive(line string) bool

	// SimilarTo reports whether other makes this command redundant.
	SimilarTo(other Command) bool
}

// Control is the running command's handle on its queue. Its methods may only
// be called from Command callbacks and timer callbacks, which already hold
// the queue lock.
type Control interface {
	// Send writes a line to the gateway.
	Send(line string)

	// Advance finishes the running command and starts the next one.
	Advance()

	// Postpone requeues cmd for a retry unless a similar command is
	// queued, then starts the next command.
	Postpone(cmd Command)

	// Schedule runs fn after d under the queue lock. A stopped timer never
	// runs fn, even if it was already due.
	Schedule(d time.Duration, fn func()) Timer
}

// Timer is a scheduled callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the
	// timer was still pending.
	Stop() bool
}

// Scheduler runs callbacks after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// SystemScheduler schedules on the runtime's timers.
type SystemScheduler struct{}

// AfterFunc calls fn in its own goroutine after d.
func (SystemScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Sender writes lines to the gateway. Send is called with the queue lock held
// and must not block.
type Sender interface {
	Send(line string)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(line string)

// Send calls f(line).
func (f SenderFunc) Send(line string) { f(line) }
