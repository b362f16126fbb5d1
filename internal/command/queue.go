package command

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/maxcul/internal/logging"
)

// Queue runs commands one at a time in FIFO order.
//
// The queue is either idle or running one command. A newly enqueued command
// replaces every similar command still waiting, and a command postponing
// itself for a retry is dropped when a similar one is already waiting.
type Queue struct {
	mu      sync.Mutex
	sender  Sender
	sched   Scheduler
	pending []Command
	current Command
}

// NewQueue creates an idle queue writing through sender. A nil sched uses
// SystemScheduler.
func NewQueue(sender Sender, sched Scheduler) *Queue {
	if sched == nil {
		sched = SystemScheduler{}
	}
	return &Queue{sender: sender, sched: sched}
}

// Enqueue replaces every waiting command similar to cmd, appends cmd and
// starts it if the queue is idle.
func (q *Queue) Enqueue(cmd Command) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueue(cmd)
}

// Postpone requeues cmd unless a similar command is waiting, then starts
// the next command whether or not one is running.
func (q *Queue) Postpone(cmd Command) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.postpone(cmd)
}

// Advance starts the next waiting command. Unless force is set this only
// happens when the queue is idle.
func (q *Queue) Advance(force bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.advance(force)
}

// Receive offers line to the running command and reports whether it was
// consumed. An idle queue consumes nothing.
func (q *Queue) Receive(line string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		return false
	}
	return q.current.Receive(line)
}

// Clear cancels the running command and drops every waiting one. No retry
// logic runs.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current != nil {
		q.current.Cancel()
		q.current = nil
	}
	for _, cmd := range q.pending {
		cmd.Cancel()
	}
	q.pending = nil
}

// Len returns the number of waiting commands, not counting the running one.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Running reports whether a command is in flight.
func (q *Queue) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current != nil
}

func (q *Queue) String() string {
	q.mu.Lock()
	defer q.mu.Unlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "has %d entries", len(q.pending))
	if q.current != nil {
		fmt.Fprintf(&sb, ", running %s", describe(q.current))
	}
	return sb.String()
}

func (q *Queue) enqueue(cmd Command) {
	kept := q.pending[:0]
	for _, waiting := range q.pending {
		if cmd.SimilarTo(waiting) {
			logging.Debug("Superseding queued command", zap.String("command", describe(waiting)))
			waiting.Cancel()
			continue
		}
		kept = append(kept, waiting)
	}
	clear(q.pending[len(kept):])
	q.pending = append(kept, cmd)
	q.advance(false)
}

func (q *Queue) postpone(cmd Command) {
	similar := false
	for _, waiting := range q.pending {
		if cmd.SimilarTo(waiting) {
			similar = true
			break
		}
	}
	if similar {
		logging.Debug("Dropping retry, similar command queued", zap.String("command", describe(cmd)))
		cmd.Cancel()
	} else {
		q.pending = append(q.pending, cmd)
	}
	q.advance(true)
}

func (q *Queue) advance(force bool) {
	if !force && q.current != nil {
		return
	}
	q.current = nil
	if len(q.pending) == 0 {
		return
	}

	next := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	q.current = next

	logging.Debug("Starting command",
		zap.String("command", describe(next)),
		zap.Int("queued", len(q.pending)),
	)
	next.Start(&control{q: q, cmd: next})
}

// control binds a command to its queue. Calls from a command that is no
// longer running are ignored, except Schedule.
type control struct {
	q   *Queue
	cmd Command
}

func (c *control) running() bool {
	return c.q.current == c.cmd
}

func (c *control) Send(line string) {
	if !c.running() {
		logging.Warn("Command no longer running, not sending", zap.String("line", line))
		return
	}
	logging.LogLine(logging.DirectionOut, line)
	c.q.sender.Send(line)
}

func (c *control) Advance() {
	if c.running() {
		c.q.advance(true)
	}
}

func (c *control) Postpone(cmd Command) {
	if c.running() {
		c.q.postpone(cmd)
	}
}

func (c *control) Schedule(d time.Duration, fn func()) Timer {
	t := &queueTimer{}
	t.timer = c.q.sched.AfterFunc(d, func() {
		c.q.mu.Lock()
		defer c.q.mu.Unlock()
		if t.done {
			return
		}
		t.done = true
		fn()
	})
	return t
}

// queueTimer guards a scheduled callback with a flag read under the queue
// lock, so a callback that was already due when stopped does nothing.
type queueTimer struct {
	timer Timer
	done  bool
}

func (t *queueTimer) Stop() bool {
	if t.done {
		return false
	}
	t.done = true
	t.timer.Stop()
	return true
}

func describe(cmd Command) string {
	if s, ok := cmd.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", cmd)
}
