package command

import (
	"sort"
	"sync"
	"time"
)

// Tests call Control methods straight from the test goroutine. Nothing else
// touches the queue meanwhile, so the lock is not needed there.

// fakeScheduler runs callbacks when the test moves its clock.
type fakeScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	s       *fakeScheduler
	at      time.Duration
	seq     int
	fn      func()
	stopped bool
	fired   bool
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &fakeTimer{s: s, at: s.now + d, seq: s.seq, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	pending := !t.stopped && !t.fired
	t.stopped = true
	return pending
}

// Advance moves the clock by d and fires every timer that came due, in
// order. Callbacks run without the scheduler lock.
func (s *fakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		var due []*fakeTimer
		for _, t := range s.timers {
			if !t.stopped && !t.fired && t.at <= target {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			s.now = target
			s.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].at != due[j].at {
				return due[i].at < due[j].at
			}
			return due[i].seq < due[j].seq
		})
		next := due[0]
		next.fired = true
		s.now = next.at
		s.mu.Unlock()

		next.fn()
	}
}

// Pending returns the delays of the armed timers relative to now.
func (s *fakeScheduler) Pending() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Duration
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			out = append(out, t.at-s.now)
		}
	}
	return out
}

// Last returns the most recently scheduled timer.
func (s *fakeScheduler) Last() *fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.timers) == 0 {
		return nil
	}
	return s.timers[len(s.timers)-1]
}

// recorder collects sent lines.
type recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *recorder) Send(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func (r *recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func (r *recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = nil
}

// handshake records VersionCommand outcomes.
type handshake struct {
	versions []int
	errs     []error
}

func (h *handshake) Version(v int)             { h.versions = append(h.versions, v) }
func (h *handshake) HandshakeFailed(err error) { h.errs = append(h.errs, err) }

// stubCommand records its lifecycle.
type stubCommand struct {
	name      string
	kind      string
	starts    int
	cancels   int
	ctl       Control
	consumes  string
	onReceive func(ctl Control)
}

func (c *stubCommand) Start(ctl Control) {
	c.starts++
	c.ctl = ctl
}

func (c *stubCommand) Cancel() { c.cancels++ }

func (c *stubCommand) Receive(line string) bool {
	if c.onReceive != nil {
		c.onReceive(c.ctl)
	}
	return line == c.consumes
}

func (c *stubCommand) SimilarTo(other Command) bool {
	o, ok := other.(*stubCommand)
	return ok && o.kind == c.kind
}

func (c *stubCommand) String() string { return c.name }
