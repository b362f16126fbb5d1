package transceiver

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/muurk/maxcul/internal/command"
	"github.com/muurk/maxcul/internal/moritz"
)

// fakeGateway is a serial port backed by a script: every written line may
// produce response lines.
type fakeGateway struct {
	mu       sync.Mutex
	in       bytes.Buffer
	written  []string
	closed   bool
	readErr  error
	writeErr error
	respond  func(line string) []string
}

func newFakeGateway(respond func(line string) []string) *fakeGateway {
	return &fakeGateway{respond: respond}
}

// cul answers like a culfw gateway with plenty of credit that acknowledges
// every frame.
func cul(version string) func(string) []string {
	return func(line string) []string {
		switch {
		case line == "V":
			if version == "" {
				return nil
			}
			return []string{version}
		case line == "X":
			return []string{"21 900"}
		case strings.HasPrefix(line, "Zs"):
			frame := line[2:]
			return []string{"Z0E" + frame[2:4] + "0202" + frame[14:20] + frame[8:14] + "000119602A2E"}
		}
		return nil
	}
}

func (g *fakeGateway) Read(p []byte) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return 0, errors.New("port closed")
	}
	if g.readErr != nil {
		return 0, g.readErr
	}
	if g.in.Len() == 0 {
		return 0, nil
	}
	return g.in.Read(p)
}

func (g *fakeGateway) Write(p []byte) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.writeErr != nil {
		return 0, g.writeErr
	}
	for _, line := range strings.Split(strings.TrimSuffix(string(p), "\r\n"), "\r\n") {
		g.written = append(g.written, line)
		if g.respond == nil {
			continue
		}
		for _, resp := range g.respond(line) {
			g.in.WriteString(resp + "\r\n")
		}
	}
	return len(p), nil
}

func (g *fakeGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}

// Feed makes the gateway report a line.
func (g *fakeGateway) Feed(line string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.in.WriteString(line + "\r\n")
}

func (g *fakeGateway) Written() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.written...)
}

func (g *fakeGateway) setReadErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.readErr = err
}

// manualScheduler fires timers only when told to.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	fn      func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	wasPending := !t.stopped
	t.stopped = true
	return wasPending
}

func (s *manualScheduler) AfterFunc(_ time.Duration, fn func()) command.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// FireAll runs every timer scheduled so far.
func (s *manualScheduler) FireAll() {
	s.mu.Lock()
	timers := s.timers
	s.timers = nil
	s.mu.Unlock()
	for _, t := range timers {
		t.fn()
	}
}

// recorder is a Dispatcher and StatusListener keeping what it saw.
type recorder struct {
	mu       sync.Mutex
	messages []moritz.Incoming
	statuses []Status
}

func (r *recorder) Dispatch(msg moritz.Incoming) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *recorder) GatewayStatus(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recorder) Messages() []moritz.Incoming {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]moritz.Incoming(nil), r.messages...)
}

func (r *recorder) Statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.statuses...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func contains(lines []string, want string) bool {
	for _, l := range lines {
		if l == want {
			return true
		}
	}
	return false
}
