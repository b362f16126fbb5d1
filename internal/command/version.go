package command

import (
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/maxcul/internal/logging"
)

const (
	// VersionTimeout is how long to wait for the version line.
	VersionTimeout = 3 * time.Second

	// VersionTries is the number of version requests before giving up.
	VersionTries = 3

	// ACulVersion is reported for a-culfw, whose version numbering does not
	// follow culfw's.
	ACulVersion = 154

	firmwareACul = "a-culfw"
)

var versionResponse = regexp.MustCompile(`^V (\d+)\.(\d+)(?:\.\d+)? (.+?)(?: .+)?$`)

// HandshakeHandler learns the outcome of the version handshake. Its methods
// run under the queue lock and must neither block nor call the queue.
type HandshakeHandler interface {
	// Version reports the negotiated firmware version, major*100+minor.
	Version(version int)

	// HandshakeFailed reports that the gateway never answered.
	HandshakeFailed(err error)
}

// VersionCommand asks the gateway for its firmware version.
//
// Every start sends "V" and arms a timeout that starts the command again.
// The fourth start reports ErrHandshakeExhausted instead. A version line
// cancels the timeout, reports the version and advances the queue.
type VersionCommand struct {
	handler HandshakeHandler

	ctl     Control
	tries   int
	timer   Timer
	version int
	failed  bool
}

// NewVersionCommand creates a handshake reporting to handler.
func NewVersionCommand(handler HandshakeHandler) *VersionCommand {
	return &VersionCommand{handler: handler}
}

func (c *VersionCommand) Start(ctl Control) {
	c.ctl = ctl
	if c.tries == VersionTries {
		logging.Error("Timeout waiting for gateway version, giving up", zap.Int("tries", c.tries))
		c.failed = true
		c.handler.HandshakeFailed(ErrHandshakeExhausted)
		return
	}
	if c.tries > 0 {
		logging.Debug("Timeout waiting for gateway version, trying again", zap.Int("tries", c.tries))
	}
	c.tries++

	ctl.Send("V")
	c.timer = ctl.Schedule(VersionTimeout, func() { c.Start(ctl) })
}

func (c *VersionCommand) Cancel() {
	if c.timer != nil {
		c.timer.Stop()
	}
}

func (c *VersionCommand) Receive(line string) bool {
	m := versionResponse.FindStringSubmatch(line)
	if m == nil {
		return false
	}

	c.Cancel()

	c.version = ParseVersion(m[1], m[2], m[3])
	logging.Info("Gateway version",
		zap.Int("version", c.version),
		zap.String("firmware", m[3]),
	)
	c.handler.Version(c.version)
	c.ctl.Advance()
	return true
}

// SimilarTo holds for any other handshake; only one is ever meaningful.
func (c *VersionCommand) SimilarTo(other Command) bool {
	_, ok := other.(*VersionCommand)
	return ok
}

// Tries returns how many version requests were sent.
func (c *VersionCommand) Tries() int {
	return c.tries
}

func (c *VersionCommand) String() string {
	switch {
	case c.failed:
		return "version handshake failed"
	case c.version != 0:
		return "version handshake done: " + strconv.Itoa(c.version)
	default:
		return "waiting for version, try " + strconv.Itoa(c.tries)
	}
}

// ParseVersion computes the protocol version from the fields of a version
// line.
func ParseVersion(major, minor, firmware string) int {
	if firmware == firmwareACul {
		return ACulVersion
	}
	maj, _ := strconv.Atoi(major)
	mnr, _ := strconv.Atoi(minor)
	return maj*100 + mnr
}
