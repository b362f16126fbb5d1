package transceiver

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/maxcul/internal/logging"
	"github.com/muurk/maxcul/internal/moritz"
)

// MaxClockDrift is how far a device clock may be off before the gateway
// sends it the time.
const MaxClockDrift = 10 * time.Second

// Sender is the part of the Transceiver a Responder needs.
type Sender interface {
	Address() string
	SendPairPong(addr string) (<-chan error, error)
	SendTimeInformation(addr string) (<-chan error, error)
}

// Responder answers requests that known devices address to the gateway:
// pair pings get a pair pong, and time requests or clocks that drifted get
// the current time.
type Responder struct {
	sender Sender
	known  map[string]bool
	now    func() time.Time
}

// NewResponder creates a Responder answering the devices in known.
func NewResponder(sender Sender, known []string) *Responder {
	r := &Responder{
		sender: sender,
		known:  make(map[string]bool, len(known)),
		now:    time.Now,
	}
	for _, addr := range known {
		r.known[strings.ToUpper(addr)] = true
	}
	return r
}

// Dispatch implements Dispatcher.
func (r *Responder) Dispatch(msg moritz.Incoming) {
	switch m := msg.(type) {
	case *moritz.PairPingMessage:
		r.pairPing(m)
	case *moritz.TimeInformationMessage:
		r.timeInformation(m)
	}
}

func (r *Responder) forGateway(env moritz.Envelope) bool {
	return SameAddress(env.Dest, r.sender.Address()) && r.known[strings.ToUpper(env.Source)]
}

func (r *Responder) pairPing(m *moritz.PairPingMessage) {
	if r.forGateway(m.Envelope) {
		logging.Debug("Answering pair ping", zap.String("address", m.Source))
		if _, err := r.sender.SendPairPong(m.Source); err != nil {
			logging.Warn("Cannot answer pair ping", zap.String("address", m.Source), zap.Error(err))
		}
		return
	}
	if m.Dest == BroadcastAddress {
		logging.Warn("Ignoring pairing request, pairing mode is not supported",
			zap.String("address", m.Source),
			zap.Stringer("device_type", m.DeviceType),
		)
	}
}

func (r *Responder) timeInformation(m *moritz.TimeInformationMessage) {
	if !r.forGateway(m.Envelope) {
		return
	}
	if !m.Time.IsZero() {
		drift := r.now().Sub(m.Time)
		if drift < 0 {
			drift = -drift
		}
		if drift <= MaxClockDrift {
			return
		}
		logging.Debug("Device clock out of sync",
			zap.String("address", m.Source),
			zap.Duration("drift", drift),
		)
	}
	if _, err := r.sender.SendTimeInformation(m.Source); err != nil {
		logging.Warn("Cannot send time information", zap.String("address", m.Source), zap.Error(err))
	}
}
