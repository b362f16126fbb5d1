package transceiver

import (
	"testing"
	"time"

	"github.com/muurk/maxcul/internal/moritz"
)

type fakeSender struct {
	pongs []string
	times []string
}

func (s *fakeSender) Address() string { return gateway }

func (s *fakeSender) SendPairPong(addr string) (<-chan error, error) {
	s.pongs = append(s.pongs, addr)
	return nil, nil
}

func (s *fakeSender) SendTimeInformation(addr string) (<-chan error, error) {
	s.times = append(s.times, addr)
	return nil, nil
}

func TestResponder_PairPing(t *testing.T) {
	tests := []struct {
		name   string
		source string
		dest   string
		want   int
	}{
		{"known device", thermo, gateway, 1},
		{"known device lower case", "18f941", "123456", 1},
		{"unknown device", "ABCDEF", gateway, 0},
		{"other gateway", thermo, "999999", 0},
		{"pairing request", thermo, BroadcastAddress, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			r := NewResponder(sender, []string{"18f941"})
			r.Dispatch(&moritz.PairPingMessage{
				Envelope:   moritz.Envelope{Type: moritz.TypePairPing, Source: tt.source, Dest: tt.dest},
				DeviceType: moritz.DeviceHeatingThermostat,
			})
			if len(sender.pongs) != tt.want {
				t.Errorf("sent %d pair pongs, want %d", len(sender.pongs), tt.want)
			}
			if len(sender.times) != 0 {
				t.Errorf("sent time information on pair ping")
			}
		})
	}
}

func TestResponder_TimeInformation(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local)
	tests := []struct {
		name   string
		source string
		time   time.Time
		want   int
	}{
		{"request", thermo, time.Time{}, 1},
		{"in sync", thermo, now.Add(-5 * time.Second), 0},
		{"at the limit", thermo, now.Add(MaxClockDrift), 0},
		{"behind", thermo, now.Add(-11 * time.Second), 1},
		{"ahead", thermo, now.Add(time.Hour), 1},
		{"unknown device", "ABCDEF", time.Time{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			r := NewResponder(sender, []string{thermo})
			r.now = func() time.Time { return now }
			r.Dispatch(&moritz.TimeInformationMessage{
				Envelope: moritz.Envelope{Type: moritz.TypeTimeInformation, Source: tt.source, Dest: gateway},
				Time:     tt.time,
			})
			if len(sender.times) != tt.want {
				t.Errorf("sent %d time messages, want %d", len(sender.times), tt.want)
			}
		})
	}
}

func TestResponder_IgnoresOtherMessages(t *testing.T) {
	sender := &fakeSender{}
	r := NewResponder(sender, []string{thermo})
	r.Dispatch(&moritz.AckMessage{Envelope: moritz.Envelope{Type: moritz.TypeAck, Source: thermo, Dest: gateway}, OK: true})
	if len(sender.pongs)+len(sender.times) != 0 {
		t.Error("responder answered an ACK")
	}
}

func TestSameAddress(t *testing.T) {
	if !SameAddress("abcdef", "ABCDEF") {
		t.Error("SameAddress ignores case")
	}
	if SameAddress("abcdef", "abcde0") {
		t.Error("SameAddress(abcdef, abcde0) = true")
	}
}
