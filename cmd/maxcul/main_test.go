package main

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/muurk/maxcul/internal/command"
	"github.com/muurk/maxcul/internal/config"
	"github.com/muurk/maxcul/internal/transceiver"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Devices = []config.Device{
		{Address: "18f941", Type: "HEATING_THERMOSTAT", Name: "Living room"},
		{Address: "0A0B0C", Type: "WALL_MOUNTED_THERMOSTAT"},
	}
	return cfg
}

func TestResolveAddress(t *testing.T) {
	cfg := testConfig()
	tests := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{"18F941", "18F941", false},
		{"18f941", "18F941", false},
		{"Living room", "18F941", false},
		{"abcdef", "ABCDEF", false},
		{"Kitchen", "", true},
		{"12345", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := resolveAddress(cfg, tt.ref)
			if (err != nil) != tt.wantErr {
				t.Fatalf("resolveAddress() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("resolveAddress() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKnownDevice(t *testing.T) {
	cfg := testConfig()
	d, err := knownDevice(cfg, "0a0b0c")
	if err != nil {
		t.Fatalf("knownDevice() error = %v", err)
	}
	peer, err := d.Peer()
	if err != nil || peer.Type.IsHeatingThermostat() {
		t.Errorf("Peer() = %+v, %v", peer, err)
	}
	if _, err := knownDevice(cfg, "abcdef"); err == nil {
		t.Error("unconfigured address should not be known")
	}
}

func TestParseTemperature(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"21.5", 21.5, false},
		{"0", 0, false},
		{"63.5", 63.5, false},
		{"64", 0, true},
		{"-1", 0, true},
		{"warm", 0, true},
	}
	for _, tt := range tests {
		got, err := parseTemperature(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseTemperature(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestParseSetTemperature(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"21.5", 21.5, false},
		{"31.5", 31.5, false},
		{"32", 0, true},
		{"40", 0, true},
		{"-0.5", 0, true},
	}
	for _, tt := range tests {
		got, err := parseSetTemperature(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseSetTemperature(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestDecodeLine(t *testing.T) {
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	out, err := decodeLine("Z0F00046018F9410000000019002A00EE2B", false, at)
	if err != nil {
		t.Fatalf("decodeLine() error = %v", err)
	}
	if !strings.Contains(out, "ThermostatState") || !strings.Contains(out, "measured: 23.8") {
		t.Errorf("decodeLine() = %q", out)
	}

	out, err = decodeLine("Z0F00046018F9410000000019002A00EE2B", true, at)
	if err != nil {
		t.Fatalf("decodeLine(json) error = %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decodeLine(json) is not JSON: %v", err)
	}
	if doc["source"] != "18F941" {
		t.Errorf("source = %v", doc["source"])
	}

	if _, err := decodeLine("Zgarbage", false, at); err == nil {
		t.Error("decodeLine() should fail on garbage")
	}
}

func TestTroubleshooting(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"open failure", errors.New("no such file"), "maxcul ports"},
		{"firmware", &transceiver.LinkError{Kind: transceiver.KindFirmware}, "culfw 1.53"},
		{"handshake", &transceiver.LinkError{Kind: transceiver.KindHandshake, Err: command.ErrHandshakeExhausted}, "baud rate"},
		{"stream", &transceiver.LinkError{Kind: transceiver.KindStream}, "unplugged"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tips := strings.Join(troubleshooting(tt.err), "\n")
			if !strings.Contains(tips, tt.want) {
				t.Errorf("troubleshooting() = %q, want a tip with %q", tips, tt.want)
			}
		})
	}
}

func TestOnlineWaiter(t *testing.T) {
	w := newOnlineWaiter()
	w.GatewayStatus(transceiver.Status{Online: false})
	w.GatewayStatus(transceiver.Status{Online: true, Version: 167})

	v, err := w.wait(context.Background(), make(chan error))
	if err != nil || v != 167 {
		t.Errorf("wait() = %d, %v", v, err)
	}

	runErr := make(chan error, 1)
	runErr <- &transceiver.LinkError{Kind: transceiver.KindHandshake}
	if _, err := newOnlineWaiter().wait(context.Background(), runErr); !transceiver.IsLinkError(err, transceiver.KindHandshake) {
		t.Errorf("wait() error = %v, want handshake error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newOnlineWaiter().wait(ctx, make(chan error)); !errors.Is(err, context.Canceled) {
		t.Errorf("wait() error = %v, want context.Canceled", err)
	}
}

func TestAwaitResults(t *testing.T) {
	ok := make(chan error, 1)
	ok <- nil
	failed := make(chan error, 1)
	failed <- command.ErrSendExhausted

	err := awaitResults(context.Background(), []<-chan error{ok, failed})
	if !errors.Is(err, command.ErrSendExhausted) {
		t.Errorf("awaitResults() = %v, want ErrSendExhausted", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := awaitResults(ctx, []<-chan error{make(chan error)}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("awaitResults() = %v, want deadline", err)
	}
}

func TestSingle(t *testing.T) {
	result := make(chan error)
	got, err := single(result, nil)
	if err != nil || len(got) != 1 {
		t.Errorf("single() = %v, %v", got, err)
	}
	if _, err := single(nil, transceiver.ErrNotConnected); !errors.Is(err, transceiver.ErrNotConnected) {
		t.Errorf("single() error = %v", err)
	}
}
