package moritz

import (
	"errors"
	"testing"
	"time"
)

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr error
		verify  func(t *testing.T, f *Frame)
	}{
		{
			name: "ack frame",
			line: "Z0E03020218F941123456000119602A2E",
			verify: func(t *testing.T, f *Frame) {
				if f.Length != 0x0E {
					t.Errorf("length = %d, want 14", f.Length)
				}
				if f.ID != 3 || f.Flags != 2 || f.Type != TypeAck {
					t.Errorf("id/flags/type = %d/%d/%s", f.ID, f.Flags, f.Type)
				}
				if f.Source != "18F941" || f.Dest != "123456" {
					t.Errorf("src/dst = %s/%s", f.Source, f.Dest)
				}
				if f.Payload != "0119602A" {
					t.Errorf("payload = %s, want 0119602A", f.Payload)
				}
				if f.RSSI != 0x2E {
					t.Errorf("rssi = 0x%02x, want 0x2e", f.RSSI)
				}
			},
		},
		{
			name:    "not a frame",
			line:    "21 900",
			wantErr: ErrMalformedFrame,
		},
		{
			name:    "lowercase hex",
			line:    "Z0e03020218f941123456000119602a2e",
			wantErr: ErrMalformedFrame,
		},
		{
			name:    "declared length too long",
			line:    "Z0F03020218F941123456000119602A2E",
			wantErr: ErrLengthMismatch,
		},
		{
			name:    "declared length too short",
			line:    "Z0D03020218F941123456000119602A2E",
			wantErr: ErrLengthMismatch,
		},
		{
			name:    "empty",
			line:    "",
			wantErr: ErrMalformedFrame,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseFrame(tt.line)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseFrame() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFrame() error = %v", err)
			}
			if tt.verify != nil {
				tt.verify(t, f)
			}
		})
	}
}

func TestDecode_Ack(t *testing.T) {
	msg := decodeAs[*AckMessage](t, "Z0E03020218F941123456000119602A2E")

	if !msg.OK {
		t.Error("OK = false, want true")
	}
	if msg.ID != 3 || msg.Type != TypeAck || msg.Source != "18F941" || msg.Dest != "123456" {
		t.Errorf("envelope = %+v", msg.Envelope)
	}
	if !msg.HasSettings {
		t.Fatal("HasSettings = false")
	}
	want := ThermostatSettings{Mode: ModeManual, Valve: 96, Desired: 21.0}
	if msg.Settings != want {
		t.Errorf("settings = %+v, want %+v", msg.Settings, want)
	}
}

func TestDecode_AckNotOK(t *testing.T) {
	msg := decodeAs[*AckMessage](t, "Z0E03020218F941123456008119602A2E")
	if msg.OK {
		t.Error("OK = true, want false")
	}
}

func TestDecode_AckWithoutSettings(t *testing.T) {
	msg := decodeAs[*AckMessage](t, "Z0B07020218F941123456000017")
	if !msg.OK || msg.HasSettings {
		t.Errorf("OK/HasSettings = %v/%v, want true/false", msg.OK, msg.HasSettings)
	}
}

func TestDecode_ThermostatState(t *testing.T) {
	msg := decodeAs[*ThermostatStateMessage](t, "Z0F00046018F9410000000019002A00EE2B")

	if msg.ID != 0 || msg.Type != TypeThermostatState || msg.Source != "18F941" || msg.Dest != "000000" {
		t.Errorf("envelope = %+v", msg.Envelope)
	}
	want := ThermostatSettings{Mode: ModeManual, Valve: 0, Desired: 21.0}
	if msg.Settings != want {
		t.Errorf("settings = %+v, want %+v", msg.Settings, want)
	}
	if !msg.HasMeasured || msg.Measured != 23.8 {
		t.Errorf("measured = %v (%v), want 23.8", msg.Measured, msg.HasMeasured)
	}
}

func TestDecode_SettingsFlags(t *testing.T) {
	// 0xE2: battery low, rf error, locked, mode boost
	msg := decodeAs[*ThermostatStateMessage](t, "Z0D00046012345600000000E2642B2B")
	s := msg.Settings
	if !s.BatteryLow || !s.RFError || !s.Locked {
		t.Errorf("flags = %+v, want all set", s)
	}
	if s.Mode != ModeBoost {
		t.Errorf("mode = %s, want BOOST", s.Mode)
	}
	if s.Valve != 100 || s.Desired != 21.5 {
		t.Errorf("valve/desired = %d/%v, want 100/21.5", s.Valve, s.Desired)
	}
	if msg.HasMeasured {
		t.Error("HasMeasured = true for 3 byte payload")
	}
}

func TestDecode_SetTemperature(t *testing.T) {
	msg := decodeAs[*SetTemperatureMessage](t, "Z0B2C0040ABABABCDCDCD006B2E")

	if msg.ID != 44 || msg.Source != "ABABAB" || msg.Dest != "CDCDCD" {
		t.Errorf("envelope = %+v", msg.Envelope)
	}
	if msg.Mode != ModeManual || msg.Desired != 21.5 {
		t.Errorf("mode/desired = %s/%v, want MANUAL/21.5", msg.Mode, msg.Desired)
	}
}

func TestDecode_TimeInformationEmpty(t *testing.T) {
	msg := decodeAs[*TimeInformationMessage](t, "Z0A000A0318F941123456000B")

	if msg.ID != 0 || msg.Type != TypeTimeInformation || msg.Source != "18F941" || msg.Dest != "123456" {
		t.Errorf("envelope = %+v", msg.Envelope)
	}
	if !msg.Time.IsZero() {
		t.Errorf("time = %v, want zero", msg.Time)
	}
}

func TestDecode_TimeInformation(t *testing.T) {
	msg := decodeAs[*TimeInformationMessage](t, "Z0F00000318F94112345600140C1286612E")

	want := time.Date(2020, 9, 12, 18, 6, 33, 0, time.Local)
	if !msg.Time.Equal(want) {
		t.Errorf("time = %v, want %v", msg.Time, want)
	}
}

func TestDecode_PairPing(t *testing.T) {
	msg := decodeAs[*PairPingMessage](t, "Z1700000018F941123456001001A04F45513034343435373312")

	if msg.ID != 0 || msg.Type != TypePairPing || msg.Source != "18F941" || msg.Dest != "123456" {
		t.Errorf("envelope = %+v", msg.Envelope)
	}
	if msg.Firmware != 16 || msg.DeviceType != DeviceHeatingThermostat || msg.TestResult != 160 {
		t.Errorf("firmware/type/test = %d/%s/%d", msg.Firmware, msg.DeviceType, msg.TestResult)
	}
	if msg.Serial != "4F455130343434353733" {
		t.Errorf("serial = %s", msg.Serial)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr error
	}{
		{"unknown type", "Z0B000099123456123456000000", ErrUnknownType},
		{"type without decoder", "Z0B000030123456123456000000", ErrNotDecodable},
		{"ack payload too short", "Z0A000002123456123456002E", ErrPayload},
		{"ack with partial settings", "Z0C07020218F94112345600000117", ErrPayload},
		{"thermostat state too short", "Z0C0000601234561234560001022E", ErrPayload},
		{"pair ping unknown device type", "Z0D00000012345612345600100AA02E", ErrPayload},
		{"time information invalid month", "Z0F0000031234561234560014091200002E", ErrPayload},
		{"malformed", "garbage", ErrMalformedFrame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode(tt.line)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
			}
			if msg != nil {
				t.Errorf("Decode() message = %v, want nil", msg)
			}
		})
	}
}

func decodeAs[T Incoming](t *testing.T, line string) T {
	t.Helper()
	msg, err := Decode(line)
	if err != nil {
		t.Fatalf("Decode(%q) error = %v", line, err)
	}
	typed, ok := msg.(T)
	if !ok {
		t.Fatalf("Decode(%q) = %T, want %T", line, msg, *new(T))
	}
	return typed
}
