// Package event turns decoded MAX! messages and gateway status changes into
// the JSON documents published over MQTT and the websocket feed.
package event

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/muurk/maxcul/internal/moritz"
)

// GatewayType is the Type of gateway status events.
const GatewayType = "Gateway"

// Event is one published document.
type Event struct {
	Time    time.Time      `json:"time"`
	Type    string         `json:"type"`
	ID      *uint8         `json:"id,omitempty"`
	Source  string         `json:"source,omitempty"`
	Dest    string         `json:"dest,omitempty"`
	Summary string         `json:"summary"`
	Data    map[string]any `json:"data,omitempty"`
}

// FromMessage builds the event for a decoded message received at t.
func FromMessage(msg moritz.Incoming, t time.Time) Event {
	h := msg.Header()
	id := h.ID
	ev := Event{
		Time:    t,
		Type:    h.Type.String(),
		ID:      &id,
		Source:  strings.ToUpper(h.Source),
		Dest:    strings.ToUpper(h.Dest),
		Summary: msg.String(),
	}

	switch m := msg.(type) {
	case *moritz.AckMessage:
		ev.Data = map[string]any{"ok": m.OK}
		if m.HasSettings {
			addSettings(ev.Data, m.Settings)
		}
	case *moritz.ThermostatStateMessage:
		ev.Data = map[string]any{}
		addSettings(ev.Data, m.Settings)
		if m.HasMeasured {
			ev.Data["measured"] = m.Measured
		}
	case *moritz.PairPingMessage:
		ev.Data = map[string]any{
			"firmware":    m.Firmware,
			"device_type": m.DeviceType.String(),
			"test_result": m.TestResult,
			"serial":      m.Serial,
		}
	case *moritz.SetTemperatureMessage:
		ev.Data = map[string]any{"mode": m.Mode.String(), "desired": m.Desired}
	case *moritz.LinkPartnerMessage:
		ev.Data = map[string]any{
			"link":         m.Link(),
			"partner":      strings.ToUpper(m.Partner),
			"partner_type": m.PartnerType.String(),
		}
	case *moritz.WallThermostatControlMessage:
		ev.Data = map[string]any{"desired": m.Desired, "measured": m.Measured}
	case *moritz.TimeInformationMessage:
		if !m.Time.IsZero() {
			ev.Data = map[string]any{"time": m.Time.Format(time.RFC3339)}
		}
	}
	return ev
}

func addSettings(data map[string]any, s moritz.ThermostatSettings) {
	data["mode"] = s.Mode.String()
	data["valve"] = s.Valve
	data["desired"] = s.Desired
	data["locked"] = s.Locked
	data["rf_error"] = s.RFError
	data["battery_low"] = s.BatteryLow
}

// Gateway builds the event for a gateway status change.
func Gateway(online bool, version int, t time.Time) Event {
	state := "offline"
	if online {
		state = "online"
	}
	return Event{
		Time:    t,
		Type:    GatewayType,
		Summary: "gateway " + state,
		Data:    map[string]any{"online": online, "version": version},
	}
}

// Retained reports whether the event carries device state that a late
// subscriber should still see.
func (e Event) Retained() bool {
	switch e.Type {
	case moritz.TypeThermostatState.String(), moritz.TypeWallThermostatControl.String(), GatewayType:
		return true
	}
	return false
}

// JSON encodes the event.
func (e Event) JSON() []byte {
	// Every field type is encodable
	data, _ := json.Marshal(e)
	return data
}
