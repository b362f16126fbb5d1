package moritz

import (
	"fmt"
	"strings"
)

// MessageType is the type tag of a radio message.
type MessageType uint8

// Message type tags
const (
	TypePairPing                    MessageType = 0x00
	TypePairPong                    MessageType = 0x01
	TypeAck                         MessageType = 0x02
	TypeTimeInformation             MessageType = 0x03
	TypeConfigWeekProfile           MessageType = 0x10
	TypeConfigTemperatures          MessageType = 0x11 // eco/comfort etc
	TypeConfigValve                 MessageType = 0x12
	TypeAddLinkPartner              MessageType = 0x20
	TypeRemoveLinkPartner           MessageType = 0x21
	TypeSetGroupID                  MessageType = 0x22
	TypeRemoveGroupID               MessageType = 0x23
	TypeShutterContactState         MessageType = 0x30
	TypeSetTemperature              MessageType = 0x40 // to thermostat
	TypeWallThermostatControl       MessageType = 0x42 // by wall mounted thermostat
	TypeSetComfortTemperature       MessageType = 0x43
	TypeSetEcoTemperature           MessageType = 0x44
	TypePushButtonState             MessageType = 0x50
	TypeThermostatState             MessageType = 0x60 // by heating thermostat
	TypeWallThermostatState         MessageType = 0x70
	TypeSetDisplayActualTemperature MessageType = 0x82
	TypeReset                       MessageType = 0xF0
	TypeWakeUp                      MessageType = 0xF1
)

var messageTypeNames = map[MessageType]string{
	TypePairPing:                    "PairPing",
	TypePairPong:                    "PairPong",
	TypeAck:                         "Ack",
	TypeTimeInformation:             "TimeInformation",
	TypeConfigWeekProfile:           "ConfigWeekProfile",
	TypeConfigTemperatures:          "ConfigTemperatures",
	TypeConfigValve:                 "ConfigValve",
	TypeAddLinkPartner:              "AddLinkPartner",
	TypeRemoveLinkPartner:           "RemoveLinkPartner",
	TypeSetGroupID:                  "SetGroupId",
	TypeRemoveGroupID:               "RemoveGroupId",
	TypeShutterContactState:         "ShutterContactState",
	TypeSetTemperature:              "SetTemperature",
	TypeWallThermostatControl:       "WallThermostatControl",
	TypeSetComfortTemperature:       "SetComfortTemperature",
	TypeSetEcoTemperature:           "SetEcoTemperature",
	TypePushButtonState:             "PushButtonState",
	TypeThermostatState:             "ThermostatState",
	TypeWallThermostatState:         "WallThermostatState",
	TypeSetDisplayActualTemperature: "SetDisplayActualTemperature",
	TypeReset:                       "Reset",
	TypeWakeUp:                      "WakeUp",
}

// Known reports whether t is a message type of the protocol.
func (t MessageType) Known() bool {
	_, ok := messageTypeNames[t]
	return ok
}

// String returns the protocol name of the type
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%02X)", uint8(t))
}

// ThermostatMode is the operating mode of a heating thermostat.
type ThermostatMode uint8

const (
	ModeAutomatic ThermostatMode = 0
	ModeManual    ThermostatMode = 1
	ModeBoost     ThermostatMode = 2
	ModeVacation  ThermostatMode = 3
)

var modeNames = [...]string{"AUTOMATIC", "MANUAL", "BOOST", "VACATION"}

func (m ThermostatMode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("ThermostatMode(%d)", uint8(m))
}

// ParseThermostatMode accepts the mode name in any case.
func ParseThermostatMode(s string) (ThermostatMode, error) {
	for i, name := range modeNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return ThermostatMode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown thermostat mode %q", s)
}

func thermostatModeFromID(id int) (ThermostatMode, error) {
	if id < 0 || id >= len(modeNames) {
		return 0, fmt.Errorf("%w: thermostat mode %d", ErrPayload, id)
	}
	return ThermostatMode(id), nil
}

// DeviceType identifies the kind of a MAX! device.
type DeviceType uint8

const (
	DeviceCube                  DeviceType = 0
	DeviceHeatingThermostat     DeviceType = 1
	DeviceHeatingThermostatPlus DeviceType = 2
	DeviceWallMountedThermostat DeviceType = 3
	DeviceShutterContact        DeviceType = 4
	DevicePushButton            DeviceType = 5
)

var deviceTypeNames = [...]string{
	"CUBE",
	"HEATING_THERMOSTAT",
	"HEATING_THERMOSTAT_PLUS",
	"WALL_MOUNTED_THERMOSTAT",
	"SHUTTER_CONTACT",
	"PUSH_BUTTON",
}

func (d DeviceType) String() string {
	if int(d) < len(deviceTypeNames) {
		return deviceTypeNames[d]
	}
	return fmt.Sprintf("DeviceType(%d)", uint8(d))
}

// IsHeatingThermostat reports whether devices of this type drive a valve.
func (d DeviceType) IsHeatingThermostat() bool {
	return d == DeviceHeatingThermostat || d == DeviceHeatingThermostatPlus
}

// ParseDeviceType accepts the device type name in any case.
func ParseDeviceType(s string) (DeviceType, error) {
	for i, name := range deviceTypeNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return DeviceType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown device type %q", s)
}

func deviceTypeFromID(id int) (DeviceType, error) {
	if id < 0 || id >= len(deviceTypeNames) {
		return 0, fmt.Errorf("%w: device type %d", ErrPayload, id)
	}
	return DeviceType(id), nil
}
