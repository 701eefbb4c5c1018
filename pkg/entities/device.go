package entities

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

type DeviceState int

const (
	StateOffline DeviceState = iota
	StateOnline
	StateRunning
	StateStopped
	StateError
	StateAlarm
)

var deviceStateNames = []string{"Offline", "Online", "Running", "Stopped", "Error", "Alarm"}

func (s DeviceState) String() string {
	if s < 0 || int(s) >= len(deviceStateNames) {
		return fmt.Sprintf("DeviceState(%d)", int(s))
	}
	return deviceStateNames[s]
}

// ParseDeviceState accepts either the state name or its ordinal.
func ParseDeviceState(text string) (DeviceState, error) {
	for i, name := range deviceStateNames {
		if name == text {
			return DeviceState(i), nil
		}
	}
	ordinal, err := strconv.Atoi(text)
	if err != nil || ordinal < 0 || ordinal >= len(deviceStateNames) {
		return StateOffline, fmt.Errorf("unknown device state %q", text)
	}
	return DeviceState(ordinal), nil
}

func (s DeviceState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *DeviceState) UnmarshalJSON(data []byte) error {
	parsed, err := ParseDeviceState(unquote(data))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type DeviceType int

const (
	TypeUnknown DeviceType = iota
	TypeFan
	TypeLamp
	TypeTemperatureSensor
)

var deviceTypeNames = []string{"Unknown", "Fan", "Lamp", "TemperatureSensor"}

func (t DeviceType) String() string {
	if t < 0 || int(t) >= len(deviceTypeNames) {
		return deviceTypeNames[TypeUnknown]
	}
	return deviceTypeNames[t]
}

// ParseDeviceType never fails: anything it does not recognise is TypeUnknown.
func ParseDeviceType(text string) DeviceType {
	for i, name := range deviceTypeNames {
		if name == text {
			return DeviceType(i)
		}
	}
	if ordinal, err := strconv.Atoi(text); err == nil && ordinal >= 0 && ordinal < len(deviceTypeNames) {
		return DeviceType(ordinal)
	}
	return TypeUnknown
}

func (t DeviceType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *DeviceType) UnmarshalJSON(data []byte) error {
	*t = ParseDeviceType(unquote(data))
	return nil
}

func (t *DeviceType) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var text string
	if err := unmarshal(&text); err != nil {
		return err
	}
	*t = ParseDeviceType(text)
	return nil
}

func (t DeviceType) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

func unquote(data []byte) string {
	if text, err := strconv.Unquote(string(data)); err == nil {
		return text
	}
	return string(data)
}

// DeviceConfig is one row of the static device table.
type DeviceConfig struct {
	ID       string     `yaml:"deviceId"`
	Name     string     `yaml:"name"`
	Type     DeviceType `yaml:"type"`
	Endpoint string     `yaml:"endpoint"`
}

type Device struct {
	ID           string           `json:"deviceId"`
	Name         string           `json:"name"`
	Type         DeviceType       `json:"type"`
	State        DeviceState      `json:"state"`
	Endpoint     string           `json:"endpoint"`
	LastSeen     time.Time        `json:"lastSeen"`
	Properties   map[string]Value `json:"properties"`
	CurrentValue float64          `json:"currentValue"`
}

// NewDevice builds the session record for a configured device. It starts
// Offline and has never been seen.
func NewDevice(conf DeviceConfig) Device {
	return Device{
		ID:         conf.ID,
		Name:       conf.Name,
		Type:       conf.Type,
		State:      StateOffline,
		Endpoint:   conf.Endpoint,
		LastSeen:   time.Time{},
		Properties: map[string]Value{},
	}
}

// Copy returns a device that shares no mutable state with d.
func (d Device) Copy() Device {
	properties := make(map[string]Value, len(d.Properties))
	for key, value := range d.Properties {
		properties[key] = value
	}
	d.Properties = properties
	return d
}

func (d Device) IsOnline() bool {
	return d.State != StateOffline
}

func (d Device) IsRunning() bool {
	return d.State == StateRunning
}

func (d Device) CanStart() bool {
	return d.IsOnline() && !d.IsRunning()
}

func (d Device) CanStop() bool {
	return d.IsRunning()
}

func (d Device) CanSetValue() bool {
	return d.IsRunning()
}

// StatusText renders the current value the way an operator panel shows it.
func (d Device) StatusText() string {
	switch d.Type {
	case TypeFan:
		return fmt.Sprintf("Speed: %.1fx", d.CurrentValue)
	case TypeTemperatureSensor:
		return fmt.Sprintf("Temp: %.1f°C", d.CurrentValue)
	case TypeLamp:
		return fmt.Sprintf("Brightness: %.0f%%", d.CurrentValue)
	default:
		return d.State.String()
	}
}
