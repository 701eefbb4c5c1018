package entities

import "time"

const (
	ActionStart         = "Start"
	ActionStop          = "Stop"
	ActionSetSpeed      = "SetSpeed"
	ActionSetBrightness = "SetBrightness"
	ActionSetValue      = "SetValue"

	ParameterValue = "Value"
)

type Command struct {
	DeviceID   string           `json:"deviceId"`
	Action     string           `json:"action"`
	Parameters map[string]Value `json:"parameters"`
	Timestamp  time.Time        `json:"timestamp"`
}

func NewStartCommand() Command {
	return Command{Action: ActionStart, Parameters: map[string]Value{}}
}

func NewStopCommand() Command {
	return Command{Action: ActionStop, Parameters: map[string]Value{}}
}

// NewSetValueCommand picks the set-point action that fits the device type.
func NewSetValueCommand(deviceType DeviceType, value float64) Command {
	action := ActionSetValue
	switch deviceType {
	case TypeFan:
		action = ActionSetSpeed
	case TypeLamp:
		action = ActionSetBrightness
	}
	return Command{
		Action:     action,
		Parameters: map[string]Value{ParameterValue: Number(value)},
	}
}
