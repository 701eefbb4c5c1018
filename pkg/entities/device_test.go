package entities

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createFakeDevice(deviceType DeviceType) Device {
	return NewDevice(DeviceConfig{ID: "fan-1", Name: "Hall fan", Type: deviceType, Endpoint: "http://fan-1"})
}

func TestNewDeviceStartsOfflineAndUnseen(t *testing.T) {
	device := createFakeDevice(TypeFan)
	assert.Equal(t, StateOffline, device.State)
	assert.True(t, device.LastSeen.IsZero())
	assert.NotNil(t, device.Properties)
}

func TestStatusTextPerDeviceType(t *testing.T) {
	device := createFakeDevice(TypeFan)
	device.CurrentValue = 3.5
	assert.Equal(t, "Speed: 3.5x", device.StatusText())

	device.Type = TypeTemperatureSensor
	device.CurrentValue = 21
	assert.Equal(t, "Temp: 21.0°C", device.StatusText())

	device.Type = TypeLamp
	device.CurrentValue = 80
	assert.Equal(t, "Brightness: 80%", device.StatusText())

	device.Type = TypeUnknown
	device.State = StateRunning
	assert.Equal(t, "Running", device.StatusText())
}

func TestCommandAvailabilityFollowsState(t *testing.T) {
	device := createFakeDevice(TypeFan)
	assert.False(t, device.CanStart())
	assert.False(t, device.CanStop())

	device.State = StateOnline
	assert.True(t, device.CanStart())
	assert.False(t, device.CanSetValue())

	device.State = StateRunning
	assert.False(t, device.CanStart())
	assert.True(t, device.CanStop())
	assert.True(t, device.CanSetValue())
}

func TestCopyDoesNotShareProperties(t *testing.T) {
	device := createFakeDevice(TypeFan)
	device.Properties["Speed"] = Number(1)
	copied := device.Copy()
	copied.Properties["Speed"] = Number(2)
	value, _ := device.Properties["Speed"].Float64()
	assert.Equal(t, 1.0, value)
}

func TestDeviceStateDecodesNameAndOrdinal(t *testing.T) {
	var state DeviceState
	require.NoError(t, json.Unmarshal([]byte(`"Running"`), &state))
	assert.Equal(t, StateRunning, state)
	require.NoError(t, json.Unmarshal([]byte(`4`), &state))
	assert.Equal(t, StateError, state)
	assert.Error(t, json.Unmarshal([]byte(`"Exploded"`), &state))

	encoded, err := json.Marshal(StateAlarm)
	require.NoError(t, err)
	assert.Equal(t, `"Alarm"`, string(encoded))
}

func TestDeviceTypeFallsBackToUnknown(t *testing.T) {
	assert.Equal(t, TypeLamp, ParseDeviceType("Lamp"))
	assert.Equal(t, TypeFan, ParseDeviceType("1"))
	assert.Equal(t, TypeUnknown, ParseDeviceType("Toaster"))
}

func TestStatusEventDecodesPascalCasePayload(t *testing.T) {
	payload := `{"DeviceId":"fan-1","DeviceType":1,"State":2,"Timestamp":"2024-05-01T10:00:00Z","Properties":{"Speed":3.5,"Mode":"eco","Boost":true}}`
	var event StatusEvent
	require.NoError(t, json.Unmarshal([]byte(payload), &event))
	assert.Equal(t, "fan-1", event.DeviceID)
	assert.Equal(t, TypeFan, event.DeviceType)
	assert.Equal(t, StateRunning, event.State)
	assert.Equal(t, "Boost=true, Mode=eco, Speed=3.5", event.FlattenProperties())
}
