package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type messageFake struct {
	topic   string
	payload []byte
	acked   int
}

func (m *messageFake) Duplicate() bool   { return false }
func (m *messageFake) Qos() byte         { return mqttQoS }
func (m *messageFake) Retained() bool    { return false }
func (m *messageFake) Topic() string     { return m.topic }
func (m *messageFake) MessageID() uint16 { return 1 }
func (m *messageFake) Payload() []byte   { return m.payload }
func (m *messageFake) Ack()              { m.acked++ }

func TestMqttTopic(t *testing.T) {
	assert.Equal(t, "device.commands/fan-1", mqttTopic("device.commands", "fan-1"))
	assert.Equal(t, "devices/status/#", mqttTopic("devices/status/", bindingKeyAll))
	assert.Equal(t, "alarms", mqttTopic("alarms", ""))
}

func TestConvertMessageToInMsg(t *testing.T) {
	message := &messageFake{topic: "device.status/fan-1", payload: []byte(`{"deviceId":"fan-1"}`)}

	msg := convertMessageToInMsg("device.status", message)
	assert.Equal(t, "device.status", msg.Exchange)
	assert.Equal(t, "device.status/fan-1", msg.RoutingKey)
	assert.Equal(t, "fan-1", msg.Subject)
	assert.Equal(t, message.payload, msg.Body)

	assert.Nil(t, msg.Nack(true))
	assert.Equal(t, 0, message.acked)
	assert.Nil(t, msg.Ack())
	assert.Equal(t, 1, message.acked)
}
