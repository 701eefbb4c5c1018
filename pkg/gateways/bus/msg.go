package bus

import "github.com/pkg/errors"

const (
	exchangeTypeTopic = "topic"
	bindingKeyAll     = "#"

	durable          = true
	deleteWhenUnused = false
	exclusive        = false
	noWait           = false
	internal         = false
	autoAck          = false
	noLocal          = false
	prefetchCount    = 1

	contentTypeJSON = "application/json"
	messageTypeCmd  = "command"
)

var ErrNotConnected = errors.New("broker not connected")

// Messaging is a broker connection able to consume with manual
// acknowledgment and to publish persistent messages.
type Messaging interface {
	Start() error
	StopConsuming() error
	Stop() error
	OnMessage(msgChan chan InMsg, queueName, exchangeName, exchangeType, key string) error
	PublishPersistentMessage(exchange, exchangeType, key string, data interface{}, options *MessageOptions) error
}

// InMsg is one inbound message. Exactly one of Ack or Nack must be called
// to settle it.
type InMsg struct {
	Exchange    string
	RoutingKey  string
	Subject     string
	Headers     map[string]interface{}
	Body        []byte
	Redelivered bool
	Ack         func() error
	Nack        func(requeue bool) error
}

// MessageOptions represents the message publishing options
type MessageOptions struct {
	Subject string
	Type    string
}

// Topology names the broker resources used for device traffic.
type Topology struct {
	StatusTopic  string
	Subscription string
	AlarmQueue   string
	CommandTopic string
}
