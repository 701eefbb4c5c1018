package bus

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	pmqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	mqttQoS            = 1
	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 5 * time.Second
	mqttQuiesce        = 250
)

type mqttSubscription struct {
	topic    string
	exchange string
	handler  pmqtt.MessageHandler
}

// MQTT maps the exchange/routing-key model onto topics: a message for
// exchange E and key K is published on "E/K".
type MQTT struct {
	mu            sync.Mutex
	client        pmqtt.Client
	subscriptions []mqttSubscription
	ctx           context.Context
	cancel        context.CancelFunc
	log           *logrus.Entry
}

func NewMQTT(url string, log *logrus.Entry) *MQTT {
	ctx, cancel := context.WithCancel(context.Background())
	m := &MQTT{ctx: ctx, cancel: cancel, log: log}
	opts := pmqtt.NewClientOptions().
		AddBroker(url).
		SetClientID("device-sync-" + uuid.NewString()).
		SetCleanSession(false).
		SetAutoReconnect(true).
		SetOrderMatters(true).
		SetAutoAckDisabled(true).
		SetConnectionLostHandler(func(client pmqtt.Client, err error) {
			log.WithError(err).Warn("mqtt connection lost")
		}).
		SetOnConnectHandler(m.onConnect)
	m.client = pmqtt.NewClient(opts)
	return m
}

func (m *MQTT) Start() error {
	if m.client.IsConnected() {
		return nil
	}
	token := m.client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return errors.New("timeout connecting to mqtt broker")
	}
	return errors.Wrap(token.Error(), "connect to mqtt broker")
}

// onConnect restores subscriptions after an automatic reconnection.
func (m *MQTT) onConnect(client pmqtt.Client) {
	m.mu.Lock()
	subscriptions := append([]mqttSubscription(nil), m.subscriptions...)
	m.mu.Unlock()
	for _, s := range subscriptions {
		client.Subscribe(s.topic, mqttQoS, s.handler)
	}
	m.log.WithField("subscriptions", len(subscriptions)).Info("connected to mqtt broker")
}

func (m *MQTT) StopConsuming() error {
	m.mu.Lock()
	topics := make([]string, 0, len(m.subscriptions))
	for _, s := range m.subscriptions {
		topics = append(topics, s.topic)
	}
	m.subscriptions = nil
	m.mu.Unlock()

	if len(topics) == 0 || !m.client.IsConnected() {
		return nil
	}
	token := m.client.Unsubscribe(topics...)
	token.WaitTimeout(mqttPublishTimeout)
	return errors.Wrap(token.Error(), "unsubscribe")
}

func (m *MQTT) Stop() error {
	m.cancel()
	if m.client.IsConnected() {
		m.client.Disconnect(mqttQuiesce)
	}
	return nil
}

// OnMessage subscribes to the topic for exchangeName and key. queueName and
// exchangeType have no MQTT counterpart.
func (m *MQTT) OnMessage(msgChan chan InMsg, queueName, exchangeName, exchangeType, key string) error {
	if !m.client.IsConnected() {
		return ErrNotConnected
	}
	subscription := mqttSubscription{
		topic:    mqttTopic(exchangeName, key),
		exchange: exchangeName,
	}
	subscription.handler = func(client pmqtt.Client, message pmqtt.Message) {
		select {
		case msgChan <- convertMessageToInMsg(subscription.exchange, message):
		case <-m.ctx.Done():
		}
	}

	token := m.client.Subscribe(subscription.topic, mqttQoS, subscription.handler)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return errors.Errorf("timeout subscribing to %s", subscription.topic)
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(err, "subscribe to %s", subscription.topic)
	}

	m.mu.Lock()
	m.subscriptions = append(m.subscriptions, subscription)
	m.mu.Unlock()
	return nil
}

func (m *MQTT) PublishPersistentMessage(exchange, exchangeType, key string, data interface{}, options *MessageOptions) error {
	if !m.client.IsConnected() {
		return ErrNotConnected
	}
	body, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "encode message")
	}
	topic := mqttTopic(exchange, key)
	token := m.client.Publish(topic, mqttQoS, false, body)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return errors.Errorf("timeout publishing on %s", topic)
	}
	return errors.Wrapf(token.Error(), "publish on %s", topic)
}

func mqttTopic(exchange, key string) string {
	if key == "" {
		return exchange
	}
	return strings.TrimSuffix(exchange, "/") + "/" + key
}

// convertMessageToInMsg settles through the MQTT acknowledgment. A nack
// leaves the message unacknowledged so the broker redelivers it when the
// session resumes.
func convertMessageToInMsg(exchange string, message pmqtt.Message) InMsg {
	topic := message.Topic()
	subject := topic
	if i := strings.LastIndex(topic, "/"); i >= 0 {
		subject = topic[i+1:]
	}
	return InMsg{
		Exchange:    exchange,
		RoutingKey:  topic,
		Subject:     subject,
		Body:        message.Payload(),
		Redelivered: message.Duplicate(),
		Ack: func() error {
			message.Ack()
			return nil
		},
		Nack: func(bool) error { return nil },
	}
}
