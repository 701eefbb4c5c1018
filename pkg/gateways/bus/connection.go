package bus

import (
	"encoding/json"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

type connection interface {
	connect() error
	createChannel() error
	queueDeclare(name string) error
	exchangeDeclare(name, exchangeType string) error
	queueBind(queueName, key, exchangeName string, noWait bool, table amqp.Table) error
	qos(prefetchCount int) error
	consume(queue string, consumer string, autoAck bool, exclusive bool, noLocal bool, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	cancel(consumer string) error
	publish(exchange string, key string, mandatory bool, immediate bool, data interface{}, options *MessageOptions) error
	isClosed() bool
	close() error
	closeChannel() error
	notifyClose(channel chan *amqp.Error) chan *amqp.Error
	notifyChannelClose(channel chan *amqp.Error) chan *amqp.Error
}

type AmqpConnection struct {
	url     string
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewAmqpConnection(url string) *AmqpConnection {
	return &AmqpConnection{url: url}
}

func (a *AmqpConnection) connect() error {
	conn, err := amqp.Dial(a.url)
	if err == nil {
		a.conn = conn
	}
	return err
}

func (a *AmqpConnection) createChannel() error {
	channel, err := a.conn.Channel()
	if err == nil {
		a.channel = channel
	}
	return err
}

func (a *AmqpConnection) queueDeclare(name string) error {
	_, err := a.channel.QueueDeclare(
		name,
		durable,
		deleteWhenUnused,
		exclusive,
		noWait,
		nil, // arguments
	)
	return err
}

func (a *AmqpConnection) exchangeDeclare(name, exchangeType string) error {
	return a.channel.ExchangeDeclare(
		name,
		exchangeType,
		durable,
		deleteWhenUnused,
		internal,
		noWait,
		nil, // arguments
	)
}

func (a *AmqpConnection) queueBind(queueName, key, exchangeName string, noWait bool, table amqp.Table) error {
	return a.channel.QueueBind(
		queueName,
		key,
		exchangeName,
		noWait,
		table,
	)
}

func (a *AmqpConnection) qos(prefetchCount int) error {
	return a.channel.Qos(prefetchCount, 0, false)
}

func (a *AmqpConnection) consume(queue string, consumer string, autoAck bool, exclusive bool, noLocal bool, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	return a.channel.Consume(queue, consumer, autoAck, exclusive, noLocal, noWait, args)
}

func (a *AmqpConnection) cancel(consumer string) error {
	return a.channel.Cancel(consumer, noWait)
}

func (a *AmqpConnection) publish(exchange string, key string, mandatory bool, immediate bool, data interface{}, options *MessageOptions) error {
	var headers amqp.Table
	var messageType string

	if options != nil {
		headers = amqp.Table{
			"Subject": options.Subject,
		}
		messageType = options.Type
	}

	body, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "encode json message")
	}

	return a.channel.Publish(
		exchange,
		key,
		mandatory,
		immediate,
		amqp.Publishing{
			Headers:      headers,
			ContentType:  contentTypeJSON,
			DeliveryMode: amqp.Persistent,
			Type:         messageType,
			Body:         body,
		},
	)
}

func (a *AmqpConnection) isClosed() bool {
	return a.conn == nil || a.conn.IsClosed()
}

func (a *AmqpConnection) close() error {
	return a.conn.Close()
}

func (a *AmqpConnection) closeChannel() error {
	return a.channel.Close()
}

func (a *AmqpConnection) notifyClose(channel chan *amqp.Error) chan *amqp.Error {
	return a.conn.NotifyClose(channel)
}

func (a *AmqpConnection) notifyChannelClose(channel chan *amqp.Error) chan *amqp.Error {
	return a.channel.NotifyClose(channel)
}
