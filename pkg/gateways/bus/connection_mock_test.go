package bus

import (
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/mock"
)

type connectionMock struct {
	mock.Mock
	// Filled with every close notification channel registered, when set.
	connectionClosers chan chan *amqp.Error
	channelClosers    chan chan *amqp.Error
}

func (c *connectionMock) connect() error {
	args := c.Called()
	return args.Error(0)
}

func (c *connectionMock) createChannel() error {
	args := c.Called()
	return args.Error(0)
}

func (c *connectionMock) queueDeclare(name string) error {
	args := c.Called(name)
	return args.Error(0)
}

func (c *connectionMock) exchangeDeclare(name, exchangeType string) error {
	args := c.Called(name, exchangeType)
	return args.Error(0)
}

func (c *connectionMock) queueBind(queueName, key, exchangeName string, noWait bool, table amqp.Table) error {
	args := c.Called(queueName, key, exchangeName)
	return args.Error(0)
}

func (c *connectionMock) qos(prefetchCount int) error {
	args := c.Called(prefetchCount)
	return args.Error(0)
}

func (c *connectionMock) consume(queue string, consumer string, autoAck bool, exclusive bool, noLocal bool, noWait bool, table amqp.Table) (<-chan amqp.Delivery, error) {
	args := c.Called(queue, consumer, autoAck)
	return args.Get(0).(<-chan amqp.Delivery), args.Error(1)
}

func (c *connectionMock) cancel(consumer string) error {
	args := c.Called(consumer)
	return args.Error(0)
}

func (c *connectionMock) publish(exchange string, key string, mandatory bool, immediate bool, data interface{}, options *MessageOptions) error {
	args := c.Called(exchange, key, data, options)
	return args.Error(0)
}

func (c *connectionMock) isClosed() bool {
	args := c.Called()
	return args.Bool(0)
}

func (c *connectionMock) close() error {
	args := c.Called()
	return args.Error(0)
}

func (c *connectionMock) closeChannel() error {
	args := c.Called()
	return args.Error(0)
}

func (c *connectionMock) notifyClose(channel chan *amqp.Error) chan *amqp.Error {
	c.Called()
	if c.connectionClosers != nil {
		c.connectionClosers <- channel
	}
	return channel
}

func (c *connectionMock) notifyChannelClose(channel chan *amqp.Error) chan *amqp.Error {
	c.Called()
	if c.channelClosers != nil {
		c.channelClosers <- channel
	}
	return channel
}

type acknowledgerFake struct {
	acked    []uint64
	nacked   []uint64
	requeued []bool
}

func (a *acknowledgerFake) Ack(tag uint64, multiple bool) error {
	a.acked = append(a.acked, tag)
	return nil
}

func (a *acknowledgerFake) Nack(tag uint64, multiple bool, requeue bool) error {
	a.nacked = append(a.nacked, tag)
	a.requeued = append(a.requeued, requeue)
	return nil
}

func (a *acknowledgerFake) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}
