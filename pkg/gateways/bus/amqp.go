package bus

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

type consumerBinding struct {
	msgChan      chan InMsg
	queueName    string
	exchangeName string
	exchangeType string
	key          string
}

func (c consumerBinding) tag() string {
	return "device-sync-" + c.queueName
}

type AMQP struct {
	mu                sync.RWMutex
	conn              connection
	retries           uint64
	started           bool
	declaredExchanges map[string]struct{}
	consumers         []consumerBinding
	reconnectBackOff  func() backoff.BackOff
	ctx               context.Context
	cancel            context.CancelFunc
	log               *logrus.Entry
}

// NewAMQPHandler wraps conn. Start gives up after retries failed attempts.
func NewAMQPHandler(conn connection, retries uint64, log *logrus.Entry) *AMQP {
	ctx, cancel := context.WithCancel(context.Background())
	return &AMQP{
		conn:              conn,
		retries:           retries,
		declaredExchanges: make(map[string]struct{}),
		reconnectBackOff:  newReconnectionBackOff,
		ctx:               ctx,
		cancel:            cancel,
		log:               log,
	}
}

// Start connects once; later calls return immediately while connected.
func (a *AMQP) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started && !a.conn.isClosed() {
		return nil
	}

	if err := backoff.Retry(a.connect, a.startBackOff()); err != nil {
		return errors.Wrap(err, "connect to amqp broker")
	}
	a.started = true
	go a.notifyWhenClosed()
	return nil
}

// StopConsuming cancels every consumer. The broker stops delivering and the
// delivery channels close once in-flight messages are drained.
func (a *AMQP) StopConsuming() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return nil
	}
	var result error
	for _, consumer := range a.consumers {
		if err := a.conn.cancel(consumer.tag()); err != nil && result == nil {
			result = errors.Wrapf(err, "cancel consumer %s", consumer.tag())
		}
	}
	a.consumers = nil
	return result
}

func (a *AMQP) Stop() error {
	a.cancel()
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return nil
	}
	a.started = false
	if a.conn.isClosed() {
		return nil
	}
	if err := a.conn.closeChannel(); err != nil {
		a.log.WithError(err).Warn("closing amqp channel")
	}
	return a.conn.close()
}

func (a *AMQP) OnMessage(msgChan chan InMsg, queueName, exchangeName, exchangeType, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return ErrNotConnected
	}
	binding := consumerBinding{msgChan, queueName, exchangeName, exchangeType, key}
	if err := a.consume(binding); err != nil {
		return err
	}
	a.consumers = append(a.consumers, binding)
	return nil
}

func (a *AMQP) consume(binding consumerBinding) error {
	err := a.declareExchange(binding.exchangeName, binding.exchangeType)
	if err != nil {
		return errors.Wrapf(err, "declare exchange %s", binding.exchangeName)
	}

	err = a.conn.queueDeclare(binding.queueName)
	if err != nil {
		return errors.Wrapf(err, "declare queue %s", binding.queueName)
	}

	err = a.conn.queueBind(binding.queueName, binding.key, binding.exchangeName, noWait, nil)
	if err != nil {
		return errors.Wrapf(err, "bind queue %s", binding.queueName)
	}

	// One unacknowledged message at a time keeps processing ordered.
	err = a.conn.qos(prefetchCount)
	if err != nil {
		return errors.Wrap(err, "set prefetch")
	}

	deliveries, err := a.conn.consume(binding.queueName, binding.tag(), autoAck, exclusive, noLocal, noWait, nil)
	if err != nil {
		return errors.Wrapf(err, "consume %s", binding.queueName)
	}

	go convertDeliveryToInMsg(a.ctx, deliveries, binding.msgChan)
	return nil
}

func (a *AMQP) PublishPersistentMessage(exchange, exchangeType, key string, data interface{}, options *MessageOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return ErrNotConnected
	}

	if err := a.declareExchange(exchange, exchangeType); err != nil {
		return errors.Wrap(err, "declare exchange")
	}

	err := a.conn.publish(exchange, key, false, false, data, options)
	if err != nil {
		return errors.Wrap(err, "publish message")
	}

	return nil
}

// declareExchange reduces communication with the broker by declaring each
// exchange once per connection.
func (a *AMQP) declareExchange(name, exchangeType string) error {
	if _, ok := a.declaredExchanges[name]; ok {
		return nil
	}
	if err := a.conn.exchangeDeclare(name, exchangeType); err != nil {
		return err
	}
	a.declaredExchanges[name] = struct{}{}
	return nil
}

// startBackOff allows a.retries attempts after the first one. Zero means a
// single attempt.
func (a *AMQP) startBackOff() backoff.BackOff {
	if a.retries == 0 {
		return &backoff.StopBackOff{}
	}
	return backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), a.retries), a.ctx)
}

func (a *AMQP) connect() error {
	if err := a.conn.connect(); err != nil {
		a.log.WithError(err).Warn("cannot connect to amqp broker")
		return err
	}
	return a.conn.createChannel()
}

// notifyWhenClosed watches both the connection and the channel. A broker
// side close of either one reopens what was lost and restores every
// consumer; a graceful close ends the watch.
func (a *AMQP) notifyWhenClosed() {
	a.mu.RLock()
	connClosed := a.conn.notifyClose(make(chan *amqp.Error, 1))
	channelClosed := a.conn.notifyChannelClose(make(chan *amqp.Error, 1))
	a.mu.RUnlock()

	var errReason *amqp.Error
	select {
	case errReason = <-connClosed:
	case errReason = <-channelClosed:
	case <-a.ctx.Done():
		return
	}
	if errReason == nil {
		return
	}
	a.log.WithField("reason", errReason.Error()).Warn("amqp connection lost")

	reconnection := func() error {
		a.mu.Lock()
		defer a.mu.Unlock()
		if err := a.reopen(); err != nil {
			a.log.WithError(err).Warn("amqp reconnection failed, will retry")
			return err
		}
		a.declaredExchanges = make(map[string]struct{})
		for _, consumer := range a.consumers {
			if err := a.consume(consumer); err != nil {
				a.log.WithError(err).WithField("queue", consumer.queueName).Error("restoring consumer")
				return err
			}
		}
		a.log.Info("reconnection to amqp broker was successful")
		return nil
	}

	if err := backoff.Retry(reconnection, backoff.WithContext(a.reconnectBackOff(), a.ctx)); err != nil {
		return
	}
	go a.notifyWhenClosed()
}

// reopen dials again when the connection is gone, otherwise it only opens a
// new channel on the live connection.
func (a *AMQP) reopen() error {
	if a.conn.isClosed() {
		return a.connect()
	}
	return a.conn.createChannel()
}

func newReconnectionBackOff() backoff.BackOff {
	//randomized interval = RetryInterval * (random value in range [1 - RandomizationFactor, 1 + RandomizationFactor])
	reconnectionBackOff := backoff.NewExponentialBackOff()
	reconnectionBackOff.InitialInterval = 30 * time.Second
	reconnectionBackOff.MaxInterval = 5 * time.Minute
	reconnectionBackOff.Multiplier = 1.7
	reconnectionBackOff.MaxElapsedTime = 0
	return reconnectionBackOff
}

func convertDeliveryToInMsg(ctx context.Context, deliveries <-chan amqp.Delivery, outMsg chan InMsg) {
	for d := range deliveries {
		delivery := d
		msg := InMsg{
			Exchange:    delivery.Exchange,
			RoutingKey:  delivery.RoutingKey,
			Subject:     subjectOf(delivery),
			Headers:     delivery.Headers,
			Body:        delivery.Body,
			Redelivered: delivery.Redelivered,
			Ack:         func() error { return delivery.Ack(false) },
			Nack:        func(requeue bool) error { return delivery.Nack(false, requeue) },
		}
		select {
		case outMsg <- msg:
		case <-ctx.Done():
			_ = delivery.Nack(false, true)
		}
	}
}

func subjectOf(delivery amqp.Delivery) string {
	if subject, ok := delivery.Headers["Subject"].(string); ok && subject != "" {
		return subject
	}
	return delivery.RoutingKey
}
