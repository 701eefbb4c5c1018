package bus

import (
	"context"
	"sync"

	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/entities"
	"github.com/pkg/errors"
)

type Publisher interface {
	PublishCommand(command entities.Command) error
}

type msgPublisher struct {
	amqp     Messaging
	exchange string
}

func NewMsgPublisher(amqp Messaging, topology Topology) Publisher {
	return &msgPublisher{amqp: amqp, exchange: topology.CommandTopic}
}

// PublishCommand routes the command by device id, which is also its subject.
func (mp *msgPublisher) PublishCommand(command entities.Command) error {
	options := MessageOptions{
		Subject: command.DeviceID,
		Type:    messageTypeCmd,
	}

	err := mp.amqp.PublishPersistentMessage(mp.exchange, exchangeTypeTopic, command.DeviceID, command, &options)
	if err != nil {
		return errors.Wrapf(err, "publish %s command for %s", command.Action, command.DeviceID)
	}

	return nil
}

// CommandSender is the fire-and-forget command transport. It needs Init
// before the first Dispatch.
type CommandSender struct {
	mu        sync.RWMutex
	amqp      Messaging
	publisher Publisher
	ready     bool
}

func NewCommandSender(amqp Messaging, publisher Publisher) *CommandSender {
	return &CommandSender{amqp: amqp, publisher: publisher}
}

func (s *CommandSender) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.amqp.Start(); err != nil {
		return errors.Wrap(err, "open command channel")
	}
	s.mu.Lock()
	s.ready = true
	s.mu.Unlock()
	return nil
}

func (s *CommandSender) Dispatch(ctx context.Context, deviceID string, command entities.Command) error {
	s.mu.RLock()
	ready := s.ready
	s.mu.RUnlock()
	if !ready {
		return ErrNotConnected
	}
	command.DeviceID = deviceID
	return s.publisher.PublishCommand(command)
}
