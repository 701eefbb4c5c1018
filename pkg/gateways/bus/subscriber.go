package bus

type Subscriber interface {
	SubscribeToStatus(msgChan chan InMsg) error
	SubscribeToAlarms(msgChan chan InMsg) error
	Unsubscribe() error
}

type msgSubscriber struct {
	amqp     Messaging
	topology Topology
}

func NewMsgSubscriber(amqp Messaging, topology Topology) Subscriber {
	return &msgSubscriber{amqp: amqp, topology: topology}
}

// SubscribeToStatus consumes the status topic through the subscription queue.
func (ms *msgSubscriber) SubscribeToStatus(msgChan chan InMsg) error {
	return ms.amqp.OnMessage(msgChan, ms.topology.Subscription, ms.topology.StatusTopic, exchangeTypeTopic, bindingKeyAll)
}

func (ms *msgSubscriber) SubscribeToAlarms(msgChan chan InMsg) error {
	return ms.amqp.OnMessage(msgChan, ms.topology.AlarmQueue, ms.topology.AlarmQueue, exchangeTypeTopic, bindingKeyAll)
}

func (ms *msgSubscriber) Unsubscribe() error {
	return ms.amqp.StopConsuming()
}
