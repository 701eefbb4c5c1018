package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/gateways/bus"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	SourcePush = "push"
	SourcePoll = "poll"
)

var errMissingDeviceID = errors.New("message carries no deviceId")

// Decoder turns a message body into an event plus the key used to detect
// redeliveries. An empty key disables duplicate detection for the event.
type Decoder func(body []byte) (entities.Event, string, error)

// PushListener processes one subscription strictly in order: the next
// message is taken only after the current one has been settled.
type PushListener struct {
	name    string
	msgChan chan bus.InMsg
	events  chan<- entities.Event
	decode  Decoder
	filter  DuplicateFilter
	now     func() time.Time
	log     *logrus.Entry
}

func NewPushListener(name string, msgChan chan bus.InMsg, events chan<- entities.Event, decode Decoder, filter DuplicateFilter, log *logrus.Entry) *PushListener {
	return &PushListener{
		name:    name,
		msgChan: msgChan,
		events:  events,
		decode:  decode,
		filter:  filter,
		now:     time.Now,
		log:     log.WithField("listener", name),
	}
}

func NewStatusListener(msgChan chan bus.InMsg, events chan<- entities.Event, filter DuplicateFilter, log *logrus.Entry) *PushListener {
	return NewPushListener("status", msgChan, events, DecodeStatus, filter, log)
}

func NewAlarmListener(msgChan chan bus.InMsg, events chan<- entities.Event, filter DuplicateFilter, log *logrus.Entry) *PushListener {
	return NewPushListener("alarms", msgChan, events, DecodeAlarm, filter, log)
}

// Run consumes until ctx is done or the message channel is closed. Messages
// still buffered at shutdown are handed back to the broker.
func (l *PushListener) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.drain()
			return
		case msg, ok := <-l.msgChan:
			if !ok {
				return
			}
			l.handle(ctx, msg)
		}
	}
}

func (l *PushListener) handle(ctx context.Context, msg bus.InMsg) {
	event, key, err := l.decode(msg.Body)
	if err != nil {
		// A first failure goes back to the queue once; a redelivered one is
		// rejected so the broker can dead-letter it.
		requeue := !msg.Redelivered
		l.log.WithError(err).WithFields(logrus.Fields{
			"subject": msg.Subject,
			"requeue": requeue,
		}).Warn("malformed message abandoned")
		l.settle("nack", msg.Nack(requeue))
		return
	}

	if key != "" && l.filter.Seen(key) {
		l.log.WithField("key", key).Debug("duplicate message skipped")
		l.settle("ack", msg.Ack())
		return
	}
	l.stamp(&event)

	select {
	case l.events <- event:
	case <-ctx.Done():
		l.settle("nack", msg.Nack(true))
		return
	}

	l.settle("ack", msg.Ack())
	if key != "" {
		l.filter.Add(key)
	}
}

func (l *PushListener) stamp(event *entities.Event) {
	switch event.Kind {
	case entities.EventStatus:
		if event.Status.Timestamp.IsZero() {
			event.Status.Timestamp = l.now().UTC()
		}
	case entities.EventAlarm:
		if event.Alarm.Timestamp.IsZero() {
			event.Alarm.Timestamp = l.now().UTC()
		}
	}
}

func (l *PushListener) drain() {
	for {
		select {
		case msg, ok := <-l.msgChan:
			if !ok {
				return
			}
			l.settle("nack", msg.Nack(true))
		default:
			return
		}
	}
}

func (l *PushListener) settle(operation string, err error) {
	if err != nil {
		l.log.WithError(err).WithField("operation", operation).Warn("cannot settle message")
	}
}

// DecodeStatus decodes a StatusEvent. Redeliveries are recognised by device,
// timestamp and state; events without a timestamp are never treated as
// duplicates.
func DecodeStatus(body []byte) (entities.Event, string, error) {
	var status entities.StatusEvent
	if err := json.Unmarshal(body, &status); err != nil {
		return entities.Event{}, "", errors.Wrap(err, "decode status event")
	}
	if status.DeviceID == "" {
		return entities.Event{}, "", errMissingDeviceID
	}
	key := ""
	if !status.Timestamp.IsZero() {
		key = fmt.Sprintf("%s|%s|%s", status.DeviceID, status.Timestamp.UTC().Format(time.RFC3339Nano), status.State)
	}
	return entities.NewStatusEvent(SourcePush, status), key, nil
}

// DecodeAlarm decodes an AlarmEvent, keyed by its alarm id.
func DecodeAlarm(body []byte) (entities.Event, string, error) {
	var alarm entities.AlarmEvent
	if err := json.Unmarshal(body, &alarm); err != nil {
		return entities.Event{}, "", errors.Wrap(err, "decode alarm event")
	}
	if alarm.DeviceID == "" {
		return entities.Event{}, "", errMissingDeviceID
	}
	return entities.NewAlarmEvent(SourcePush, alarm), alarm.AlarmID, nil
}
