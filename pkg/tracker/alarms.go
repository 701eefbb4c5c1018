package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/notify"
	"github.com/sirupsen/logrus"
)

// DeviceNamer resolves the display name of a device.
type DeviceNamer interface {
	DeviceName(deviceID string) string
}

// Acknowledger forwards an acknowledgment to a backend.
type Acknowledger interface {
	AcknowledgeAlarm(ctx context.Context, alarmID string) error
}

// localAcknowledger keeps acknowledgments on this side only.
type localAcknowledger struct{}

func (localAcknowledger) AcknowledgeAlarm(context.Context, string) error { return nil }

type Tracker struct {
	mu      sync.Mutex
	alarms  []entities.Alarm
	history *History
	devices DeviceNamer
	backend Acknowledger
	raised  notify.Observers[entities.Alarm]
	now     func() time.Time
	log     *logrus.Entry
}

func NewTracker(devices DeviceNamer, history *History, log *logrus.Entry) *Tracker {
	return &Tracker{
		history: history,
		devices: devices,
		backend: localAcknowledger{},
		now:     time.Now,
		log:     log,
	}
}

// SetAcknowledger replaces the local-only acknowledgment behaviour.
func (t *Tracker) SetAcknowledger(backend Acknowledger) {
	t.backend = backend
}

func (t *Tracker) History() *History {
	return t.history
}

// OnAlarm records the alarm at the front of the alarm list and logs it to
// the history.
func (t *Tracker) OnAlarm(event entities.AlarmEvent) entities.Alarm {
	if event.AlarmID == "" {
		event.AlarmID = uuid.NewString()
	}
	if event.Severity == "" {
		event.Severity = entities.SeverityWarning
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = t.now().UTC()
	}
	alarm := entities.Alarm{AlarmEvent: event, DeviceName: t.devices.DeviceName(event.DeviceID)}

	t.mu.Lock()
	t.alarms = append(t.alarms, entities.Alarm{})
	copy(t.alarms[1:], t.alarms[:len(t.alarms)-1])
	t.alarms[0] = alarm
	t.mu.Unlock()

	t.history.Append(entities.HistoryEntry{
		Timestamp: event.Timestamp,
		DeviceID:  event.DeviceID,
		Event:     "ALARM: " + string(event.Severity),
		Details:   event.Message,
	})
	t.log.WithFields(logrus.Fields{
		"alarmId":  alarm.AlarmID,
		"deviceId": alarm.DeviceID,
		"severity": alarm.Severity,
	}).Info("alarm raised")

	t.raised.Notify(alarm)
	return alarm
}

// Acknowledge marks the alarm as acknowledged. Unknown ids and repeated
// acknowledgments are no-ops.
func (t *Tracker) Acknowledge(ctx context.Context, alarmID string) error {
	t.mu.Lock()
	found, changed := false, false
	for i := range t.alarms {
		if t.alarms[i].AlarmID == alarmID {
			found = true
			changed = !t.alarms[i].IsAcknowledged
			t.alarms[i].IsAcknowledged = true
			break
		}
	}
	t.mu.Unlock()

	if !found {
		t.log.WithField("alarmId", alarmID).Debug("acknowledge of unknown alarm ignored")
		return nil
	}
	if !changed {
		return nil
	}
	if err := t.backend.AcknowledgeAlarm(ctx, alarmID); err != nil {
		t.log.WithError(err).WithField("alarmId", alarmID).Warn("acknowledgment kept locally only")
	}
	return nil
}

// Alarms returns a snapshot, newest first.
func (t *Tracker) Alarms() []entities.Alarm {
	t.mu.Lock()
	defer t.mu.Unlock()
	alarms := make([]entities.Alarm, len(t.alarms))
	copy(alarms, t.alarms)
	return alarms
}

func (t *Tracker) SubscribeAlarmRaised(callback func(entities.Alarm)) notify.Handle {
	return t.raised.Subscribe(callback)
}

func (t *Tracker) UnsubscribeAlarmRaised(handle notify.Handle) bool {
	return t.raised.Unsubscribe(handle)
}
