package reconciler

import (
	"context"

	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/entities"
	"github.com/sirupsen/logrus"
)

type StatusApplier interface {
	ApplyStatus(status entities.StatusEvent) bool
}

type AlarmHandler interface {
	OnAlarm(event entities.AlarmEvent) entities.Alarm
}

type HistoryAppender interface {
	Append(entry entities.HistoryEntry)
}

// Reconciler merges status events from every source into the registry.
// There is no ordering between sources: the last event applied wins.
type Reconciler struct {
	registry StatusApplier
	alarms   AlarmHandler
	history  HistoryAppender
	log      *logrus.Entry
}

func NewReconciler(registry StatusApplier, alarms AlarmHandler, history HistoryAppender, log *logrus.Entry) *Reconciler {
	return &Reconciler{registry: registry, alarms: alarms, history: history, log: log}
}

// OnStatusEvent is safe to call from several goroutines.
func (r *Reconciler) OnStatusEvent(status entities.StatusEvent) {
	applied := r.registry.ApplyStatus(status)
	r.history.Append(entities.HistoryEntry{
		Timestamp: status.Timestamp,
		DeviceID:  status.DeviceID,
		Event:     "Status: " + status.State.String(),
		Details:   status.FlattenProperties(),
	})
	r.log.WithFields(logrus.Fields{
		"deviceId": status.DeviceID,
		"state":    status.State,
		"applied":  applied,
	}).Debug("status reconciled")
}

// Run is the single consumer task. It applies events in arrival order until
// ctx is done or events is closed.
func (r *Reconciler) Run(ctx context.Context, events <-chan entities.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			r.apply(event)
		}
	}
}

func (r *Reconciler) apply(event entities.Event) {
	switch event.Kind {
	case entities.EventStatus:
		r.OnStatusEvent(event.Status)
	case entities.EventAlarm:
		r.alarms.OnAlarm(event.Alarm)
	default:
		r.log.WithField("kind", event.Kind).Warn("event of unknown kind dropped")
	}
}
