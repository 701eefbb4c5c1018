package reconciler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/registry"
	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/tracker"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	registry   *registry.Registry
	tracker    *tracker.Tracker
	history    *tracker.History
	reconciler *Reconciler
}

func setUp() fixture {
	logger, _ := test.NewNullLogger()
	log := logrus.NewEntry(logger)
	devices := registry.NewRegistry([]entities.DeviceConfig{
		{ID: "fan-1", Name: "Hall fan", Type: entities.TypeFan},
		{ID: "lamp-2", Name: "Desk lamp", Type: entities.TypeLamp},
	}, log)
	history := tracker.NewHistory(tracker.DefaultHistoryCapacity)
	alarms := tracker.NewTracker(devices, history, log)
	return fixture{
		registry:   devices,
		tracker:    alarms,
		history:    history,
		reconciler: NewReconciler(devices, alarms, history, log),
	}
}

func runningFan(speed float64) entities.StatusEvent {
	return entities.StatusEvent{
		DeviceID:   "fan-1",
		DeviceType: entities.TypeFan,
		State:      entities.StateRunning,
		Timestamp:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Properties: map[string]entities.Value{"Speed": entities.Number(speed), "Mode": entities.String("eco")},
	}
}

func TestOnStatusEventUpdatesRegistryAndHistory(t *testing.T) {
	f := setUp()
	f.reconciler.OnStatusEvent(runningFan(3.5))

	device, err := f.registry.GetDevice("fan-1")
	require.NoError(t, err)
	assert.Equal(t, "Speed: 3.5x", device.StatusText())

	entries := f.history.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Status: Running", entries[0].Event)
	assert.Equal(t, "Mode=eco, Speed=3.5", entries[0].Details)
	assert.Equal(t, "fan-1", entries[0].DeviceID)
}

func TestOnStatusEventIsSafeFromSeveralGoroutines(t *testing.T) {
	f := setUp()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 60; j++ {
				f.reconciler.OnStatusEvent(runningFan(float64(j)))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, f.history.Len())
}

func TestHistoryCapAcrossStatusAndAlarms(t *testing.T) {
	f := setUp()
	for i := 0; i < 60; i++ {
		f.reconciler.OnStatusEvent(runningFan(1))
		f.tracker.OnAlarm(entities.AlarmEvent{AlarmID: "a", DeviceID: "lamp-2", Message: "bulb", Severity: entities.SeverityInfo})
	}
	f.reconciler.OnStatusEvent(runningFan(2))

	entries := f.history.Entries()
	assert.Len(t, entries, 100)
	assert.Equal(t, "Status: Running", entries[0].Event)
	assert.Equal(t, "Mode=eco, Speed=2", entries[0].Details)
}

func TestRunAppliesEventsFromTheChannel(t *testing.T) {
	f := setUp()
	events := make(chan entities.Event)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.reconciler.Run(ctx, events)
		close(done)
	}()

	events <- entities.NewStatusEvent("push", runningFan(1))
	events <- entities.NewStatusEvent("poll", entities.StatusEvent{DeviceID: "fan-1", State: entities.StateStopped})
	events <- entities.NewAlarmEvent("push", entities.AlarmEvent{AlarmID: "a-1", DeviceID: "fan-1", Message: "vibration"})
	cancel()
	<-done

	device, _ := f.registry.GetDevice("fan-1")
	assert.Equal(t, entities.StateStopped, device.State)
	require.Len(t, f.tracker.Alarms(), 1)
	assert.Equal(t, "Hall fan", f.tracker.Alarms()[0].DeviceName)
	assert.Equal(t, 3, f.history.Len())
}

func TestRunStopsWhenChannelCloses(t *testing.T) {
	f := setUp()
	events := make(chan entities.Event, 1)
	events <- entities.NewStatusEvent("poll", runningFan(1))
	close(events)
	f.reconciler.Run(context.Background(), events)
	assert.Equal(t, 1, f.history.Len())
}
