package ingestion

import (
	"context"
	"sync"
	"time"

	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/entities"
	"github.com/sirupsen/logrus"
)

// StatusSource answers point queries for a device's status.
type StatusSource interface {
	GetStatus(ctx context.Context, deviceID string) (entities.StatusEvent, error)
}

// DeviceLister returns the devices known at the time of the call.
type DeviceLister interface {
	ListDevices() []entities.Device
}

// Poller queries every known device on a fixed interval. Devices are
// queried concurrently and a failing device only loses its own tick.
type Poller struct {
	source   StatusSource
	devices  DeviceLister
	events   chan<- entities.Event
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	log      *logrus.Entry
}

func NewPoller(source StatusSource, devices DeviceLister, events chan<- entities.Event, interval, timeout time.Duration, log *logrus.Entry) *Poller {
	return &Poller{
		source:   source,
		devices:  devices,
		events:   events,
		interval: interval,
		timeout:  timeout,
		now:      time.Now,
		log:      log,
	}
}

// Run ticks until ctx is done. A tick in progress finishes its queries,
// bounded by the per-call timeout, before Run returns.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick runs one polling round and returns once every query has finished.
func (p *Poller) Tick(ctx context.Context) {
	var wg sync.WaitGroup
	for _, device := range p.devices.ListDevices() {
		wg.Add(1)
		go func(deviceID string) {
			defer wg.Done()
			p.poll(ctx, deviceID)
		}(device.ID)
	}
	wg.Wait()
}

func (p *Poller) poll(ctx context.Context, deviceID string) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	status, err := p.source.GetStatus(callCtx, deviceID)
	if err != nil {
		if ctx.Err() == nil {
			p.log.WithError(err).WithField("deviceId", deviceID).Warn("poll failed, device skipped for this tick")
		}
		return
	}
	if status.DeviceID == "" {
		status.DeviceID = deviceID
	}
	if status.Timestamp.IsZero() {
		status.Timestamp = p.now().UTC()
	}

	select {
	case p.events <- entities.NewStatusEvent(SourcePoll, status):
	case <-ctx.Done():
	}
}
