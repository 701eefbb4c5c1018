package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/entities"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotInitialized      = errors.New("dispatcher used before Init")
	ErrAllTransportsFailed = errors.New("all command transports failed")
	ErrUnknownRoute        = errors.New("unknown transport route")
)

// Transport delivers one command to one device.
type Transport interface {
	Dispatch(ctx context.Context, deviceID string, command entities.Command) error
}

// SecondaryTransport needs a one-time initialization before its first use.
type SecondaryTransport interface {
	Transport
	Init(ctx context.Context) error
}

type Route int

const (
	RoutePrimary Route = iota
	RouteSecondary
)

func (r Route) String() string {
	if r == RouteSecondary {
		return "secondary"
	}
	return "primary"
}

type Dispatcher struct {
	mu          sync.RWMutex
	primary     Transport
	secondary   SecondaryTransport
	initialized bool
	degraded    bool
	now         func() time.Time
	log         *logrus.Entry
}

func NewDispatcher(primary Transport, secondary SecondaryTransport, log *logrus.Entry) *Dispatcher {
	return &Dispatcher{primary: primary, secondary: secondary, now: time.Now, log: log}
}

// Init prepares the secondary transport. When that fails the dispatcher
// still becomes usable, primary-only, and the error is returned.
func (d *Dispatcher) Init(ctx context.Context) error {
	err := d.secondary.Init(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.initialized = true
	d.degraded = err != nil
	if err != nil {
		d.log.WithError(err).Error("secondary transport unavailable, commands go through the primary only")
		return errors.Wrap(err, "initialize secondary transport")
	}
	return nil
}

// Degraded reports whether the secondary transport is out for the session.
func (d *Dispatcher) Degraded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.degraded
}

// Dispatch sends on a single transport with no fallback.
func (d *Dispatcher) Dispatch(ctx context.Context, route Route, deviceID string, command entities.Command) error {
	initialized, degraded := d.state()
	if !initialized {
		return ErrNotInitialized
	}
	command = d.stamp(deviceID, command)
	switch route {
	case RoutePrimary:
		return d.primary.Dispatch(ctx, deviceID, command)
	case RouteSecondary:
		if degraded {
			return errors.Wrap(ErrAllTransportsFailed, "secondary transport not initialized")
		}
		return d.secondary.Dispatch(ctx, deviceID, command)
	}
	return errors.Wrapf(ErrUnknownRoute, "%d", route)
}

// Send tries the primary transport and falls back to the secondary only
// when the primary fails, so a command is never sent on both.
func (d *Dispatcher) Send(ctx context.Context, deviceID string, command entities.Command) error {
	initialized, degraded := d.state()
	if !initialized {
		return ErrNotInitialized
	}
	command = d.stamp(deviceID, command)
	log := d.log.WithFields(logrus.Fields{"deviceId": deviceID, "action": command.Action})

	primaryErr := d.primary.Dispatch(ctx, deviceID, command)
	if primaryErr == nil {
		log.Debug("command sent through primary transport")
		return nil
	}
	if degraded {
		log.WithError(primaryErr).Warn("primary transport failed and no fallback is available")
		return errors.Wrapf(ErrAllTransportsFailed, "primary: %v", primaryErr)
	}

	log.WithError(primaryErr).Info("primary transport failed, falling back to secondary")
	secondaryErr := d.secondary.Dispatch(ctx, deviceID, command)
	if secondaryErr != nil {
		log.WithError(secondaryErr).Warn("secondary transport failed")
		return errors.Wrapf(ErrAllTransportsFailed, "primary: %v; secondary: %v", primaryErr, secondaryErr)
	}
	log.Debug("command sent through secondary transport")
	return nil
}

func (d *Dispatcher) state() (initialized, degraded bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.initialized, d.degraded
}

// stamp overwrites whatever identity and time the caller supplied.
func (d *Dispatcher) stamp(deviceID string, command entities.Command) entities.Command {
	command.DeviceID = deviceID
	command.Timestamp = d.now().UTC()
	return command
}
