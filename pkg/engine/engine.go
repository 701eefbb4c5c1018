package engine

import (
	"context"
	"sync"

	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/dispatcher"
	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/gateways/bus"
	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/gateways/rest"
	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/ingestion"
	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/logging"
	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/reconciler"
	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/registry"
	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/tracker"
	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/utils"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

var (
	ErrBrokerUnavailable = errors.New("message broker unavailable")
	ErrAlreadyStarted    = errors.New("engine already started")
	ErrUnknownBroker     = errors.New("unknown broker kind")
)

// Engine wires the registry, both ingestion channels, the reconciler, the
// alarm tracker and the command dispatcher into one session.
type Engine struct {
	conf       entities.Configuration
	configPath string
	files      filesystemManagement
	log        *logrus.Entry
	logs       *logging.Logrus

	messaging  bus.Messaging
	subscriber bus.Subscriber
	registry   *registry.Registry
	history    *tracker.History
	tracker    *tracker.Tracker
	reconciler *reconciler.Reconciler
	endpoints  *rest.DeviceTable
	client     *rest.Client
	dispatcher *dispatcher.Dispatcher

	statusFilter ingestion.DuplicateFilter
	alarmFilter  ingestion.DuplicateFilter

	mu        sync.Mutex
	running   bool
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewEngine builds an engine for conf. configPath is the file Refresh
// re-reads the device table from.
func NewEngine(conf entities.Configuration, configPath string, logs *logging.Logrus) (*Engine, error) {
	messaging, err := newMessaging(conf.Broker, logs)
	if err != nil {
		return nil, err
	}
	return newEngine(conf, configPath, logs, messaging, &fileManagement{}), nil
}

func newMessaging(conf entities.BrokerConfig, logs *logging.Logrus) (bus.Messaging, error) {
	switch conf.Kind {
	case entities.BrokerAMQP:
		return bus.NewAMQPHandler(bus.NewAmqpConnection(conf.URL), conf.Retries(), logs.Get("amqp")), nil
	case entities.BrokerMQTT:
		return bus.NewMQTT(conf.URL, logs.Get("mqtt")), nil
	}
	return nil, errors.Wrap(ErrUnknownBroker, conf.Kind)
}

func newEngine(conf entities.Configuration, configPath string, logs *logging.Logrus, messaging bus.Messaging, files filesystemManagement) *Engine {
	topology := bus.Topology{
		StatusTopic:  conf.Broker.StatusTopic,
		Subscription: conf.Broker.Subscription,
		AlarmQueue:   conf.Broker.AlarmQueue,
		CommandTopic: conf.Broker.CommandTopic,
	}

	devices := registry.NewRegistry(conf.Devices, logs.Get("registry"))
	history := tracker.NewHistory(conf.History.Capacity)
	alarms := tracker.NewTracker(devices, history, logs.Get("alarms"))
	endpoints := rest.NewDeviceTable(conf.Devices, rest.FixedBase{BaseURL: conf.Rest.BaseURL})
	client := rest.NewClient(endpoints, conf.Rest.Timeout, logs.Get("rest"))
	sender := bus.NewCommandSender(messaging, bus.NewMsgPublisher(messaging, topology))

	return &Engine{
		conf:         conf,
		configPath:   configPath,
		files:        files,
		log:          logs.Get("engine"),
		logs:         logs,
		messaging:    messaging,
		subscriber:   bus.NewMsgSubscriber(messaging, topology),
		registry:     devices,
		history:      history,
		tracker:      alarms,
		reconciler:   reconciler.NewReconciler(devices, alarms, history, logs.Get("reconciler")),
		endpoints:    endpoints,
		client:       client,
		dispatcher:   dispatcher.NewDispatcher(client, sender, logs.Get("dispatcher")),
		statusFilter: ingestion.NewDuplicateFilter(conf.Broker.DuplicationFilter),
		alarmFilter:  ingestion.NewDuplicateFilter(conf.Broker.DuplicationFilter),
	}
}

// Start launches the session. Without a broker the engine keeps running on
// polling and the primary transport, and Start reports ErrBrokerUnavailable.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true

	events := make(chan entities.Event)
	e.spawn(func() { e.reconciler.Run(runCtx, events) })

	poller := ingestion.NewPoller(e.client, e.registry, events, e.conf.Poll.Interval, e.conf.Poll.Timeout, e.logs.Get("poll"))
	e.spawn(func() { poller.Run(runCtx) })

	if err := e.dispatcher.Init(runCtx); err != nil {
		return errors.Wrap(ErrBrokerUnavailable, err.Error())
	}
	if err := e.subscribe(runCtx, events); err != nil {
		e.log.WithError(err).Error("push channel unavailable, relying on polling")
		return errors.Wrap(ErrBrokerUnavailable, err.Error())
	}
	e.connected = true
	e.log.WithField("devices", len(e.registry.ListDevices())).Info("device synchronization started")
	return nil
}

// subscribe starts both push listeners. A failure on either subscription
// stops whichever listener already runs, so push is all or nothing.
func (e *Engine) subscribe(ctx context.Context, events chan<- entities.Event) (err error) {
	pushCtx, stopPush := context.WithCancel(ctx)
	defer func() {
		if err == nil {
			return
		}
		stopPush()
		if unsubscribeErr := e.subscriber.Unsubscribe(); unsubscribeErr != nil {
			e.log.WithError(unsubscribeErr).Warn("cannot stop consumers")
		}
	}()

	statusMsgs := make(chan bus.InMsg)
	if err = e.subscriber.SubscribeToStatus(statusMsgs); err != nil {
		return errors.Wrap(err, "subscribe to status")
	}
	status := ingestion.NewStatusListener(statusMsgs, events, e.statusFilter, e.logs.Get("push"))
	e.spawn(func() { status.Run(pushCtx) })

	alarmMsgs := make(chan bus.InMsg)
	if err = e.subscriber.SubscribeToAlarms(alarmMsgs); err != nil {
		return errors.Wrap(err, "subscribe to alarms")
	}
	alarms := ingestion.NewAlarmListener(alarmMsgs, events, e.alarmFilter, e.logs.Get("push"))
	e.spawn(func() { alarms.Run(pushCtx) })
	return nil
}

func (e *Engine) spawn(task func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		task()
	}()
}

// InitCommands prepares the command path alone, for one-shot senders that
// never Start the engine.
func (e *Engine) InitCommands(ctx context.Context) error {
	return e.dispatcher.Init(ctx)
}

// Close stops the consumers first so no new message is taken, then waits for
// every task before closing the broker connection.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		if err := e.subscriber.Unsubscribe(); err != nil {
			e.log.WithError(err).Warn("cannot stop consumers")
		}
		e.cancel()
		e.wg.Wait()
		e.running = false
		e.connected = false
	}
	if err := e.messaging.Stop(); err != nil {
		return errors.Wrap(err, "close broker connection")
	}
	e.log.Info("device synchronization stopped")
	return nil
}

// Send delivers a command, primary transport first.
func (e *Engine) Send(ctx context.Context, deviceID string, command entities.Command) error {
	return e.dispatcher.Send(ctx, deviceID, command)
}

func (e *Engine) Acknowledge(ctx context.Context, alarmID string) error {
	return e.tracker.Acknowledge(ctx, alarmID)
}

// Refresh re-reads the device table and replaces every device with a fresh
// Offline record.
func (e *Engine) Refresh() error {
	data, err := e.files.readDevicesConfigFile(e.configPath)
	if err != nil {
		return errors.Wrapf(err, "read %s", e.configPath)
	}
	var conf entities.Configuration
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return errors.Wrapf(err, "parse %s", e.configPath)
	}
	utils.ApplyDefaults(&conf)
	utils.ApplyEnvironment(&conf)
	if err := utils.Validate(conf); err != nil {
		return err
	}

	e.endpoints.Update(conf.Devices)
	e.registry.Replace(conf.Devices)
	e.log.WithField("devices", len(conf.Devices)).Info("device table refreshed")
	return nil
}

// DeviceHistory asks the device gateway for the device's own history.
func (e *Engine) DeviceHistory(ctx context.Context, deviceID string) ([]entities.HistoryEntry, error) {
	return e.client.GetHistory(ctx, deviceID)
}

// Connected reports whether the push channel is consuming.
func (e *Engine) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}

// Degraded reports whether commands go through the primary transport only.
func (e *Engine) Degraded() bool {
	return e.dispatcher.Degraded()
}

func (e *Engine) Devices() []entities.Device {
	return e.registry.ListDevices()
}

func (e *Engine) Alarms() []entities.Alarm {
	return e.tracker.Alarms()
}

func (e *Engine) History() []entities.HistoryEntry {
	return e.history.Entries()
}

func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

func (e *Engine) Tracker() *tracker.Tracker {
	return e.tracker
}
