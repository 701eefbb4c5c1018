package registry

import (
	"sync"

	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/notify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var ErrDeviceNotFound = errors.New("device not found")

// displayKeys are checked in order to derive a device's current value.
var displayKeys = []string{"Speed", "Temperature", "Brightness"}

// Registry owns the session's device records. Every read returns a copy, so
// callers only ever see fully applied updates.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*entities.Device
	order   []string
	changed notify.Observers[entities.Device]
	log     *logrus.Entry
}

func NewRegistry(devices []entities.DeviceConfig, log *logrus.Entry) *Registry {
	r := &Registry{log: log}
	r.load(devices)
	return r
}

func (r *Registry) load(devices []entities.DeviceConfig) {
	r.devices = make(map[string]*entities.Device, len(devices))
	r.order = make([]string, 0, len(devices))
	for _, conf := range devices {
		if _, ok := r.devices[conf.ID]; ok {
			continue
		}
		device := entities.NewDevice(conf)
		r.devices[conf.ID] = &device
		r.order = append(r.order, conf.ID)
	}
}

// ListDevices returns the devices in configuration order.
func (r *Registry) ListDevices() []entities.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	devices := make([]entities.Device, 0, len(r.order))
	for _, id := range r.order {
		devices = append(devices, r.devices[id].Copy())
	}
	return devices
}

func (r *Registry) GetDevice(deviceID string) (entities.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	device, ok := r.devices[deviceID]
	if !ok {
		return entities.Device{}, errors.Wrap(ErrDeviceNotFound, deviceID)
	}
	return device.Copy(), nil
}

// DeviceName resolves a display name, falling back to the id itself.
func (r *Registry) DeviceName(deviceID string) string {
	device, err := r.GetDevice(deviceID)
	if err != nil || device.Name == "" {
		return deviceID
	}
	return device.Name
}

// ApplyStatus overwrites the device's state unconditionally. It reports
// false, and changes nothing, when the device is not registered. Observers
// have been notified by the time it returns.
func (r *Registry) ApplyStatus(status entities.StatusEvent) bool {
	r.mu.Lock()
	device, ok := r.devices[status.DeviceID]
	if !ok {
		r.mu.Unlock()
		r.log.WithField("deviceId", status.DeviceID).Debug("status for unregistered device ignored")
		return false
	}

	device.State = status.State
	device.LastSeen = status.Timestamp
	device.Properties = make(map[string]entities.Value, len(status.Properties))
	for key, value := range status.Properties {
		device.Properties[key] = value
	}
	if value, ok := currentValue(status.Properties); ok {
		device.CurrentValue = value
	}
	updated := device.Copy()
	r.mu.Unlock()

	r.changed.Notify(updated)
	return true
}

// Replace swaps the whole device table, as a manual refresh does. Every
// device starts over as Offline.
func (r *Registry) Replace(devices []entities.DeviceConfig) {
	r.mu.Lock()
	r.load(devices)
	r.mu.Unlock()
	r.log.WithField("devices", len(devices)).Info("device table replaced")

	for _, device := range r.ListDevices() {
		r.changed.Notify(device)
	}
}

func (r *Registry) SubscribeDeviceChanged(callback func(entities.Device)) notify.Handle {
	return r.changed.Subscribe(callback)
}

func (r *Registry) UnsubscribeDeviceChanged(handle notify.Handle) bool {
	return r.changed.Unsubscribe(handle)
}

// currentValue returns the first numeric property among displayKeys.
func currentValue(properties map[string]entities.Value) (float64, bool) {
	for _, key := range displayKeys {
		value, ok := properties[key]
		if !ok {
			continue
		}
		if number, ok := value.Float64(); ok {
			return number, true
		}
	}
	return 0, false
}
