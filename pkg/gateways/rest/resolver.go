package rest

import (
	"net/url"
	"strings"
	"sync"

	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/entities"
)

// Resolver returns the resource root of a device, the address its status,
// command and history paths hang off.
type Resolver interface {
	Root(deviceID string) string
}

// FixedBase serves every device from one API base address.
type FixedBase struct {
	BaseURL string
}

func (f FixedBase) Root(deviceID string) string {
	return strings.TrimSuffix(f.BaseURL, "/") + "/api/devices/" + url.PathEscape(deviceID)
}

// DeviceTable resolves a device through its configured endpoint and falls
// back to another resolver for devices without one.
type DeviceTable struct {
	mu        sync.RWMutex
	endpoints map[string]string
	fallback  Resolver
}

func NewDeviceTable(devices []entities.DeviceConfig, fallback Resolver) *DeviceTable {
	table := &DeviceTable{fallback: fallback}
	table.Update(devices)
	return table
}

// Update swaps the whole table.
func (t *DeviceTable) Update(devices []entities.DeviceConfig) {
	endpoints := make(map[string]string, len(devices))
	for _, device := range devices {
		if device.Endpoint != "" {
			endpoints[device.ID] = strings.TrimSuffix(device.Endpoint, "/")
		}
	}
	t.mu.Lock()
	t.endpoints = endpoints
	t.mu.Unlock()
}

func (t *DeviceTable) Root(deviceID string) string {
	t.mu.RLock()
	endpoint, ok := t.endpoints[deviceID]
	t.mu.RUnlock()
	if ok {
		return endpoint
	}
	return t.fallback.Root(deviceID)
}
