package entities

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type StatusEvent struct {
	DeviceID   string           `json:"deviceId"`
	DeviceType DeviceType       `json:"deviceType"`
	State      DeviceState      `json:"state"`
	Timestamp  time.Time        `json:"timestamp"`
	Properties map[string]Value `json:"properties"`
}

// FlattenProperties renders properties as "key=value" pairs joined by ", ",
// ordered by key.
func (e StatusEvent) FlattenProperties() string {
	keys := make([]string, 0, len(e.Properties))
	for key := range e.Properties {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, e.Properties[key]))
	}
	return strings.Join(pairs, ", ")
}

type Severity string

const (
	SeverityInfo     Severity = "Info"
	SeverityWarning  Severity = "Warning"
	SeverityCritical Severity = "Critical"
)

type AlarmEvent struct {
	AlarmID        string    `json:"alarmId"`
	DeviceID       string    `json:"deviceId"`
	Message        string    `json:"message"`
	Severity       Severity  `json:"severity"`
	Timestamp      time.Time `json:"timestamp"`
	IsAcknowledged bool      `json:"isAcknowledged"`
}

// Alarm is an AlarmEvent as tracked for display, with the resolved device name.
type Alarm struct {
	AlarmEvent
	DeviceName string `json:"deviceName"`
}

type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"deviceId"`
	Event     string    `json:"event"`
	Details   string    `json:"details"`
}

type EventKind int

const (
	EventStatus EventKind = iota
	EventAlarm
)

// Event is what the ingestion channels hand to the single consumer task.
type Event struct {
	Kind   EventKind
	Source string
	Status StatusEvent
	Alarm  AlarmEvent
}

func NewStatusEvent(source string, status StatusEvent) Event {
	return Event{Kind: EventStatus, Source: source, Status: status}
}

func NewAlarmEvent(source string, alarm AlarmEvent) Event {
	return Event{Kind: EventAlarm, Source: source, Alarm: alarm}
}
