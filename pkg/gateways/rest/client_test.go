package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/entities"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(resolver Resolver, timeout time.Duration) *Client {
	logger, _ := test.NewNullLogger()
	return NewClient(resolver, timeout, logrus.NewEntry(logger))
}

func TestFixedBaseRoot(t *testing.T) {
	assert.Equal(t, "http://localhost:5000/api/devices/fan-1", FixedBase{BaseURL: "http://localhost:5000/"}.Root("fan-1"))
	assert.Equal(t, "http://gw/api/devices/a%2Fb", FixedBase{BaseURL: "http://gw"}.Root("a/b"))
}

func TestDeviceTableFallsBackForUnresolvedDevices(t *testing.T) {
	table := NewDeviceTable([]entities.DeviceConfig{
		{ID: "fan-1", Endpoint: "http://10.0.0.5:8080/"},
		{ID: "lamp-2"},
	}, FixedBase{BaseURL: "http://localhost:5000"})

	assert.Equal(t, "http://10.0.0.5:8080", table.Root("fan-1"))
	assert.Equal(t, "http://localhost:5000/api/devices/lamp-2", table.Root("lamp-2"))
	assert.Equal(t, "http://localhost:5000/api/devices/ghost", table.Root("ghost"))

	table.Update([]entities.DeviceConfig{{ID: "lamp-2", Endpoint: "http://10.0.0.6"}})
	assert.Equal(t, "http://10.0.0.6", table.Root("lamp-2"))
	assert.Equal(t, "http://localhost:5000/api/devices/fan-1", table.Root("fan-1"))
}

func TestGetStatusDecodesEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/devices/fan-1/status", r.URL.Path)
		_, _ = io.WriteString(w, `{"DeviceId":"fan-1","DeviceType":1,"State":"Running","Timestamp":"2024-05-01T10:00:00Z","Properties":{"Speed":3.5}}`)
	}))
	defer server.Close()

	client := newTestClient(FixedBase{BaseURL: server.URL}, time.Second)
	status, err := client.GetStatus(context.Background(), "fan-1")
	require.NoError(t, err)
	assert.Equal(t, "fan-1", status.DeviceID)
	assert.Equal(t, entities.TypeFan, status.DeviceType)
	assert.Equal(t, entities.StateRunning, status.State)
	speed, _ := status.Properties["Speed"].Float64()
	assert.Equal(t, 3.5, speed)
}

func TestGetStatusWhenServerFailsReturnUnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(FixedBase{BaseURL: server.URL}, time.Second)
	_, err := client.GetStatus(context.Background(), "fan-1")
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
	assert.Contains(t, err.Error(), "gateway down")
}

func TestGetStatusTimesOut(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(FixedBase{BaseURL: server.URL}, 50*time.Millisecond)
	_, err := client.GetStatus(context.Background(), "fan-1")
	assert.Error(t, err)
}

func TestSendCommandPostsJSON(t *testing.T) {
	var received entities.Command
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/devices/lamp-2/command", r.URL.Path)
		assert.Equal(t, contentTypeJSON, r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	command := entities.Command{
		DeviceID:   "lamp-2",
		Action:     entities.ActionSetBrightness,
		Parameters: map[string]entities.Value{entities.ParameterValue: entities.Number(80)},
		Timestamp:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	client := newTestClient(FixedBase{BaseURL: server.URL}, time.Second)
	require.NoError(t, client.Dispatch(context.Background(), "lamp-2", command))

	assert.Equal(t, "lamp-2", received.DeviceID)
	assert.Equal(t, entities.ActionSetBrightness, received.Action)
	value, _ := received.Parameters[entities.ParameterValue].Float64()
	assert.Equal(t, 80.0, value)
	assert.True(t, command.Timestamp.Equal(received.Timestamp))
}

func TestSendCommandWhenRejectedReturnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	client := newTestClient(FixedBase{BaseURL: server.URL}, time.Second)
	err := client.SendCommand(context.Background(), "fan-1", entities.NewStartCommand())
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
}

func TestSendCommandWhenUnreachableReturnError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client := newTestClient(FixedBase{BaseURL: server.URL}, time.Second)
	err := client.SendCommand(context.Background(), "fan-1", entities.NewStopCommand())
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnexpectedStatus))
}

func TestGetHistoryUsesDeviceEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gateway/history", r.URL.Path)
		_, _ = io.WriteString(w, `[{"timestamp":"2024-05-01T10:00:00Z","deviceId":"fan-1","event":"Status: Running","details":"Speed=3.5"}]`)
	}))
	defer server.Close()

	table := NewDeviceTable([]entities.DeviceConfig{{ID: "fan-1", Endpoint: server.URL + "/gateway"}}, FixedBase{BaseURL: "http://unused"})
	client := newTestClient(table, time.Second)
	entries, err := client.GetHistory(context.Background(), "fan-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Status: Running", entries[0].Event)
	assert.Equal(t, "Speed=3.5", entries[0].Details)
}
