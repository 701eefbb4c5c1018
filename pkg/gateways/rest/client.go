package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/entities"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	statusPath  = "/status"
	commandPath = "/command"
	historyPath = "/history"

	contentTypeJSON = "application/json"
	maxErrorBody    = 512
)

var ErrUnexpectedStatus = errors.New("unexpected http status")

// Client is the request/response device transport. It is the primary
// command path and the poll channel's status source.
type Client struct {
	http     *http.Client
	resolver Resolver
	log      *logrus.Entry
}

// NewClient builds a client whose calls are bounded by timeout unless the
// caller's context ends first.
func NewClient(resolver Resolver, timeout time.Duration, log *logrus.Entry) *Client {
	return &Client{
		http:     &http.Client{Timeout: timeout},
		resolver: resolver,
		log:      log,
	}
}

// GetStatus queries the device's current status.
func (c *Client) GetStatus(ctx context.Context, deviceID string) (entities.StatusEvent, error) {
	var status entities.StatusEvent
	err := c.getJSON(ctx, c.resolver.Root(deviceID)+statusPath, &status)
	if err != nil {
		return entities.StatusEvent{}, errors.Wrapf(err, "get status of %s", deviceID)
	}
	return status, nil
}

// GetHistory returns the history the device gateway keeps for the device.
func (c *Client) GetHistory(ctx context.Context, deviceID string) ([]entities.HistoryEntry, error) {
	var entries []entities.HistoryEntry
	err := c.getJSON(ctx, c.resolver.Root(deviceID)+historyPath, &entries)
	if err != nil {
		return nil, errors.Wrapf(err, "get history of %s", deviceID)
	}
	return entries, nil
}

// SendCommand posts the command and reports success for any 2xx answer.
func (c *Client) SendCommand(ctx context.Context, deviceID string, command entities.Command) error {
	body, err := json.Marshal(command)
	if err != nil {
		return errors.Wrap(err, "encode command")
	}

	target := c.resolver.Root(deviceID) + commandPath
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build command request")
	}
	request.Header.Set("Content-Type", contentTypeJSON)

	response, err := c.http.Do(request)
	if err != nil {
		return errors.Wrapf(err, "send %s to %s", command.Action, deviceID)
	}
	defer drain(response.Body)

	if err := checkStatus(response); err != nil {
		return errors.Wrapf(err, "send %s to %s", command.Action, deviceID)
	}
	c.log.WithFields(logrus.Fields{"device": deviceID, "action": command.Action}).Debug("command accepted")
	return nil
}

// Dispatch lets the client act as a command transport.
func (c *Client) Dispatch(ctx context.Context, deviceID string, command entities.Command) error {
	return c.SendCommand(ctx, deviceID, command)
}

func (c *Client) getJSON(ctx context.Context, target string, out interface{}) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	request.Header.Set("Accept", contentTypeJSON)

	response, err := c.http.Do(request)
	if err != nil {
		return err
	}
	defer drain(response.Body)

	if err := checkStatus(response); err != nil {
		return err
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func checkStatus(response *http.Response) error {
	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return nil
	}
	text, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBody))
	return errors.Wrap(ErrUnexpectedStatus, fmt.Sprintf("%s: %s", response.Status, bytes.TrimSpace(text)))
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
