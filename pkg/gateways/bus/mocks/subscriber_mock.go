package mocks

import (
	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/gateways/bus"
	"github.com/stretchr/testify/mock"
)

type SubscriberMock struct {
	mock.Mock
}

func (s *SubscriberMock) SubscribeToStatus(msgChan chan bus.InMsg) error {
	args := s.Called(msgChan)
	return args.Error(0)
}

func (s *SubscriberMock) SubscribeToAlarms(msgChan chan bus.InMsg) error {
	args := s.Called(msgChan)
	return args.Error(0)
}

func (s *SubscriberMock) Unsubscribe() error {
	args := s.Called()
	return args.Error(0)
}
