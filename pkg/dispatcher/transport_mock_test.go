package dispatcher

import (
	"context"

	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/entities"
	"github.com/stretchr/testify/mock"
)

type transportMock struct {
	mock.Mock
}

func (t *transportMock) Dispatch(ctx context.Context, deviceID string, command entities.Command) error {
	args := t.Called(deviceID, command)
	return args.Error(0)
}

type secondaryTransportMock struct {
	transportMock
}

func (s *secondaryTransportMock) Init(ctx context.Context) error {
	args := s.Called()
	return args.Error(0)
}
