package mocks

import (
	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/entities"
	"github.com/stretchr/testify/mock"
)

type PublisherMock struct {
	mock.Mock
}

func (p *PublisherMock) PublishCommand(command entities.Command) error {
	args := p.Called(command)
	return args.Error(0)
}
