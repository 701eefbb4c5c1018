package engine

import "github.com/stretchr/testify/mock"

type fileManagementMock struct {
	mock.Mock
}

func (fm *fileManagementMock) readDevicesConfigFile(filepath string) ([]byte, error) {
	args := fm.Called(filepath)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}
