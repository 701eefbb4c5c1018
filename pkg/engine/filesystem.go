package engine

import (
	"os"
	"path/filepath"
)

type filesystemManagement interface {
	readDevicesConfigFile(filepath string) ([]byte, error)
}

type fileManagement struct{}

func (fs *fileManagement) readDevicesConfigFile(filepathName string) ([]byte, error) {
	return os.ReadFile(filepath.Clean(filepathName))
}
