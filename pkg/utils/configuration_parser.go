package utils

import (
	"os"
	"path/filepath"

	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/entities"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type config interface {
	entities.Configuration | []entities.DeviceConfig
}

func readTextFile(filepathName string) ([]byte, error) {
	fileContent, err := os.ReadFile(filepath.Clean(filepathName))
	return fileContent, err
}

func ConfigurationParser[T config](filepathName string, configEntity T) (T, error) {
	fileContent, err := readTextFile(filepath.Clean(filepathName))
	if err != nil {
		return configEntity, err
	}

	err = yaml.Unmarshal(fileContent, &configEntity)
	return configEntity, err
}

// LoadConfiguration reads the YAML file, fills in defaults and then applies
// environment overrides.
func LoadConfiguration(filepathName string) (entities.Configuration, error) {
	conf, err := ConfigurationParser(filepathName, entities.Configuration{})
	if err != nil {
		return conf, errors.Wrapf(err, "parse configuration %s", filepathName)
	}
	ApplyDefaults(&conf)
	ApplyEnvironment(&conf)
	if err := Validate(conf); err != nil {
		return conf, err
	}
	return conf, nil
}

// Validate rejects device tables that the registry could not hold.
func Validate(conf entities.Configuration) error {
	seen := make(map[string]struct{}, len(conf.Devices))
	for i, device := range conf.Devices {
		if device.ID == "" {
			return errors.Errorf("device %d has no deviceId", i)
		}
		if _, ok := seen[device.ID]; ok {
			return errors.Errorf("device %s is configured twice", device.ID)
		}
		seen[device.ID] = struct{}{}
	}
	if conf.Broker.Kind != entities.BrokerAMQP && conf.Broker.Kind != entities.BrokerMQTT {
		return errors.Errorf("unknown broker kind %q", conf.Broker.Kind)
	}
	return nil
}
