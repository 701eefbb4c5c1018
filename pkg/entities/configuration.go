package entities

import "time"

const (
	BrokerAMQP = "amqp"
	BrokerMQTT = "mqtt"
)

type Configuration struct {
	Log     LogConfig      `yaml:"log"`
	Broker  BrokerConfig   `yaml:"broker"`
	Rest    RestConfig     `yaml:"rest"`
	Poll    PollConfig     `yaml:"poll"`
	History HistoryConfig  `yaml:"history"`
	Devices []DeviceConfig `yaml:"devices"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type BrokerConfig struct {
	Kind              string                  `yaml:"kind"`
	URL               string                  `yaml:"url"`
	StatusTopic       string                  `yaml:"statusTopic"`
	CommandTopic      string                  `yaml:"commandTopic"`
	AlarmQueue        string                  `yaml:"alarmQueue"`
	Subscription      string                  `yaml:"subscription"`
	ConnectRetries    *uint64                 `yaml:"connectRetries"`
	DuplicationFilter DuplicationFilterConfig `yaml:"duplicationFilter"`
}

type DuplicationFilterConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Capacity    uint    `yaml:"capacity"`
	Probability float64 `yaml:"probability"`
	ResetUsage  float64 `yaml:"resetUsage"`
}

type RestConfig struct {
	BaseURL string        `yaml:"baseUrl"`
	Timeout time.Duration `yaml:"timeout"`
}

type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

type HistoryConfig struct {
	Capacity int `yaml:"capacity"`
}

// Retries is the number of connection retries after the first attempt. An
// unset value means none.
func (b BrokerConfig) Retries() uint64 {
	if b.ConnectRetries == nil {
		return 0
	}
	return *b.ConnectRetries
}
