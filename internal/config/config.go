package config

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level
	MQTT     MQTTConfig  `mapstructure:"mqtt"`
	Entries  EntryConfig `mapstructure:"entries"`
	Hub      HubConfig   `mapstructure:"hub"`
	Port     uint        `mapstructure:"port"`
	HttpLog  bool        `mapstructure:"http_log"`
}

type EntryConfig struct {
	// File is the JSON store holding the configured gateway entries.
	File string `mapstructure:"file"`
}

type HubConfig struct {
	// PollIntervalSeconds is how often each gateway is asked for fresh
	// events. Entries whose devices are all assumed state fall back to
	// AssumedStatePollIntervalSeconds instead.
	PollIntervalSeconds             uint32 `mapstructure:"poll_interval_seconds"`
	AssumedStatePollIntervalSeconds uint32 `mapstructure:"assumed_state_poll_interval_seconds"`
	RequestTimeoutSeconds           uint32 `mapstructure:"request_timeout_seconds"`
}

func (c HubConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c HubConfig) AssumedStatePollInterval() time.Duration {
	return time.Duration(c.AssumedStatePollIntervalSeconds) * time.Second
}

func (c HubConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
