package util

import (
	"overkiz2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		MQTT: config.MQTTConfig{
			Host:              "localhost",
			Port:              1883,
			BaseTopic:         "overkiz2mqtt",
			HADiscoveryEnable: true,
			HADiscoveryTopic:  "homeassistant",
		},
		Entries: config.EntryConfig{
			File: "entries.json",
		},
		Hub: config.HubConfig{
			PollIntervalSeconds:             30,
			AssumedStatePollIntervalSeconds: 3600,
			RequestTimeoutSeconds:           30,
		},
		Port: 8080,
	}
}
