package util

import (
	"github.com/qinweixian/yunmi-water-heater/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Device: config.DeviceConfig{
			Host:               "127.0.0.1",
			Token:              "00112233445566778899aabbccddeeff",
			Name:               "Test Water Heater",
			Model:              "yunmi.waterheater",
			Simulate:           true,
			TimeoutMillis:      1000,
			RefreshDelayMillis: 10,
		},
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "yunmi",
			HADiscoveryTopic: "homeassistant",
		},
		MonitorConfig: config.MonitorConfig{
			PollIntervalMillis: 60000,
		},
		Port: 8080,
	}
}
