package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func validConfig() Config {
	return Config{
		Device: DeviceConfig{
			Host:          "192.168.1.20",
			Token:         "00112233445566778899aabbccddeeff",
			TimeoutMillis: 3000,
		},
		MQTT: MQTTConfig{
			BaseTopic:        "Yunmi",
			HADiscoveryTopic: "homeassistant",
		},
		MonitorConfig: MonitorConfig{
			PollIntervalMillis: 30000,
		},
	}
}

func TestValidate(t *testing.T) {

	assert := assert.New(t)

	cfg := validConfig()
	assert.NoError(cfg.Validate())
	assert.Equal("yunmi", cfg.MQTT.BaseTopic, "base topic lowercased")

	cfg = validConfig()
	cfg.Device.Token = "short"
	assert.Error(cfg.Validate(), "token length")

	cfg = validConfig()
	cfg.Device.Host = ""
	assert.Error(cfg.Validate(), "host required")

	cfg = validConfig()
	cfg.Device.Host = ""
	cfg.Device.Token = ""
	cfg.Device.Simulate = true
	assert.NoError(cfg.Validate(), "simulated device needs no address")

	cfg = validConfig()
	cfg.MonitorConfig.PollIntervalMillis = 999
	assert.Error(cfg.Validate(), "poll interval bound")

	cfg = validConfig()
	cfg.Device.TimeoutMillis = 100
	assert.Error(cfg.Validate(), "timeout bound")

	cfg = validConfig()
	cfg.MQTT.BaseTopic = "yunmi/heater"
	assert.Error(cfg.Validate(), "invalid topic")
}

func TestParseLogLevel(t *testing.T) {

	assert := assert.New(t)

	assert.Equal(zapcore.DebugLevel, ParseLogLevel("trace"))
	assert.Equal(zapcore.WarnLevel, ParseLogLevel("WARN"))
	assert.Equal(zapcore.InfoLevel, ParseLogLevel("verbose"))
}

func TestDurations(t *testing.T) {

	assert := assert.New(t)

	cfg := validConfig()
	cfg.Device.RefreshDelayMillis = 1500
	assert.Equal(3.0, cfg.Device.Timeout().Seconds())
	assert.Equal(1.5, cfg.Device.RefreshDelay().Seconds())
	assert.Equal(30.0, cfg.MonitorConfig.PollInterval().Seconds())
	assert.False(cfg.Journal.Enabled())
}
