package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

const TOKEN_LENGTH = 32

type Config struct {
	LogLevel      zapcore.Level
	Device        DeviceConfig  `mapstructure:"device"`
	MQTT          MQTTConfig    `mapstructure:"mqtt"`
	MonitorConfig MonitorConfig `mapstructure:"monitor"`
	Journal       JournalConfig `mapstructure:"journal"`
	Port          uint          `mapstructure:"port"`
	HttpLog       bool          `mapstructure:"http_log"`
}

type DeviceConfig struct {
	Host               string
	Token              string
	Name               string
	Model              string
	Simulate           bool   `mapstructure:"simulate"`
	TimeoutMillis      uint32 `mapstructure:"timeout_millis"`
	RefreshDelayMillis uint32 `mapstructure:"refresh_delay_millis"`
}

func (c DeviceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMillis) * time.Millisecond
}

func (c DeviceConfig) RefreshDelay() time.Duration {
	return time.Duration(c.RefreshDelayMillis) * time.Millisecond
}

type MonitorConfig struct {
	PollIntervalMillis uint32 `mapstructure:"poll_interval_millis"`
}

func (c MonitorConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMillis) * time.Millisecond
}

type JournalConfig struct {
	Path string
}

func (c JournalConfig) Enabled() bool {
	return c.Path != ""
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

func ParseLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "trace", "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Validate normalizes topics and checks bounds. It mutates cfg.
func (cfg *Config) Validate() error {
	// check and fix base topic
	baseTopic, err := CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// device
	if !cfg.Device.Simulate {
		if cfg.Device.Host == "" {
			return errors.New("config param device.host is required")
		}
		if len(cfg.Device.Token) != TOKEN_LENGTH {
			return fmt.Errorf("config param device.token must be %d hex characters", TOKEN_LENGTH)
		}
	}

	// check bounds
	if cfg.Device.TimeoutMillis < 500 {
		return errors.New("config param device.timeout_millis should be >= 500")
	}
	if cfg.MonitorConfig.PollIntervalMillis < 1000 {
		return errors.New("config param monitor.poll_interval_millis should be >= 1000")
	}

	return nil
}
