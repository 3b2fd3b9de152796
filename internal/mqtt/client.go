package mqtt

import (
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/qinweixian/yunmi-water-heater/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"
	MQTT_PAYLOAD_ON      = "on"
	MQTT_PAYLOAD_OFF     = "off"

	COMMAND_SWITCH       = "switch"
	COMMAND_WATER_HEATER = "water_heater"

	PARAM_MODE        = "mode"
	PARAM_TEMPERATURE = "temperature"
	PARAM_POWER       = "power"
)

var ErrNotACommand = errors.New("not a command topic")

func OptsFromConfig(cfg *config.Config) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port))
	opts.SetClientID(fmt.Sprintf("yunmi_%s_%04d", cfg.MQTT.BaseTopic, rand.Intn(10000)))
	// reconnects are driven by the actor supervisor
	opts.SetAutoReconnect(false)
	opts.SetKeepAlive(30 * time.Second)
	if cfg.MQTT.Username != "" && cfg.MQTT.Password != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}
	// the broker flips the bridge to offline when the connection drops
	opts.SetBinaryWill(bridgeStateTopic(cfg.MQTT.BaseTopic), []byte(MQTT_PAYLOAD_OFFLINE), 0, true)

	return opts
}

func CreateMQTTClient(cfg *config.Config, opts *mqtt.ClientOptions, onConnectHandler func(client mqtt.Client),
	onConnectionLostHandler func(mqtt.Client, error)) *MQTTClient {
	if onConnectHandler != nil {
		opts.OnConnect = onConnectHandler
	}
	if onConnectionLostHandler != nil {
		opts.OnConnectionLost = onConnectionLostHandler
	}
	return &MQTTClient{
		client:                   mqtt.NewClient(opts),
		cfg:                      cfg.MQTT,
		switchCommandRegexp:      switchCommandExtractor(cfg.MQTT.BaseTopic),
		waterHeaterCommandRegexp: waterHeaterCommandExtractor(cfg.MQTT.BaseTopic),
	}
}

type MQTTClient struct {
	client                   mqtt.Client
	cfg                      config.MQTTConfig
	switchCommandRegexp      *regexp.Regexp
	waterHeaterCommandRegexp *regexp.Regexp
}

type ParsedMQTTCommand struct {
	DeviceId string
	Command  string
	Param    string
	Payload  string
}

func (c *MQTTClient) baseTopic() string {
	return c.cfg.BaseTopic
}

func (c *MQTTClient) BridgeStateTopic() string {
	return bridgeStateTopic(c.baseTopic())
}

func (c *MQTTClient) SensorStateTopic(sensorId string) string {
	return fmt.Sprintf("%s/sensor/%s/state", c.baseTopic(), sensorId)
}

func (c *MQTTClient) BinarySensorStateTopic(sensorId string) string {
	return fmt.Sprintf("%s/binary_sensor/%s/state", c.baseTopic(), sensorId)
}

func (c *MQTTClient) SwitchStateTopic(switchId string) string {
	return fmt.Sprintf("%s/switch/%s/state", c.baseTopic(), switchId)
}

func (c *MQTTClient) SwitchCommandTopic(switchId string) string {
	return fmt.Sprintf("%s/switch/%s/command", c.baseTopic(), switchId)
}

func (c *MQTTClient) WaterHeaterStateTopic(id string) string {
	return fmt.Sprintf("%s/water_heater/%s/state", c.baseTopic(), id)
}

func (c *MQTTClient) WaterHeaterCommandTopic(id string, param string) string {
	return fmt.Sprintf("%s/water_heater/%s/%s/set", c.baseTopic(), id, param)
}

func (c *MQTTClient) HADiscoveryPrefix() string {
	return c.cfg.HADiscoveryTopic
}

func (c *MQTTClient) ParseMQTTCommand(msg mqtt.Message) (*ParsedMQTTCommand, error) {
	return c.parseMQTTCommand(msg.Topic(), string(msg.Payload()))
}

func (c *MQTTClient) parseMQTTCommand(topic string, payload string) (*ParsedMQTTCommand, error) {
	if m := c.switchCommandRegexp.FindStringSubmatch(topic); m != nil {
		return &ParsedMQTTCommand{
			DeviceId: m[1],
			Command:  COMMAND_SWITCH,
			Payload:  payload,
		}, nil
	}
	if m := c.waterHeaterCommandRegexp.FindStringSubmatch(topic); m != nil {
		if m[2] == PARAM_TEMPERATURE {
			if _, err := strconv.ParseFloat(strings.TrimSpace(payload), 64); err != nil {
				return nil, fmt.Errorf("invalid temperature %q: %w", payload, err)
			}
		}
		return &ParsedMQTTCommand{
			DeviceId: m[1],
			Command:  COMMAND_WATER_HEATER,
			Param:    m[2],
			Payload:  payload,
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotACommand, topic)
}

// awaitToken waits for token off the caller's goroutine and reports the
// outcome through continuation.
func awaitToken(token mqtt.Token, op string, timeout time.Duration, continuation func(error)) {
	go func() {
		if !token.WaitTimeout(timeout) {
			continuation(fmt.Errorf("MQTT %s timed out after %s", op, timeout))
			return
		}
		continuation(token.Error())
	}()
}

func (c *MQTTClient) Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration) {
	awaitToken(c.client.Publish(topic, qos, retain, payload), "publish", timeout, continuation)
}

// SubscribeToCommandTopics listens on the switch and water heater command
// topics only, so the bridge never receives its own state messages.
func (c *MQTTClient) SubscribeToCommandTopics(handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	filters := make(map[string]byte, len(c.commandTopics()))
	for _, topic := range c.commandTopics() {
		filters[topic] = 1
	}
	awaitToken(c.client.SubscribeMultiple(filters, handler), "subscribe", timeout, continuation)
}

func (c *MQTTClient) Connect(continuation func(error), timeout time.Duration) {
	awaitToken(c.client.Connect(), "connect", timeout, continuation)
}

func (c *MQTTClient) Disconnect(timeout time.Duration) {
	c.client.Disconnect(uint(timeout.Milliseconds()))
}

func (c *MQTTClient) commandTopics() []string {
	return []string{
		fmt.Sprintf("%s/switch/+/command", c.baseTopic()),
		fmt.Sprintf("%s/water_heater/+/+/set", c.baseTopic()),
	}
}

func switchCommandExtractor(baseTopic string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("^%s/switch/([a-zA-Z0-9_]+)/command$", baseTopic))
}

func waterHeaterCommandExtractor(baseTopic string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("^%s/water_heater/([a-zA-Z0-9_]+)/(mode|temperature|power)/set$", baseTopic))
}

func bridgeStateTopic(baseTopic string) string {
	return fmt.Sprintf("%s/bridge/state", baseTopic)
}
