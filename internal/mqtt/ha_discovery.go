package mqtt

import (
	"fmt"

	"github.com/qinweixian/yunmi-water-heater/internal/core/domain"
)

type HADiscoveryConfig struct {
	Device            HADiscoveryDevice `json:"device"`
	StateTopic        string            `json:"state_topic,omitempty"`
	CommandTopic      string            `json:"command_topic,omitempty"`
	StateClass        string            `json:"state_class,omitempty"`
	DeviceClass       string            `json:"device_class,omitempty"`
	UnitOfMeasurement string            `json:"unit_of_measurement,omitempty"`
	AvTopic           string            `json:"availability_topic,omitempty"`
	EntityCategory    string            `json:"entity_category,omitempty"`
	Name              string            `json:"name"`
	UniqueId          string            `json:"unique_id"`
	Platform          string            `json:"platform"`
	EnabledByDefault  *bool             `json:"enabled_by_default,omitempty"`
	PayloadOn         string            `json:"payload_on,omitempty"`
	PayloadOff        string            `json:"payload_off,omitempty"`
	Icon              string            `json:"icon,omitempty"`
}

// HAWaterHeaterDiscoveryConfig follows the MQTT water_heater platform schema.
type HAWaterHeaterDiscoveryConfig struct {
	Device                  HADiscoveryDevice `json:"device"`
	AvTopic                 string            `json:"availability_topic,omitempty"`
	Name                    string            `json:"name"`
	UniqueId                string            `json:"unique_id"`
	Platform                string            `json:"platform"`
	Icon                    string            `json:"icon,omitempty"`
	Modes                   []string          `json:"modes"`
	ModeCommandTopic        string            `json:"mode_command_topic"`
	ModeStateTopic          string            `json:"mode_state_topic"`
	ModeStateTemplate       string            `json:"mode_state_template"`
	TemperatureCommandTopic string            `json:"temperature_command_topic"`
	TemperatureStateTopic   string            `json:"temperature_state_topic"`
	TemperatureStateTmpl    string            `json:"temperature_state_template"`
	CurrentTemperatureTopic string            `json:"current_temperature_topic"`
	CurrentTemperatureTmpl  string            `json:"current_temperature_template"`
	PowerCommandTopic       string            `json:"power_command_topic"`
	PayloadOn               string            `json:"payload_on"`
	PayloadOff              string            `json:"payload_off"`
	MinTemp                 float64           `json:"min_temp"`
	MaxTemp                 float64           `json:"max_temp"`
	Precision               float64           `json:"precision"`
	TemperatureUnit         string            `json:"temperature_unit"`
}

type HADiscoveryDevice struct {
	Id           []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Version      string   `json:"sw_version,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name,omitempty"`
	ViaDevice    string   `json:"via_device,omitempty"`
}

func HADiscoverySensorTopic(prefix string, sensor domain.GenericSensor) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", prefix, sensor.SensorType, sensor.Device.Id, sensor.Id)
}

func HADiscoverySwitchTopic(prefix string, sensor domain.GenericSwitch) string {
	return fmt.Sprintf("%s/switch/%s/%s/config", prefix, sensor.Device.Id, sensor.Id)
}

func HADiscoveryWaterHeaterTopic(prefix string, heater domain.GenericWaterHeater) string {
	return fmt.Sprintf("%s/water_heater/%s/%s/config", prefix, heater.Device.Id, heater.Id)
}

func GenericSensorToHADiscoveryMessage(client *MQTTClient, sensor domain.GenericSensor) HADiscoveryConfig {
	dev := device(sensor.Device)
	var topic string
	switch {
	case sensor.Id == domain.SENSOR_ID_BRIDGE_STATE:
		topic = client.BridgeStateTopic()
	case sensor.SensorType == domain.SENSOR_TYPE_SENSOR:
		topic = client.SensorStateTopic(sensor.Id)
	case sensor.SensorType == domain.SENSOR_TYPE_BINARY:
		topic = client.BinarySensorStateTopic(sensor.Id)
	}
	disConfig := HADiscoveryConfig{
		Device:            dev,
		StateTopic:        topic,
		StateClass:        sensor.StateClass,
		DeviceClass:       sensor.DeviceClass,
		UnitOfMeasurement: sensor.UnitOfMeasurement,
		AvTopic:           client.BridgeStateTopic(),
		EntityCategory:    sensor.EntityCategory,
		Name:              sensor.Name,
		UniqueId:          sensor.UniqueId,
		Icon:              sensor.Icon,
		EnabledByDefault:  sensor.EnabledByDefault,
		Platform:          "mqtt",
	}
	if sensor.Id == domain.SENSOR_ID_BRIDGE_STATE {
		disConfig.PayloadOn = MQTT_PAYLOAD_ONLINE
		disConfig.PayloadOff = MQTT_PAYLOAD_OFFLINE
	} else if sensor.SensorType == domain.SENSOR_TYPE_BINARY {
		disConfig.PayloadOn = MQTT_PAYLOAD_ON
		disConfig.PayloadOff = MQTT_PAYLOAD_OFF
	}
	return disConfig
}

func GenericSwitchToHADiscoveryMessage(client *MQTTClient, _switch domain.GenericSwitch) HADiscoveryConfig {
	dev := device(_switch.Device)
	topic := client.SwitchStateTopic(_switch.Id)
	cmdTopic := client.SwitchCommandTopic(_switch.Id)
	disConfig := HADiscoveryConfig{
		Device:       dev,
		StateTopic:   topic,
		CommandTopic: cmdTopic,
		AvTopic:      client.BridgeStateTopic(),
		Name:         _switch.Name,
		UniqueId:     _switch.UniqueId,
		Icon:         _switch.Icon,
		Platform:     "mqtt",
		PayloadOn:    MQTT_PAYLOAD_ON,
		PayloadOff:   MQTT_PAYLOAD_OFF,
	}
	return disConfig
}

// GenericWaterHeaterToHADiscoveryMessage maps every state field to the single
// JSON state document through value templates.
func GenericWaterHeaterToHADiscoveryMessage(client *MQTTClient, heater domain.GenericWaterHeater) HAWaterHeaterDiscoveryConfig {
	stateTopic := client.WaterHeaterStateTopic(heater.Id)
	return HAWaterHeaterDiscoveryConfig{
		Device:                  device(heater.Device),
		AvTopic:                 client.BridgeStateTopic(),
		Name:                    heater.Name,
		UniqueId:                heater.UniqueId,
		Platform:                "mqtt",
		Icon:                    heater.Icon,
		Modes:                   heater.Modes,
		ModeCommandTopic:        client.WaterHeaterCommandTopic(heater.Id, PARAM_MODE),
		ModeStateTopic:          stateTopic,
		ModeStateTemplate:       "{{ value_json.mode }}",
		TemperatureCommandTopic: client.WaterHeaterCommandTopic(heater.Id, PARAM_TEMPERATURE),
		TemperatureStateTopic:   stateTopic,
		TemperatureStateTmpl:    "{{ value_json.temperature }}",
		CurrentTemperatureTopic: stateTopic,
		CurrentTemperatureTmpl:  "{{ value_json.current_temperature }}",
		PowerCommandTopic:       client.WaterHeaterCommandTopic(heater.Id, PARAM_POWER),
		PayloadOn:               domain.WATER_HEATER_POWER_ON,
		PayloadOff:              domain.WATER_HEATER_POWER_OFF,
		MinTemp:                 heater.MinTemp,
		MaxTemp:                 heater.MaxTemp,
		Precision:               heater.Precision,
		TemperatureUnit:         heater.TempUnit,
	}
}

func device(d domain.Device) HADiscoveryDevice {
	return HADiscoveryDevice{
		Id:           []string{d.Id},
		Manufacturer: d.Manufacturer,
		Version:      d.Version,
		Model:        d.Model,
		Name:         d.Name,
		ViaDevice:    d.ViaDevice,
	}
}
