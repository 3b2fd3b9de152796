package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE      = "bridge"
	WATER_HEATER_ID             = "water_heater"
	SENSOR_ID_WATER_TEMP        = "water_temperature"
	SENSOR_ID_VELOCITY          = "flow_velocity"
	SENSOR_ID_ERROR_STATUS      = "error_status"
	SENSOR_ID_DISPLAY_STATE     = "display_state"
	SENSOR_ID_CURRENT_OPERATION = "current_operation"
	SENSOR_ID_PREHEAT_TIME_1    = "preheat_time_1"
	SENSOR_ID_PREHEAT_TIME_2    = "preheat_time_2"
	SENSOR_ID_PREHEAT_TIME_3    = "preheat_time_3"
	BINARY_SENSOR_ID_PREHEATING = "preheating"
	SWITCH_ID_AWAY_MODE         = "away_mode"
	STATE_CLASS_MEASUREMENT     = "measurement"
	DEVICE_CLASS_TEMPERATURE    = "temperature"
	DEVICE_CLASS_CONNECTIVITY   = "connectivity"
	DEVICE_CLASS_RUNNING        = "running"
	ENTITY_CLASS_DIAGNOSTIC     = "diagnostic"
	SENSOR_TYPE_SENSOR          = "sensor"
	SENSOR_TYPE_BINARY          = "binary_sensor"
	MANUFACTURER_YUNMI          = "Yunmi"
	BRIDGE_MANUFACTURER         = "yunmi2mqtt"
	UNIT_CELSIUS                = "°C"
	UNIT_FLOW                   = "L/min"
	WATER_HEATER_ICON           = "mdi:water-boiler"
	AWAY_MODE_ICON              = "mdi:radiator"
	PREHEAT_SCHEDULE_ICON       = "mdi:calendar-clock"
	FLOW_ICON                   = "mdi:water-pump"
	ERROR_ICON                  = "mdi:alert-circle-outline"
	DEFAULT_WATER_HEATER_NAME   = "Yunmi Water Heater"
	DEFAULT_WATER_HEATER_MODEL  = "yunmi.waterheater"
	WATER_HEATER_POWER_ON       = "ON"
	WATER_HEATER_POWER_OFF      = "OFF"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("yunmi_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: BRIDGE_MANUFACTURER,
		Model:        "Yunmi MQTT bridge",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Yunmi bridge %s", md5HashShort(baseTopic)),
	}
}

// WaterHeaterDevice identifies the heater by its LAN address, the only stable
// handle available before the first handshake.
func WaterHeaterDevice(name, host, model, firmware string) Device {
	if name == "" {
		name = DEFAULT_WATER_HEATER_NAME
	}
	if model == "" {
		model = DEFAULT_WATER_HEATER_MODEL
	}
	return Device{
		Id:           fmt.Sprintf("yunmi_heater_%s", md5HashShort(host)),
		Manufacturer: MANUFACTURER_YUNMI,
		Model:        model,
		Version:      firmware,
		Name:         name,
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {
	return []GenericSensor{
		{
			Device:         bridgeDevice,
			Id:             SENSOR_ID_BRIDGE_STATE,
			SensorType:     SENSOR_TYPE_BINARY,
			Name:           "Bridge state",
			DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
			EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
			UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
		},
	}
}

func WaterHeaterEntity(device Device, modes []string) GenericWaterHeater {
	return GenericWaterHeater{
		Device:    device,
		Id:        WATER_HEATER_ID,
		Name:      device.Name,
		UniqueId:  uniqueId(device.Id, WATER_HEATER_ID),
		Icon:      WATER_HEATER_ICON,
		Modes:     modes,
		MinTemp:   MIN_TEMP_CELSIUS,
		MaxTemp:   MAX_TEMP_CELSIUS,
		Precision: PRECISION_WHOLE,
		TempUnit:  TEMP_UNIT,
	}
}

func WaterHeaterSensors(device Device) []GenericSensor {

	var sensors []GenericSensor

	// Water temperature
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_WATER_TEMP,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Water temperature",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_TEMPERATURE,
		UnitOfMeasurement: UNIT_CELSIUS,
		UniqueId:          uniqueId(device.Id, SENSOR_ID_WATER_TEMP),
	})

	// Flow velocity
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_VELOCITY,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Flow velocity",
		StateClass:        STATE_CLASS_MEASUREMENT,
		UnitOfMeasurement: UNIT_FLOW,
		Icon:              FLOW_ICON,
		UniqueId:          uniqueId(device.Id, SENSOR_ID_VELOCITY),
	})

	// Display state
	sensors = append(sensors, GenericSensor{
		Device:     device,
		Id:         SENSOR_ID_DISPLAY_STATE,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "State",
		Icon:       WATER_HEATER_ICON,
		UniqueId:   uniqueId(device.Id, SENSOR_ID_DISPLAY_STATE),
	})

	// Current operation
	sensors = append(sensors, GenericSensor{
		Device:     device,
		Id:         SENSOR_ID_CURRENT_OPERATION,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Operation",
		UniqueId:   uniqueId(device.Id, SENSOR_ID_CURRENT_OPERATION),
	})

	// Error status
	sensors = append(sensors, GenericSensor{
		Device:         device,
		Id:             SENSOR_ID_ERROR_STATUS,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Error status",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		Icon:           ERROR_ICON,
		UniqueId:       uniqueId(device.Id, SENSOR_ID_ERROR_STATUS),
	})

	// Pre-heat schedules
	for i, id := range []string{SENSOR_ID_PREHEAT_TIME_1, SENSOR_ID_PREHEAT_TIME_2, SENSOR_ID_PREHEAT_TIME_3} {
		sensors = append(sensors, GenericSensor{
			Device:         device,
			Id:             id,
			SensorType:     SENSOR_TYPE_SENSOR,
			Name:           fmt.Sprintf("Pre-heat schedule %d", i+1),
			EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
			Icon:           PREHEAT_SCHEDULE_ICON,
			UniqueId:       uniqueId(device.Id, id),
		})
	}

	// Pre-heating
	sensors = append(sensors, GenericSensor{
		Device:      device,
		Id:          BINARY_SENSOR_ID_PREHEATING,
		SensorType:  SENSOR_TYPE_BINARY,
		Name:        "Pre-heating",
		DeviceClass: DEVICE_CLASS_RUNNING,
		UniqueId:    uniqueId(device.Id, BINARY_SENSOR_ID_PREHEATING),
	})

	return sensors
}

func WaterHeaterSwitches(device Device) []GenericSwitch {
	return []GenericSwitch{
		{
			Device:   device,
			Id:       SWITCH_ID_AWAY_MODE,
			Name:     "Away mode (pre-heat)",
			Icon:     AWAY_MODE_ICON,
			UniqueId: uniqueId(device.Id, SWITCH_ID_AWAY_MODE),
		},
	}
}

func uniqueId(deviceId string, sensorId string) string {
	return fmt.Sprintf("%s_%s", deviceId, sensorId)
}

func md5HashShort(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])[:8]
}
