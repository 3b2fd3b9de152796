package events

import (
	"github.com/qinweixian/yunmi-water-heater/internal/core/domain"
)

func WaterHeaterViewToUpdateEvents(view domain.WaterHeaterView) []any {
	var events []any

	events = append(events, WaterHeaterStateUpdateEvent(view))
	events = append(events, domain.BridgeStateUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: domain.SENSOR_ID_BRIDGE_STATE,
		},
		Value: view.Ready,
	})

	// nothing worth publishing before the first successful refresh
	if view.CurrentTemperature == nil {
		return events
	}

	// Water temperature
	events = append(events, domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: domain.SENSOR_ID_WATER_TEMP,
		},
		Value:    float64(*view.CurrentTemperature),
		Decimals: 0,
	})
	// Flow velocity
	if velocity, ok := view.Attributes[domain.PROP_VELOCITY].(int); ok {
		events = append(events, domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
				Id: domain.SENSOR_ID_VELOCITY,
			},
			Value:    float64(velocity),
			Decimals: 0,
		})
	}
	// Error status
	events = append(events, domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: domain.SENSOR_ID_ERROR_STATUS,
		},
		Value:    float64(view.ErrorStatus),
		Decimals: 0,
	})
	events = append(events, domain.TextSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: domain.SENSOR_ID_DISPLAY_STATE,
		},
		Value: string(view.State),
	})
	events = append(events, domain.TextSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: domain.SENSOR_ID_CURRENT_OPERATION,
		},
		Value: view.CurrentOperation,
	})
	// Pre-heat schedules
	schedules := map[string]string{
		domain.SENSOR_ID_PREHEAT_TIME_1: domain.PROP_PREHEAT_TIME_1,
		domain.SENSOR_ID_PREHEAT_TIME_2: domain.PROP_PREHEAT_TIME_2,
		domain.SENSOR_ID_PREHEAT_TIME_3: domain.PROP_PREHEAT_TIME_3,
	}
	for _, id := range []string{domain.SENSOR_ID_PREHEAT_TIME_1, domain.SENSOR_ID_PREHEAT_TIME_2, domain.SENSOR_ID_PREHEAT_TIME_3} {
		value, _ := view.Attributes[schedules[id]].(string)
		events = append(events, domain.TextSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
				Id: id,
			},
			Value: value,
		})
	}
	events = append(events, domain.BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: domain.BINARY_SENSOR_ID_PREHEATING,
		},
		Value: view.IsPreHeatNow,
	})
	events = append(events, AwayModeSwitchUpdateEvent(view.IsPreHeatNow))

	return events
}

func WaterHeaterStateUpdateEvent(view domain.WaterHeaterView) domain.WaterHeaterStateUpdateEvent {
	power := domain.WATER_HEATER_POWER_OFF
	if view.IsOn {
		power = domain.WATER_HEATER_POWER_ON
	}
	return domain.WaterHeaterStateUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: domain.WATER_HEATER_ID,
		},
		Mode:               view.CurrentOperation,
		CurrentTemperature: view.CurrentTemperature,
		Temperature:        view.TargetTemperature,
		Power:              power,
		DisplayState:       string(view.State),
		Available:          view.Ready,
	}
}

// AwayModeSwitchUpdateEvent reports away mode, which mirrors pre-heat.
func AwayModeSwitchUpdateEvent(isPreHeatNow bool) any {
	return domain.SwitchSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: domain.SWITCH_ID_AWAY_MODE,
		},
		Value: isPreHeatNow,
	}
}
