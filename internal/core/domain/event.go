package domain

import "fmt"

type SensorUpdateEventMixIn struct {
	Id string `json:"-"`
}

type SensorUpdateEvent interface {
	SensorUpdateEvent() string
	SensorId() string
}

func (e SensorUpdateEventMixIn) SensorUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

type FloatSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value    float64
	Decimals uint
}

type BinarySensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

type SwitchSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

type TextSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value string
}

type BridgeStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

// WaterHeaterStateUpdateEvent is published as one JSON document on the
// water heater state topic.
type WaterHeaterStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Mode               string `json:"mode"`
	CurrentTemperature *int   `json:"current_temperature"`
	Temperature        *int   `json:"temperature"`
	Power              string `json:"power"`
	DisplayState       string `json:"display_state"`
	Available          bool   `json:"-"`
}
