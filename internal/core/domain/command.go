package domain

import "fmt"

// WaterHeaterRequest

type WaterHeaterRequest interface {
	ActorRequest
	WaterHeaterCommand() string
}

type WaterHeaterRequestMixIn struct {
	ActorRequestMixIn
}

func (r WaterHeaterRequestMixIn) WaterHeaterCommand() string {
	return fmt.Sprintf("%T", r)
}

// Water heater commands

type SetOperationRequest struct {
	WaterHeaterRequestMixIn
	Label string
}

type SetTemperatureRequest struct {
	WaterHeaterRequestMixIn
	Celsius float64
}

type SetPowerRequest struct {
	WaterHeaterRequestMixIn
	On bool
}

type SetAwayModeRequest struct {
	WaterHeaterRequestMixIn
	Enable bool
}

// CommandResponse answers every WaterHeaterRequest. ResponseError is set
// when the label is unknown or the transport failed; otherwise Result tells
// whether the command was sent or dropped by its guard.
type CommandResponse struct {
	ActorResponseMixIn
	Result CommandResult
}

// ensure interface compliance
var _ WaterHeaterRequest = (*SetOperationRequest)(nil)
var _ WaterHeaterRequest = (*SetTemperatureRequest)(nil)
var _ WaterHeaterRequest = (*SetPowerRequest)(nil)
var _ WaterHeaterRequest = (*SetAwayModeRequest)(nil)
