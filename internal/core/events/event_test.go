package events

import (
	"testing"

	"github.com/qinweixian/yunmi-water-heater/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fetchedView() domain.WaterHeaterView {
	s := domain.Snapshot{
		WashStatus:   1,
		Velocity:     3,
		WaterTemp:    41,
		TargetTemp:   40,
		IsPreHeatNow: 0,
		PreHeatTime1: "0-6-0-8-0",
		Fetched:      true,
	}
	current, target := s.WaterTemp, s.TargetTemp
	return domain.WaterHeaterView{
		Ready:              true,
		State:              s.DisplayState(),
		CurrentOperation:   domain.Vocabulary.OperationFor(s.TargetTemp),
		CurrentTemperature: &current,
		TargetTemperature:  &target,
		IsOn:               true,
		Attributes:         s.Attributes(),
	}
}

func TestWaterHeaterViewToUpdateEvents(t *testing.T) {

	events := WaterHeaterViewToUpdateEvents(fetchedView())

	byId := map[string]any{}
	for _, e := range events {
		byId[e.(domain.SensorUpdateEvent).SensorId()] = e
	}

	state := byId[domain.WATER_HEATER_ID].(domain.WaterHeaterStateUpdateEvent)
	assert.Equal(t, "comfort wash", state.Mode)
	assert.Equal(t, domain.WATER_HEATER_POWER_ON, state.Power)
	assert.Equal(t, "running", state.DisplayState)
	require.NotNil(t, state.CurrentTemperature)
	assert.Equal(t, 41, *state.CurrentTemperature)

	assert.Equal(t, 3.0, byId[domain.SENSOR_ID_VELOCITY].(domain.FloatSensorUpdateEvent).Value)
	assert.Equal(t, "0-6-0-8-0", byId[domain.SENSOR_ID_PREHEAT_TIME_1].(domain.TextSensorUpdateEvent).Value)
	assert.False(t, byId[domain.SWITCH_ID_AWAY_MODE].(domain.SwitchSensorUpdateEvent).Value)
	assert.True(t, byId[domain.SENSOR_ID_BRIDGE_STATE].(domain.BridgeStateUpdateEvent).Value)
}

func TestUnfetchedViewOnlyReportsAvailability(t *testing.T) {

	events := WaterHeaterViewToUpdateEvents(domain.WaterHeaterView{})

	require.Len(t, events, 2)
	state := events[0].(domain.WaterHeaterStateUpdateEvent)
	assert.Nil(t, state.CurrentTemperature)
	assert.Equal(t, domain.WATER_HEATER_POWER_OFF, state.Power)
	assert.False(t, events[1].(domain.BridgeStateUpdateEvent).Value)
}
