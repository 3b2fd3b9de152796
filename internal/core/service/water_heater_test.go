package service

import (
	"context"
	"errors"
	"testing"

	"github.com/qinweixian/yunmi-water-heater/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentCommand struct {
	name string
	args []any
}

type fakeTransport struct {
	values     []any
	queryErr   error
	commandErr error
	queried    [][]string
	commands   []sentCommand
}

func (f *fakeTransport) Query(ctx context.Context, fields []string) ([]any, error) {
	f.queried = append(f.queried, fields)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.values, nil
}

func (f *fakeTransport) Command(ctx context.Context, name string, args []any) error {
	f.commands = append(f.commands, sentCommand{name: name, args: args})
	return f.commandErr
}

func deviceValues(washStatus, velocity, waterTemp, targetTemp, errStatus, isPreHeatNow int) []any {
	return []any{washStatus, velocity, waterTemp, targetTemp, errStatus, isPreHeatNow,
		"0-6-0-8-0", "0-19-0-21-0", "0-0-0-0-0"}
}

func newTranslator(t *testing.T, values []any) (*StateTranslator, *fakeTransport) {
	t.Helper()
	transport := &fakeTransport{values: values}
	translator := NewStateTranslator(transport, "test heater", zap.NewNop())
	if values != nil {
		require.NoError(t, translator.Refresh(context.Background()))
	}
	transport.queried = nil
	return translator, transport
}

func TestRefreshAssignsPositionally(t *testing.T) {
	translator, transport := newTranslator(t, nil)
	transport.values = []any{1, 0, 20, 47, 0, 0, "0-6-0-8-0", "0-19-0-21-0", "0-0-0-0-0"}

	require.NoError(t, translator.Refresh(context.Background()))

	require.Len(t, transport.queried, 1)
	assert.Equal(t, []string{"washStatus", "velocity", "waterTemp", "targetTemp", "errStatus",
		"isPreHeatNow", "preHeatTime1", "preHeatTime2", "preHeatTime3"}, transport.queried[0])

	s := translator.Snapshot()
	assert.Equal(t, 1, s.WashStatus)
	assert.Equal(t, 0, s.Velocity)
	assert.Equal(t, 20, s.WaterTemp)
	assert.Equal(t, 47, s.TargetTemp)
	assert.Equal(t, 0, s.ErrStatus)
	assert.Equal(t, 0, s.IsPreHeatNow)
	assert.Equal(t, "0-6-0-8-0", s.PreHeatTime1)
	assert.Equal(t, "0-19-0-21-0", s.PreHeatTime2)
	assert.Equal(t, "0-0-0-0-0", s.PreHeatTime3)
	assert.Equal(t, "custom temperature", translator.CurrentOperation())
	assert.True(t, translator.Ready())
}

func TestRefreshVocabularyTargetTemp(t *testing.T) {
	translator, _ := newTranslator(t, deviceValues(1, 0, 20, 39, 0, 0))
	assert.Equal(t, "children's wash", translator.CurrentOperation())

	target, ok := translator.TargetTemperature()
	assert.True(t, ok)
	assert.Equal(t, 39, target)
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	translator, transport := newTranslator(t, deviceValues(1, 3, 42, 40, 0, 1))
	before := translator.Snapshot()

	transport.queryErr = errors.New("timeout")
	err := translator.Refresh(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotReady)
	assert.Equal(t, before, translator.Snapshot())
	assert.False(t, translator.Ready())
	assert.Equal(t, "comfort wash", translator.CurrentOperation())
}

func TestRefreshRejectsMalformedResponse(t *testing.T) {
	translator, transport := newTranslator(t, deviceValues(1, 0, 20, 47, 0, 0))
	before := translator.Snapshot()

	transport.values = []any{0, 0, 20}
	err := translator.Refresh(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotReady)
	assert.Equal(t, before, translator.Snapshot())

	transport.values = []any{"on", 0, 20, 47, 0, 0, "", "", ""}
	err = translator.Refresh(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotReady)
	assert.Equal(t, before, translator.Snapshot())
}

func TestInitialState(t *testing.T) {
	translator, _ := newTranslator(t, nil)

	assert.Equal(t, "", translator.CurrentOperation())
	_, ok := translator.CurrentTemperature()
	assert.False(t, ok)
	assert.Equal(t, domain.DISPLAY_STATE_OFF, translator.DisplayState())
	assert.False(t, translator.Ready())

	view := translator.View()
	assert.Nil(t, view.CurrentTemperature)
	assert.Nil(t, view.TargetTemperature)
	assert.Nil(t, view.Attributes["waterTemp"])
	assert.Equal(t, 0, view.Attributes["washStatus"])
}

func TestEntityCapabilities(t *testing.T) {
	translator, _ := newTranslator(t, nil)

	assert.Equal(t, "test heater", translator.Name())
	assert.Equal(t, 30, translator.MinTemp())
	assert.Equal(t, 65, translator.MaxTemp())
	assert.Equal(t, "C", translator.TemperatureUnit())
	assert.Equal(t, 1.0, translator.Precision())
	features := translator.SupportedFeatures()
	assert.True(t, features.Has(domain.FEATURE_TARGET_TEMPERATURE))
	assert.True(t, features.Has(domain.FEATURE_OPERATION_MODE))
	assert.True(t, features.Has(domain.FEATURE_AWAY_MODE))
	assert.True(t, features.Has(domain.FEATURE_ON_OFF))
	assert.Equal(t, []string{"custom temperature", "pre-heat on", "pre-heat off", "power on", "power off",
		"children's wash", "comfort wash", "elderly wash", "kitchen"}, translator.OperationList())
}

func TestDisplayStatePrecedence(t *testing.T) {
	cases := []struct {
		name         string
		washStatus   int
		velocity     int
		isPreHeatNow int
		expected     domain.DisplayState
	}{
		{"preheat wins over flow", 1, 5, 1, domain.DISPLAY_STATE_PREHEATING},
		{"preheat wins while off", 0, 0, 1, domain.DISPLAY_STATE_PREHEATING},
		{"flow", 2, 4, 0, domain.DISPLAY_STATE_RUNNING},
		{"standby", 1, 0, 0, domain.DISPLAY_STATE_STANDBY},
		{"off", 0, 0, 0, domain.DISPLAY_STATE_OFF},
		{"reserved wash status", 2, 0, 0, domain.DISPLAY_STATE_UNKNOWN},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			translator, _ := newTranslator(t, deviceValues(c.washStatus, c.velocity, 30, 47, 0, c.isPreHeatNow))
			assert.Equal(t, c.expected, translator.DisplayState())
		})
	}
}

func TestRequestOperationGuards(t *testing.T) {
	cases := []struct {
		name       string
		washStatus int
		label      string
		command    string
		arg        int
		sent       bool
	}{
		{"preset while on", 1, "children's wash", "set_temp", 39, true},
		{"preset while off", 0, "kitchen", "", 0, false},
		{"preset while flowing", 2, "elderly wash", "", 0, false},
		{"preheat on while on", 1, "pre-heat on", "set_preheat_now", 1, true},
		{"preheat on while off", 0, "pre-heat on", "", 0, false},
		{"preheat off while on", 1, "pre-heat off", "set_preheat_now", 0, true},
		{"preheat off while flowing", 2, "pre-heat off", "set_preheat_now", 0, true},
		{"preheat off while off", 0, "pre-heat off", "", 0, false},
		{"power on while off", 0, "power on", "set_power", 1, true},
		{"power on while on", 1, "power on", "", 0, false},
		{"power off while on", 1, "power off", "set_power", 0, true},
		{"power off while flowing", 2, "power off", "set_power", 0, true},
		{"power off while off", 0, "power off", "", 0, false},
		{"custom temperature", 1, "custom temperature", "", 0, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			translator, transport := newTranslator(t, deviceValues(c.washStatus, 0, 30, 47, 0, 0))
			before := translator.Snapshot()

			result, err := translator.RequestOperation(context.Background(), c.label)

			require.NoError(t, err)
			assert.Equal(t, c.sent, result.Sent)
			if c.sent {
				require.Len(t, transport.commands, 1)
				assert.Equal(t, c.command, transport.commands[0].name)
				assert.Equal(t, []any{c.arg}, transport.commands[0].args)
				assert.Equal(t, []int{c.arg}, result.Args)
				assert.Equal(t, domain.OUTCOME_SENT, result.Outcome())
			} else {
				assert.Empty(t, transport.commands)
				assert.NotEmpty(t, result.Reason)
				assert.Equal(t, domain.OUTCOME_SKIPPED, result.Outcome())
			}
			assert.Equal(t, before, translator.Snapshot(), "no optimistic update")
		})
	}
}

func TestRequestOperationUnknownLabel(t *testing.T) {
	translator, transport := newTranslator(t, deviceValues(1, 0, 30, 47, 0, 0))

	_, err := translator.RequestOperation(context.Background(), "turbo")

	assert.ErrorIs(t, err, domain.ErrUnknownOperation)
	assert.Empty(t, transport.commands)
}

func TestRequestOperationTransportFailure(t *testing.T) {
	translator, transport := newTranslator(t, deviceValues(0, 0, 30, 47, 0, 0))
	before := translator.Snapshot()
	transport.commandErr = errors.New("device unreachable")

	result, err := translator.RequestOperation(context.Background(), "power on")

	assert.ErrorIs(t, err, domain.ErrNotReady)
	assert.False(t, result.Sent)
	assert.Equal(t, "set_power", result.Command)
	assert.Equal(t, before, translator.Snapshot())
}

func TestRequestTemperature(t *testing.T) {
	translator, transport := newTranslator(t, deviceValues(1, 0, 30, 47, 0, 0))

	result, err := translator.RequestTemperature(context.Background(), 52.7)
	require.NoError(t, err)
	assert.True(t, result.Sent)
	require.Len(t, transport.commands, 1)
	assert.Equal(t, sentCommand{name: "set_temp", args: []any{52}}, transport.commands[0])

	// no clamping against min/max
	_, err = translator.RequestTemperature(context.Background(), 80)
	require.NoError(t, err)
	require.Len(t, transport.commands, 2)
	assert.Equal(t, []any{80}, transport.commands[1].args)
}

func TestRequestTemperatureWhileOff(t *testing.T) {
	translator, transport := newTranslator(t, deviceValues(0, 0, 30, 47, 0, 0))

	result, err := translator.RequestTemperature(context.Background(), 45)

	require.NoError(t, err)
	assert.False(t, result.Sent)
	assert.Empty(t, transport.commands)
}

func TestTurnOnOff(t *testing.T) {
	translator, transport := newTranslator(t, deviceValues(0, 0, 30, 47, 0, 0))

	result, err := translator.TurnOn(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Sent)
	result, err = translator.TurnOff(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Sent)
	require.Len(t, transport.commands, 1)
	assert.Equal(t, sentCommand{name: "set_power", args: []any{1}}, transport.commands[0])

	translator, transport = newTranslator(t, deviceValues(1, 0, 30, 47, 0, 0))
	result, err = translator.TurnOff(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Sent)
	result, err = translator.TurnOn(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Sent)
	require.Len(t, transport.commands, 1)
	assert.Equal(t, sentCommand{name: "set_power", args: []any{0}}, transport.commands[0])

	// turn off is guarded on washStatus == 1 only
	translator, transport = newTranslator(t, deviceValues(2, 3, 30, 47, 0, 0))
	result, err = translator.TurnOff(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Sent)
	assert.Empty(t, transport.commands)
}

func TestAwayModeAsymmetricGuard(t *testing.T) {
	// enabling while pre-heat is already active sends nothing
	translator, transport := newTranslator(t, deviceValues(1, 0, 30, 47, 0, 1))
	result, err := translator.SetAwayMode(context.Background(), true)
	require.NoError(t, err)
	assert.False(t, result.Sent)
	assert.Empty(t, transport.commands)

	// disabling is sent whatever isPreHeatNow holds
	for _, preheat := range []int{0, 1} {
		translator, transport = newTranslator(t, deviceValues(1, 0, 30, 47, 0, preheat))
		result, err = translator.SetAwayMode(context.Background(), false)
		require.NoError(t, err)
		assert.True(t, result.Sent)
		require.Len(t, transport.commands, 1)
		assert.Equal(t, sentCommand{name: "set_preheat_now", args: []any{0}}, transport.commands[0])
	}

	translator, transport = newTranslator(t, deviceValues(0, 0, 30, 47, 0, 0))
	result, err = translator.SetAwayMode(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, result.Sent)
	assert.Equal(t, sentCommand{name: "set_preheat_now", args: []any{1}}, transport.commands[0])
}

func TestGuardsUseSnapshotAtRequestTime(t *testing.T) {
	translator, transport := newTranslator(t, deviceValues(0, 0, 30, 47, 0, 0))
	// device was switched on elsewhere; translator has not refreshed yet
	transport.values = deviceValues(1, 0, 30, 47, 0, 0)

	result, err := translator.RequestTemperature(context.Background(), 45)

	require.NoError(t, err)
	assert.False(t, result.Sent)
	assert.Empty(t, transport.queried, "no implicit refresh")
}
