package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/qinweixian/yunmi-water-heater/internal/core/domain"
	"github.com/qinweixian/yunmi-water-heater/internal/core/port"

	"go.uber.org/zap"
)

const (
	REQUEST_SET_OPERATION   = "set_operation_mode"
	REQUEST_SET_TEMPERATURE = "set_temperature"
	REQUEST_TURN_ON         = "turn_on"
	REQUEST_TURN_OFF        = "turn_off"
	REQUEST_AWAY_MODE_ON    = "turn_away_mode_on"
	REQUEST_AWAY_MODE_OFF   = "turn_away_mode_off"
)

// StateTranslator maps the water heater's property array to entity state and
// entity requests to guarded device commands.
//
// Calls are expected to be serialized by the owner. The snapshot is swapped
// as a whole so that concurrent readers never observe a partial refresh.
type StateTranslator struct {
	transport port.Transport
	name      string
	snapshot  atomic.Pointer[domain.Snapshot]
	ready     atomic.Bool
	logger    *zap.Logger
}

func NewStateTranslator(transport port.Transport, name string, logger *zap.Logger) *StateTranslator {
	if name == "" {
		name = domain.DEFAULT_WATER_HEATER_NAME
	}
	t := &StateTranslator{
		transport: transport,
		name:      name,
		logger:    logger,
	}
	t.snapshot.Store(&domain.Snapshot{})
	return t
}

// Refresh reads all device fields and replaces the snapshot. On failure the
// previous snapshot is kept and the returned error wraps domain.ErrNotReady.
func (t *StateTranslator) Refresh(ctx context.Context) error {
	values, err := t.transport.Query(ctx, domain.SnapshotFields)
	if err != nil {
		t.ready.Store(false)
		t.logger.Error("fail to get_prop from water heater", zap.Error(err))
		return fmt.Errorf("%w: %w", domain.ErrNotReady, err)
	}
	snapshot, err := domain.SnapshotFromValues(values)
	if err != nil {
		t.ready.Store(false)
		t.logger.Error("invalid get_prop response from water heater", zap.Error(err), zap.Any("values", values))
		return fmt.Errorf("%w: %w", domain.ErrNotReady, err)
	}
	snapshot.FetchedAt = time.Now()
	t.snapshot.Store(&snapshot)
	t.ready.Store(true)
	t.logger.Debug("update water heater status", zap.Int("washStatus", snapshot.WashStatus))
	return nil
}

// Snapshot returns a copy of the current snapshot.
func (t *StateTranslator) Snapshot() domain.Snapshot {
	return *t.snapshot.Load()
}

func (t *StateTranslator) Ready() bool {
	return t.ready.Load()
}

func (t *StateTranslator) Name() string {
	return t.name
}

func (t *StateTranslator) MinTemp() int {
	return domain.MIN_TEMP_CELSIUS
}

func (t *StateTranslator) MaxTemp() int {
	return domain.MAX_TEMP_CELSIUS
}

func (t *StateTranslator) TemperatureUnit() string {
	return domain.TEMP_UNIT
}

func (t *StateTranslator) Precision() float64 {
	return domain.PRECISION_WHOLE
}

func (t *StateTranslator) TargetTempStep() float64 {
	return domain.PRECISION_WHOLE
}

func (t *StateTranslator) SupportedFeatures() domain.SupportedFeatures {
	return domain.ALL_FEATURES
}

func (t *StateTranslator) OperationList() []string {
	return domain.Vocabulary.Labels()
}

// CurrentOperation is empty until the first successful refresh.
func (t *StateTranslator) CurrentOperation() string {
	s := t.Snapshot()
	if !s.Fetched {
		return ""
	}
	return domain.Vocabulary.OperationFor(s.TargetTemp)
}

func (t *StateTranslator) CurrentTemperature() (int, bool) {
	s := t.Snapshot()
	return s.WaterTemp, s.Fetched
}

// TargetTemperature returns the raw targetTemp slot, which may hold an
// operation code.
func (t *StateTranslator) TargetTemperature() (int, bool) {
	s := t.Snapshot()
	return s.TargetTemp, s.Fetched
}

func (t *StateTranslator) IsPreHeatNow() bool {
	return t.Snapshot().IsPreHeatNow == 1
}

func (t *StateTranslator) IsOn() bool {
	return t.Snapshot().WashStatus != 0
}

func (t *StateTranslator) ErrorStatus() int {
	return t.Snapshot().ErrStatus
}

func (t *StateTranslator) Attributes() map[string]any {
	return t.Snapshot().Attributes()
}

func (t *StateTranslator) DisplayState() domain.DisplayState {
	return t.Snapshot().DisplayState()
}

// View reads every property from a single snapshot.
func (t *StateTranslator) View() domain.WaterHeaterView {
	s := t.Snapshot()
	view := domain.WaterHeaterView{
		Name:              t.name,
		Ready:             t.Ready(),
		State:             s.DisplayState(),
		OperationList:     t.OperationList(),
		MinTemp:           t.MinTemp(),
		MaxTemp:           t.MaxTemp(),
		TemperatureUnit:   t.TemperatureUnit(),
		Precision:         t.Precision(),
		SupportedFeatures: t.SupportedFeatures(),
		IsPreHeatNow:      s.IsPreHeatNow == 1,
		IsOn:              s.WashStatus != 0,
		ErrorStatus:       s.ErrStatus,
		Attributes:        s.Attributes(),
		LastRefresh:       s.FetchedAt,
	}
	if s.Fetched {
		current := s.WaterTemp
		target := s.TargetTemp
		view.CurrentTemperature = &current
		view.TargetTemperature = &target
		view.CurrentOperation = domain.Vocabulary.OperationFor(s.TargetTemp)
	}
	return view
}

// RequestOperation resolves label and sends the matching command if the
// current snapshot allows it. Requests that fail their guard are dropped
// without error.
func (t *StateTranslator) RequestOperation(ctx context.Context, label string) (domain.CommandResult, error) {
	code, ok := domain.Vocabulary.Code(label)
	if !ok {
		return domain.CommandResult{Request: REQUEST_SET_OPERATION}, fmt.Errorf("%w: %q", domain.ErrUnknownOperation, label)
	}
	s := t.Snapshot()

	t.logger.Info("set_operation_mode operation", zap.String("operation", label), zap.Int("code", int(code)))

	switch {
	case code < domain.OP_CUSTOM_TEMPERATURE:
		if s.WashStatus != 1 {
			return t.skip(REQUEST_SET_OPERATION, "washStatus != 1")
		}
		return t.send(ctx, REQUEST_SET_OPERATION, domain.CMD_SET_TEMP, int(code))
	case code == domain.OP_PREHEAT_ON:
		if s.WashStatus != 1 {
			return t.skip(REQUEST_SET_OPERATION, "washStatus != 1")
		}
		return t.send(ctx, REQUEST_SET_OPERATION, domain.CMD_SET_PREHEAT_NOW, 1)
	case code == domain.OP_PREHEAT_OFF:
		if s.WashStatus < 1 {
			return t.skip(REQUEST_SET_OPERATION, "washStatus < 1")
		}
		return t.send(ctx, REQUEST_SET_OPERATION, domain.CMD_SET_PREHEAT_NOW, 0)
	case code == domain.OP_POWER_ON:
		if s.WashStatus != 0 {
			return t.skip(REQUEST_SET_OPERATION, "washStatus != 0")
		}
		return t.send(ctx, REQUEST_SET_OPERATION, domain.CMD_SET_POWER, 1)
	case code == domain.OP_POWER_OFF:
		if s.WashStatus == 0 {
			return t.skip(REQUEST_SET_OPERATION, "washStatus == 0")
		}
		return t.send(ctx, REQUEST_SET_OPERATION, domain.CMD_SET_POWER, 0)
	default:
		// custom temperature carries no command of its own
		return t.skip(REQUEST_SET_OPERATION, fmt.Sprintf("no command for operation code %d", code))
	}
}

// RequestTemperature truncates celsius to whole degrees. No range check is
// applied; min and max temperature are advertised only.
func (t *StateTranslator) RequestTemperature(ctx context.Context, celsius float64) (domain.CommandResult, error) {
	if t.Snapshot().WashStatus != 1 {
		return t.skip(REQUEST_SET_TEMPERATURE, "washStatus != 1")
	}
	target := int(celsius)
	t.logger.Info("set_temperature", zap.Int("temperature", target))
	return t.send(ctx, REQUEST_SET_TEMPERATURE, domain.CMD_SET_TEMP, target)
}

func (t *StateTranslator) TurnOn(ctx context.Context) (domain.CommandResult, error) {
	if t.Snapshot().WashStatus != 0 {
		return t.skip(REQUEST_TURN_ON, "washStatus != 0")
	}
	return t.send(ctx, REQUEST_TURN_ON, domain.CMD_SET_POWER, 1)
}

func (t *StateTranslator) TurnOff(ctx context.Context) (domain.CommandResult, error) {
	if t.Snapshot().WashStatus != 1 {
		return t.skip(REQUEST_TURN_OFF, "washStatus != 1")
	}
	return t.send(ctx, REQUEST_TURN_OFF, domain.CMD_SET_POWER, 0)
}

// SetAwayMode maps away mode to pre-heat. Enabling is guarded on pre-heat
// being off; disabling is always sent.
func (t *StateTranslator) SetAwayMode(ctx context.Context, enable bool) (domain.CommandResult, error) {
	s := t.Snapshot()
	if enable {
		t.logger.Debug("turn away mode on", zap.Int("isPreHeatNow", s.IsPreHeatNow))
		if s.IsPreHeatNow != 0 {
			return t.skip(REQUEST_AWAY_MODE_ON, "isPreHeatNow != 0")
		}
		return t.send(ctx, REQUEST_AWAY_MODE_ON, domain.CMD_SET_PREHEAT_NOW, 1)
	}
	t.logger.Debug("turn away mode off", zap.Int("isPreHeatNow", s.IsPreHeatNow))
	return t.send(ctx, REQUEST_AWAY_MODE_OFF, domain.CMD_SET_PREHEAT_NOW, 0)
}

func (t *StateTranslator) send(ctx context.Context, request, command string, arg int) (domain.CommandResult, error) {
	err := t.transport.Command(ctx, command, []any{arg})
	if err != nil {
		t.logger.Error("command failed", zap.String("request", request), zap.String("command", command), zap.Error(err))
		return domain.CommandResult{
			Request: request,
			Command: command,
			Args:    []int{arg},
		}, fmt.Errorf("%w: %s: %w", domain.ErrNotReady, command, err)
	}
	return domain.SentCommand(request, command, arg), nil
}

func (t *StateTranslator) skip(request, reason string) (domain.CommandResult, error) {
	t.logger.Debug("command dropped by guard", zap.String("request", request), zap.String("reason", reason))
	return domain.SkippedCommand(request, reason), nil
}
