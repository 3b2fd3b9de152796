package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qinweixian/yunmi-water-heater/internal/config"
	"github.com/qinweixian/yunmi-water-heater/internal/core/domain"
	"github.com/qinweixian/yunmi-water-heater/internal/core/events"
	"github.com/qinweixian/yunmi-water-heater/internal/core/port"
	"github.com/qinweixian/yunmi-water-heater/internal/core/service"
	. "github.com/qinweixian/yunmi-water-heater/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// A device call may take one round trip, a re-handshake and a second round
// trip before the transport gives up.
const deviceCallsPerTask = 3

type WaterHeaterActor struct {
	behavior  actor.Behavior
	stash     *Stash
	scheduler *scheduler.TimerScheduler

	config        *config.Config
	translator    *service.StateTranslator
	identity      port.DeviceIdentity
	journal       port.CommandJournal
	metrics       port.WaterHeaterMetrics
	eventStream   *eventstream.EventStream
	device        *domain.Device
	cancelRefresh scheduler.CancelFunc

	logger *zap.Logger
}

type pollTick struct {
}

type refreshTick struct {
}

type refreshDone struct {
	err     error
	replyTo *actor.PID
}

type commandDone struct {
	request domain.WaterHeaterRequest
	result  domain.CommandResult
	err     error
	replyTo *actor.PID
}

type deviceInfoDone struct {
	device  domain.Device
	err     error
	replyTo *actor.PID
}

// NewWaterHeaterActor builds the single owner of translator. identity,
// journal and metrics are optional.
func NewWaterHeaterActor(config *config.Config, translator *service.StateTranslator, identity port.DeviceIdentity,
	journal port.CommandJournal, metrics port.WaterHeaterMetrics, eventStream *eventstream.EventStream, logger *zap.Logger) *WaterHeaterActor {
	act := &WaterHeaterActor{
		behavior:    actor.NewBehavior(),
		stash:       &Stash{},
		config:      config,
		translator:  translator,
		identity:    identity,
		journal:     journal,
		metrics:     metrics,
		eventStream: eventStream,
		logger:      ActorLogger(domain.ACTOR_ID_WATER_HEATER, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *WaterHeaterActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *WaterHeaterActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("waterheater@starting started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
		// first refresh, then poll
		state.refresh(ctx, nil)
		state.scheduler.RequestOnce(state.config.MonitorConfig.PollInterval(), ctx.Self(), pollTick{})
	case *actor.Restarting:
	default:
		state.logger.Debug("waterheater@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *WaterHeaterActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.respondHealth(ctx, "idle")
	case domain.GetWaterHeaterStateRequest:
		state.respondView(ctx, msg)
	case pollTick:
		state.logger.Debug("waterheater@default poll")
		state.scheduler.RequestOnce(state.config.MonitorConfig.PollInterval(), ctx.Self(), pollTick{})
		state.refresh(ctx, nil)
	case refreshTick:
		state.logger.Debug("waterheater@default refresh after command")
		state.cancelRefresh = nil
		state.refresh(ctx, nil)
	case domain.RefreshRequest:
		state.logger.Debug("waterheater@default RefreshRequest")
		state.refresh(ctx, ForRequest(msg).ReplyTo(ctx))
	case domain.GetDeviceInfoRequest:
		state.logger.Debug("waterheater@default GetDeviceInfoRequest")
		state.deviceInfo(ctx, ForRequest(msg).ReplyTo(ctx))
	case domain.WaterHeaterRequest:
		state.logger.Info("waterheater@default command", zap.String("request", fmt.Sprintf("%T", msg)))
		state.execute(ctx, msg, ForRequest(msg).ReplyTo(ctx))
	case *actor.Stopping:
		if state.cancelRefresh != nil {
			state.cancelRefresh()
		}
	default:
		state.logger.Debug("waterheater@default ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// WaitingDevice is stacked while a device call is in flight. Reads are
// answered from the last snapshot; everything else waits.
func (state *WaterHeaterActor) WaitingDevice(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.respondHealth(ctx, "waiting")
	case domain.GetWaterHeaterStateRequest:
		state.respondView(ctx, msg)
	case refreshDone:
		state.onRefresh(ctx, msg)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case commandDone:
		state.onCommand(ctx, msg)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case deviceInfoDone:
		if msg.err != nil {
			state.logger.Warn("waterheater@waiting device info unavailable", zap.Error(msg.err))
		} else {
			state.device = &msg.device
		}
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, domain.GetDeviceInfoResponse{
				Device:        msg.device,
				OperationList: state.translator.OperationList(),
			})
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case pollTick:
		// a refresh is already due
		state.scheduler.RequestOnce(state.config.MonitorConfig.PollInterval(), ctx.Self(), pollTick{})
	case *actor.Stopping:
		if state.cancelRefresh != nil {
			state.cancelRefresh()
		}
	default:
		state.logger.Debug("waterheater@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *WaterHeaterActor) respondHealth(ctx actor.Context, stateName string) {
	state.logger.Debug("waterheater@" + stateName + " ActorHealthRequest")
	ctx.Respond(domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_WATER_HEATER,
		Healthy: state.translator.Ready(),
		State:   stateName,
	})
}

func (state *WaterHeaterActor) respondView(ctx actor.Context, msg domain.GetWaterHeaterStateRequest) {
	ForRequest(msg).Respond(ctx, domain.GetWaterHeaterStateResponse{
		View: state.translator.View(),
	})
}

func (state *WaterHeaterActor) taskTimeout() time.Duration {
	return deviceCallsPerTask * state.config.Device.Timeout()
}

// refresh reads the device. replyTo, when set, gets a RefreshResponse.
func (state *WaterHeaterActor) refresh(ctx actor.Context, replyTo *actor.PID) {
	timeout := state.taskTimeout()
	NewBackgroundTaskNoError(ctx, func() *refreshDone {
		c, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return &refreshDone{err: state.translator.Refresh(c), replyTo: replyTo}
	}).Recover(func(err error) refreshDone {
		return refreshDone{err: fmt.Errorf("%w: %w", domain.ErrNotReady, err), replyTo: replyTo}
	}).WithTimeout(timeout).PipeToAsync(ctx.Self())
	state.behavior.BecomeStacked(state.WaitingDevice)
}

func (state *WaterHeaterActor) onRefresh(ctx actor.Context, msg refreshDone) {
	err := msg.err
	view := state.translator.View()
	if msg.replyTo != nil {
		ctx.Send(msg.replyTo, domain.RefreshResponse{
			ActorResponseMixIn: domain.ErrorResponse(err),
			View:               view,
		})
	}
	if err != nil {
		state.logger.Warn("waterheater@waiting refresh failed", zap.Error(err))
	} else {
		state.logger.Debug("waterheater@waiting refreshed", zap.String("state", string(view.State)))
	}
	if state.metrics != nil {
		state.metrics.ObserveRefresh(view, err)
	}
	if state.eventStream != nil {
		for _, ev := range events.WaterHeaterViewToUpdateEvents(view) {
			state.eventStream.Publish(ev)
		}
	}
}

func (state *WaterHeaterActor) execute(ctx actor.Context, req domain.WaterHeaterRequest, replyTo *actor.PID) {
	timeout := state.taskTimeout()
	NewBackgroundTaskNoError(ctx, func() *commandDone {
		c, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		result, err := state.dispatch(c, req)
		return &commandDone{request: req, result: result, err: err, replyTo: replyTo}
	}).Recover(func(err error) commandDone {
		return commandDone{request: req, err: fmt.Errorf("%w: %w", domain.ErrNotReady, err), replyTo: replyTo}
	}).WithTimeout(timeout).PipeToAsync(ctx.Self())
	state.behavior.BecomeStacked(state.WaitingDevice)
}

func (state *WaterHeaterActor) dispatch(c context.Context, req domain.WaterHeaterRequest) (domain.CommandResult, error) {
	switch r := req.(type) {
	case domain.SetOperationRequest:
		return state.translator.RequestOperation(c, r.Label)
	case domain.SetTemperatureRequest:
		return state.translator.RequestTemperature(c, r.Celsius)
	case domain.SetPowerRequest:
		if r.On {
			return state.translator.TurnOn(c)
		}
		return state.translator.TurnOff(c)
	case domain.SetAwayModeRequest:
		return state.translator.SetAwayMode(c, r.Enable)
	}
	return domain.CommandResult{}, fmt.Errorf("unsupported request %T", req)
}

func (state *WaterHeaterActor) onCommand(ctx actor.Context, msg commandDone) {
	if msg.result.Request == "" {
		msg.result.Request = requestName(msg.request)
	}
	if msg.err != nil {
		state.logger.Error("waterheater@waiting command failed", zap.String("request", msg.result.Request), zap.Error(msg.err))
	} else {
		state.logger.Info("waterheater@waiting command done", zap.String("request", msg.result.Request),
			zap.String("outcome", msg.result.Outcome()), zap.String("reason", msg.result.Reason))
	}

	if msg.replyTo != nil {
		ctx.Send(msg.replyTo, domain.CommandResponse{
			ActorResponseMixIn: domain.ErrorResponse(msg.err),
			Result:             msg.result,
		})
	}
	if state.metrics != nil {
		state.metrics.ObserveCommand(msg.result, msg.err)
	}
	state.journalCommand(msg.result, msg.err)

	// unknown labels never reach the device
	if errors.Is(msg.err, domain.ErrUnknownOperation) {
		return
	}
	if state.cancelRefresh != nil {
		state.cancelRefresh()
	}
	state.cancelRefresh = state.scheduler.RequestOnce(state.config.Device.RefreshDelay(), ctx.Self(), refreshTick{})
}

func (state *WaterHeaterActor) journalCommand(result domain.CommandResult, err error) {
	if state.journal == nil {
		return
	}
	entry := domain.JournalEntry{
		OccurredAt: time.Now(),
		Request:    result.Request,
		Command:    result.Command,
		Args:       result.Args,
		Outcome:    result.Outcome(),
		Reason:     result.Reason,
	}
	if err != nil {
		entry.Outcome = domain.OUTCOME_FAILED
		entry.Reason = err.Error()
	}
	c, cancel := context.WithTimeout(context.Background(), state.config.Device.Timeout())
	defer cancel()
	if err := state.journal.Append(c, entry); err != nil {
		state.logger.Error("waterheater@waiting journal append failed", zap.Error(err))
	}
}

func (state *WaterHeaterActor) deviceInfo(ctx actor.Context, replyTo *actor.PID) {
	fallback := domain.WaterHeaterDevice(state.translator.Name(), state.config.Device.Host, state.config.Device.Model, "")
	if state.device != nil || state.identity == nil {
		device := fallback
		if state.device != nil {
			device = *state.device
		}
		if replyTo != nil {
			ctx.Send(replyTo, domain.GetDeviceInfoResponse{
				Device:        device,
				OperationList: state.translator.OperationList(),
			})
		}
		return
	}
	timeout := state.taskTimeout()
	NewBackgroundTaskNoError(ctx, func() *deviceInfoDone {
		c, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		model, firmware, err := state.identity.Identify(c)
		if err != nil {
			return &deviceInfoDone{device: fallback, err: err, replyTo: replyTo}
		}
		if model == "" {
			model = state.config.Device.Model
		}
		device := domain.WaterHeaterDevice(state.translator.Name(), state.config.Device.Host, model, firmware)
		return &deviceInfoDone{device: device, replyTo: replyTo}
	}).Recover(func(err error) deviceInfoDone {
		return deviceInfoDone{device: fallback, err: err, replyTo: replyTo}
	}).WithTimeout(timeout).PipeToAsync(ctx.Self())
	state.behavior.BecomeStacked(state.WaitingDevice)
}

func requestName(req domain.WaterHeaterRequest) string {
	switch r := req.(type) {
	case domain.SetOperationRequest:
		return service.REQUEST_SET_OPERATION
	case domain.SetTemperatureRequest:
		return service.REQUEST_SET_TEMPERATURE
	case domain.SetPowerRequest:
		if r.On {
			return service.REQUEST_TURN_ON
		}
		return service.REQUEST_TURN_OFF
	case domain.SetAwayModeRequest:
		if r.Enable {
			return service.REQUEST_AWAY_MODE_ON
		}
		return service.REQUEST_AWAY_MODE_OFF
	}
	return fmt.Sprintf("%T", req)
}
