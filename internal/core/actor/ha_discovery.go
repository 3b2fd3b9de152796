package actor

import (
	"fmt"
	"time"

	"github.com/qinweixian/yunmi-water-heater/internal/config"
	"github.com/qinweixian/yunmi-water-heater/internal/core/domain"
	"github.com/qinweixian/yunmi-water-heater/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const HADISCOVERY_RETRY_INTERVAL = 5 * time.Second

type HADiscoveryActor struct {
	config                  *config.Config
	behavior                actor.Behavior
	stash                   *actorutil.Stash
	scheduler               *scheduler.TimerScheduler
	waterHeaterActor        *actor.PID
	mqttActor               *actor.PID
	waterHeaterActorHealthy bool
	mqttActorHealthy        bool
	healthyRecv             int
	retryInterval           time.Duration

	logger *zap.Logger
}

type discoveryRetry struct {
}

func NewHADiscoveryActor(config *config.Config, waterHeaterActor *actor.PID, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:           config,
		waterHeaterActor: waterHeaterActor,
		mqttActor:        mqttActor,
		behavior:         actor.NewBehavior(),
		stash:            &actorutil.Stash{},
		retryInterval:    HADISCOVERY_RETRY_INTERVAL,
		logger:           actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.checkHealth(ctx)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// checkHealth asks both actors for health. Discovery is only published once
// the heater answered a refresh and the broker connection is up.
func (state *HADiscoveryActor) checkHealth(ctx actor.Context) {
	state.healthyRecv = 0
	state.waterHeaterActorHealthy = false
	state.mqttActorHealthy = false
	actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.waterHeaterActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
		return domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_WATER_HEATER,
			Healthy: false,
		}
	})
	actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
		return domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: false,
		}
	})
	state.behavior.Become(state.WaitingHealthyReceive)
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.healthyRecv++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_WATER_HEATER:
				state.waterHeaterActorHealthy = true
			case domain.ACTOR_ID_MQTT:
				state.mqttActorHealthy = true
			}
		}
		if state.healthyRecv < 2 {
			return
		}
		if state.waterHeaterActorHealthy && state.mqttActorHealthy {
			actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.waterHeaterActor, domain.GetDeviceInfoRequest{}, 3*state.config.Device.Timeout()+time.Second), func(err error) any {
				return domain.GetDeviceInfoResponse{
					ActorResponseMixIn: domain.ErrorResponse(err),
				}
			})
			state.behavior.Become(state.WaitingInfoReceive)
			state.stash.UnstashAll(ctx)
			return
		}
		state.logger.Info("hadiscovery@healthcheck not ready, retrying",
			zap.Bool("waterheater", state.waterHeaterActorHealthy), zap.Bool("mqtt", state.mqttActorHealthy))
		state.scheduler.RequestOnce(state.retryInterval, ctx.Self(), discoveryRetry{})
		state.behavior.Become(state.WaitingRetryReceive)
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingRetryReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case discoveryRetry:
		state.checkHealth(ctx)
	default:
		state.logger.Debug("hadiscovery@retry: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) Done(ctx actor.Context) {

}

func (state *HADiscoveryActor) WaitingInfoReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetDeviceInfoResponse:
		if msg.HasResponseError() {
			panic(msg.GetResponseError())
		}
		state.logger.Debug("hadiscovery@info: GetDeviceInfoResponse", zap.Any("device", msg.Device))

		var sensors []domain.GenericSensor

		bridgeDevice := domain.BridgeDevice(state.config.MQTT.BaseTopic)
		sensors = append(sensors, domain.BridgeSensors(bridgeDevice)...)

		heaterDevice := msg.Device
		heaterDevice.ViaDevice = bridgeDevice.Id
		// the full device block is sent once, the rest refer to it by id
		heater := domain.WaterHeaterEntity(heaterDevice, msg.OperationList)
		heaterSensors := domain.WaterHeaterSensors(domain.IdDevice(heaterDevice))
		sensors = append(sensors, heaterSensors...)
		switches := domain.WaterHeaterSwitches(domain.IdDevice(heaterDevice))

		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
			Sensors:      sensors,
			Switches:     switches,
			WaterHeaters: []domain.GenericWaterHeater{heater},
		})
		state.behavior.Become(state.Done)

	default:
		state.logger.Debug("hadiscovery@info: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}
