package actorutil

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/qinweixian/yunmi-water-heater/internal/core/domain"
	"github.com/qinweixian/yunmi-water-heater/internal/mqtt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"go.uber.org/zap"
)

func PipeToSelfWithRecover(ctx actor.Context, future *actor.Future, mapFn func(error) any) {
	ctx.ReenterAfter(future, func(msg any, err error) {
		if err != nil {
			ctx.Send(ctx.Self(), mapFn(err))
			return
		}
		ctx.Send(ctx.Self(), msg)
	})
}

// SelfSender returns a function that delivers messages to the calling actor
// from any goroutine, such as client library callbacks.
func SelfSender(ctx actor.Context) func(msg any) {
	self := ctx.Self()
	root := ctx.ActorSystem().Root
	return func(msg any) {
		root.Send(self, msg)
	}
}

func NewActorSystemWithZapLogger(logger *zap.Logger) *actor.ActorSystem {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel:
		slogLevel = slog.LevelError
	case zap.PanicLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {

		// create a new logger
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

// ParsedMQTTCommandToCommand maps an inbound MQTT command to the water heater
// request it stands for. Commands for unknown entities return nil.
func ParsedMQTTCommandToCommand(cmd mqtt.ParsedMQTTCommand) (domain.WaterHeaterRequest, error) {
	switch cmd.Command {
	case mqtt.COMMAND_SWITCH:
		if cmd.DeviceId == domain.SWITCH_ID_AWAY_MODE {
			enable, err := parseOnOff(cmd.Payload)
			if err != nil {
				return nil, err
			}
			return domain.SetAwayModeRequest{Enable: enable}, nil
		}
	case mqtt.COMMAND_WATER_HEATER:
		if cmd.DeviceId != domain.WATER_HEATER_ID {
			return nil, nil
		}
		switch cmd.Param {
		case mqtt.PARAM_MODE:
			return domain.SetOperationRequest{Label: cmd.Payload}, nil
		case mqtt.PARAM_TEMPERATURE:
			value, err := strconv.ParseFloat(strings.TrimSpace(cmd.Payload), 64)
			if err != nil {
				return nil, err
			}
			return domain.SetTemperatureRequest{Celsius: value}, nil
		case mqtt.PARAM_POWER:
			on, err := parseOnOff(cmd.Payload)
			if err != nil {
				return nil, err
			}
			return domain.SetPowerRequest{On: on}, nil
		}
	}
	return nil, nil
}

func parseOnOff(payload string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(payload)) {
	case mqtt.MQTT_PAYLOAD_ON, "true", "1":
		return true, nil
	case mqtt.MQTT_PAYLOAD_OFF, "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid on/off payload %q", payload)
}
